package cmd

import (
	"errors"
	"io"

	"github.com/elos-os/bootimg/image"
	"github.com/elos-os/bootimg/manifest"
	"github.com/elos-os/bootimg/printer"
	"github.com/elos-os/bootimg/types"
	"github.com/moby/term"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// BuildCommand builds a bootable image from a manifest of host files
func BuildCommand() *cobra.Command {
	var cmdBuild = &cobra.Command{
		Use:   "build",
		Short: "Build a bootable image from a file manifest",
		Long: `Build resolves the manifest, sizes and fills a FAT volume, then wraps it
in a GPT disk (default), an El Torito ISO, or writes the bare volume.

Files come from the config file manifest followed by every --file flag:

  bootimg build -f build/BOOTX64.EFI:EFI/BOOT/BOOTX64.EFI -f 'res/*.psf:RES' -o boot.img`,
		Args: cobra.NoArgs,
		RunE: buildCommandHandler,
	}

	PersistBuildCommandFlags(cmdBuild.Flags())

	return cmdBuild
}

func buildCommandHandler(cmd *cobra.Command, args []string) error {
	c, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	var opts []image.Option
	if bar := newProgressBar(cmd.ErrOrStderr(), c); bar != nil {
		defer bar.Finish()
		opts = append(opts, image.WithProgress(func(e manifest.Entry) {
			bar.Describe(e.Dest)
			bar.Add64(e.Size)
		}))
	}

	a, err := image.Build(c, afero.NewOsFs(), opts...)
	if err != nil {
		return err
	}

	if c.RunConfig.JSON {
		return printer.JSON(a)
	}
	printer.Successf("Bootable image file: %s", a.Path)
	printer.Infof("%s", a)
	return nil
}

func buildConfig(cmd *cobra.Command) (*types.Config, error) {
	flags := cmd.Flags()
	c := types.NewConfig()

	container := NewMergeConfigContainer(
		NewConfigCommandFlags(flags),
		NewGlobalCommandFlags(flags),
		NewBuildCommandFlags(flags),
	)
	if err := container.Merge(c); err != nil {
		return nil, err
	}
	if c.Output == "" {
		return nil, errors.New("no output image: set --output or output in the config file")
	}
	return c, nil
}

// newProgressBar returns a byte counting bar when w is a terminal and the
// output is meant for humans
func newProgressBar(w io.Writer, c *types.Config) *progressbar.ProgressBar {
	if c.RunConfig.JSON {
		return nil
	}
	if _, isTerm := term.GetFdInfo(w); !isTerm {
		return nil
	}
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetDescription("writing files"),
	)
}
