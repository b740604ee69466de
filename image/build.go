// Package image runs the build pipeline: resolve the manifest, build the
// FAT volume, then wrap it in a GPT disk or an ISO image.
package image

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/elos-os/bootimg/fat"
	"github.com/elos-os/bootimg/gpt"
	"github.com/elos-os/bootimg/imgerr"
	"github.com/elos-os/bootimg/iso"
	"github.com/elos-os/bootimg/log"
	"github.com/elos-os/bootimg/manifest"
	"github.com/elos-os/bootimg/types"
)

// Artifact describes a successfully written image
type Artifact struct {
	Kind        Kind
	Path        string
	Entries     int
	ContentSize int64
	VolumeSize  int64
	DiskSize    int64
	FATType     fat.Type
	Partition   *gpt.Partition `json:",omitempty"`
}

func (a *Artifact) String() string {
	return fmt.Sprintf("%s image %s: %d files, %s content, %s %s volume, %s total",
		a.Kind, a.Path, a.Entries, humanize.IBytes(uint64(a.ContentSize)),
		humanize.IBytes(uint64(a.VolumeSize)), a.FATType, humanize.IBytes(uint64(a.DiskSize)))
}

// Option customizes a Build
type Option func(*builder)

// WithProgress registers fn to be called after each file is written to
// the volume
func WithProgress(fn func(manifest.Entry)) Option {
	return func(b *builder) {
		b.progress = fn
	}
}

// WithLogger replaces the package default logger
func WithLogger(l *log.Logger) Option {
	return func(b *builder) {
		b.log = l
	}
}

type builder struct {
	c        *types.Config
	fs       afero.Fs
	kind     Kind
	log      *log.Logger
	progress func(manifest.Entry)
}

// Build produces the image described by c, reading sources from and
// writing the output to fs. The output path is only touched after every
// earlier stage succeeded.
func Build(c *types.Config, fs afero.Fs, opts ...Option) (*Artifact, error) {
	kind, err := ParseKind(c.Format)
	if err != nil {
		return nil, err
	}
	if c.Output == "" {
		return nil, fmt.Errorf("no output path configured")
	}
	b := &builder{c: c, fs: fs, kind: kind, log: log.Default()}
	for _, o := range opts {
		o(b)
	}
	return b.run()
}

func (b *builder) run() (*Artifact, error) {
	resolver := manifest.NewResolver(b.fs)
	resolver.SetLogger(b.log)
	if b.kind != KindISO {
		resolver.SetStagingDir(b.c.StagingDir)
	}
	set, err := resolver.Resolve(manifest.FromConfig(b.c.Manifest))
	if err != nil {
		return nil, err
	}
	b.log.Info("resolved %d files, %s", len(set.Entries), humanize.IBytes(uint64(set.ContentSize())))

	fatOpts, err := b.fatOptions(set)
	if err != nil {
		return nil, err
	}
	policy, err := sizePolicy(b.c.FAT)
	if err != nil {
		return nil, err
	}
	volumeSize, err := fat.PlanSize(set.Usage(), policy, fatOpts)
	if err != nil {
		return nil, err
	}

	var plan gpt.Plan
	if b.kind == KindGPT {
		plan, err = gpt.Layout(volumeSize, gpt.LayoutOptions{
			PartitionStart:  b.c.GPT.PartitionStart,
			Alignment:       b.c.GPT.Alignment,
			OverheadSectors: b.c.GPT.OverheadSectors,
		})
		if err != nil {
			return nil, err
		}
		fatOpts.HiddenSectors = uint32(plan.Start)
	}

	volume, err := b.buildVolume(set, volumeSize, fatOpts)
	if err != nil {
		return nil, err
	}
	b.log.Info("%s volume %s, %s free", volume.Type(), humanize.IBytes(uint64(volume.Size())), humanize.IBytes(uint64(volume.FreeBytes())))

	a := &Artifact{
		Kind:        b.kind,
		Path:        b.c.Output,
		Entries:     len(set.Entries),
		ContentSize: set.ContentSize(),
		VolumeSize:  volume.Size(),
		DiskSize:    volume.Size(),
		FATType:     volume.Type(),
	}

	var out []byte
	switch b.kind {
	case KindFAT:
		out = volume.Bytes()
	case KindGPT:
		disk, err := b.wrapGPT(volume.Bytes(), plan)
		if err != nil {
			return nil, err
		}
		p, _ := disk.Partition(0)
		a.Partition = &p
		out = disk.Bytes()
	case KindISO:
		out, err = b.packISO(resolver, set, volume.Bytes())
		if err != nil {
			return nil, err
		}
	}
	a.DiskSize = int64(len(out))

	if err := WriteFileAtomic(b.fs, b.c.Output, out); err != nil {
		return nil, err
	}
	return a, nil
}

func sizePolicy(c types.FATConfig) (fat.SizePolicy, error) {
	p := fat.DefaultSizePolicy()
	if c.SafetyFactor != 0 {
		if c.SafetyFactor < 1 {
			return p, fmt.Errorf("safety factor %v is below 1", c.SafetyFactor)
		}
		p.SafetyFactor = c.SafetyFactor
	}
	if c.MinSize != "" {
		n, err := types.ParseSize(c.MinSize)
		if err != nil {
			return p, fmt.Errorf("min size: %w", err)
		}
		p.MinSize = n
	}
	return p, nil
}

func (b *builder) fatOptions(set *manifest.BuildSet) (fat.Options, error) {
	var o fat.Options
	t, err := fat.ParseType(b.c.FAT.Type)
	if err != nil {
		return o, err
	}
	modTime, err := b.c.BuildTime()
	if err != nil {
		return o, fmt.Errorf("timestamp: %w", err)
	}
	o.Type = t
	o.Label = b.c.FAT.Label
	o.OEMName = b.c.FAT.OEMName
	o.ModTime = modTime

	if b.c.FAT.VolumeID != "" {
		id, err := strconv.ParseUint(b.c.FAT.VolumeID, 0, 32)
		if err != nil {
			return o, fmt.Errorf("volume id: %w", err)
		}
		o.VolumeID = uint32(id)
	} else {
		var digest strings.Builder
		for _, e := range set.Entries {
			fmt.Fprintf(&digest, "%s:%d\n", strings.ToUpper(e.Dest), e.Size)
		}
		g := gpt.DeriveGUID("volume", []byte(digest.String()))
		o.VolumeID = binary.BigEndian.Uint32(g[:4])
	}
	return o, nil
}

// buildVolume formats the volume and copies every entry into it in order
func (b *builder) buildVolume(set *manifest.BuildSet, size int64, opts fat.Options) (*fat.Volume, error) {
	v, err := fat.Format(size, opts)
	if err != nil {
		return nil, err
	}
	for _, d := range set.Dirs() {
		b.log.Debug("mkdir %s", d)
		if err := v.Mkdir(d); err != nil {
			return nil, err
		}
	}
	for _, e := range set.Entries {
		data, err := afero.ReadFile(b.fs, e.Source)
		if err != nil {
			return nil, imgerr.IO("read", e.Source, err)
		}
		if int64(len(data)) != e.Size {
			return nil, imgerr.Resolutionf(e.Source, "changed size during the build (%d, was %d)", len(data), e.Size)
		}
		b.log.Debug("copy %s -> %s (%s)", e.Source, e.Dest, humanize.IBytes(uint64(e.Size)))
		if err := v.WriteFile(e.Dest, data); err != nil {
			return nil, err
		}
		if b.progress != nil {
			b.progress(e)
		}
	}
	return v, nil
}

func (b *builder) wrapGPT(volume []byte, plan gpt.Plan) (*gpt.Disk, error) {
	diskGUID, err := parseGUID(b.c.GPT.DiskGUID, gpt.DeriveGUID("disk", volume))
	if err != nil {
		return nil, fmt.Errorf("disk guid: %w", err)
	}
	partGUID, err := parseGUID(b.c.GPT.PartitionGUID, gpt.DeriveGUID("partition", volume))
	if err != nil {
		return nil, fmt.Errorf("partition guid: %w", err)
	}
	name := b.c.GPT.PartitionName
	if name == "" {
		name = "EFI System"
	}

	b.log.Info("gpt layout: %s", plan)
	disk, err := gpt.Init(plan.DiskSize, diskGUID)
	if err != nil {
		return nil, err
	}
	disk.SetAlignment(plan.Alignment)
	err = disk.AddPartition(0, gpt.Partition{
		Type:  gpt.EFISystemPartition,
		GUID:  partGUID,
		Start: plan.Start,
		End:   plan.End,
		Name:  name,
	})
	if err != nil {
		return nil, err
	}
	if err := disk.WritePartition(0, volume); err != nil {
		return nil, err
	}
	return disk, gpt.Verify(disk.Bytes())
}

func parseGUID(s string, fallback uuid.UUID) (uuid.UUID, error) {
	if s == "" {
		return fallback, nil
	}
	return uuid.Parse(s)
}

// packISO stages the build set and the volume, then authors the ISO from
// the staging tree
func (b *builder) packISO(resolver *manifest.Resolver, set *manifest.BuildSet, volume []byte) ([]byte, error) {
	staging := b.c.StagingDir
	if staging == "" {
		tmp, err := afero.TempDir(b.fs, "", "bootimg-staging")
		if err != nil {
			return nil, imgerr.IO("mkdir", "staging", err)
		}
		defer b.fs.RemoveAll(tmp)
		staging = tmp
	} else {
		if err := b.fs.RemoveAll(staging); err != nil {
			return nil, imgerr.IO("clear", staging, err)
		}
		if err := b.fs.MkdirAll(staging, 0755); err != nil {
			return nil, imgerr.IO("mkdir", staging, err)
		}
	}

	opts := iso.Options{
		VolumeID:    b.c.ISO.VolumeID,
		BootImage:   b.c.ISO.BootImage,
		BootCatalog: b.c.ISO.BootCatalog,
	}
	if err := resolver.Stage(staging, set); err != nil {
		return nil, err
	}
	bootImage := filepath.Join(staging, filepath.FromSlash(opts.BootImagePath()))
	if err := b.fs.MkdirAll(filepath.Dir(bootImage), 0755); err != nil {
		return nil, imgerr.IO("mkdir", filepath.Dir(bootImage), err)
	}
	if err := afero.WriteFile(b.fs, bootImage, volume, 0644); err != nil {
		return nil, imgerr.IO("write", bootImage, err)
	}
	b.log.Info("packing iso from %s", staging)
	return iso.Pack(b.fs, staging, opts)
}
