package cmd

import (
	"github.com/elos-os/bootimg/types"
)

// MergeConfigFlags are flags structures able to override build configuration attributes
type MergeConfigFlags interface {
	MergeToConfig(config *types.Config) error
}

// MergeConfigContainer is responsible for merge a list of flags attributes to build configuration
type MergeConfigContainer struct {
	flags []MergeConfigFlags
}

// NewMergeConfigContainer returns an instance of MergeConfigContainer
// Flags order matters.
func NewMergeConfigContainer(flags ...MergeConfigFlags) *MergeConfigContainer {
	return &MergeConfigContainer{flags}
}

// Merge uses a list of flags to override configuration properties.
func (m *MergeConfigContainer) Merge(config *types.Config) error {
	for _, f := range m.flags {
		err := f.MergeToConfig(config)
		if err != nil {
			return err
		}
	}

	return nil
}
