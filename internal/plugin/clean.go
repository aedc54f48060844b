package plugin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vango-dev/vpack/internal/emit"
)

// Clean removes files from previous builds. The removal itself is done by
// the emitter after the commit, so a failed build never leaves an empty
// output directory behind.
type Clean struct{}

// NewClean returns the clean plugin.
func NewClean() *Clean {
	return &Clean{}
}

// Name implements emit.Plugin.
func (c *Clean) Name() string { return "clean" }

// BeforeEmit implements emit.BeforeEmitter.
func (c *Clean) BeforeEmit(_ context.Context, e *emit.Emission) error {
	if e.OutputRoot == "" {
		return nil
	}
	root := filepath.Clean(e.OutputRoot)
	if root == filepath.Dir(root) {
		return fmt.Errorf("refusing to clean filesystem root %s", root)
	}
	e.RequestClean()
	return nil
}
