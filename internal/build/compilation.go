package build

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/vango-dev/vpack/internal/chunk"
	"github.com/vango-dev/vpack/internal/emit"
	"github.com/vango-dev/vpack/internal/errors"
	"github.com/vango-dev/vpack/internal/module"
)

// Status is the outcome of a compilation.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Stats counts the work done by one compilation.
type Stats struct {
	// Modules is the number of modules in the graph.
	Modules int

	// Transformed is the number of modules that ran the transform chain.
	Transformed int

	// Cached is the number of modules served from the transform memo.
	Cached int

	// Assets is the number of emitted assets.
	Assets int
}

// Compilation is the result of one build. It is not modified after Build
// returns.
type Compilation struct {
	ID     string
	Mode   string
	Status Status

	Graph  *module.Graph
	Chunks []*chunk.Chunk
	Assets []emit.Asset

	// Hash identifies the emitted code. It changes whenever any chunk does.
	Hash string

	// Errors holds every error of a failed compilation.
	Errors []error

	// Changed lists the file paths that triggered this build.
	Changed []string

	Started  time.Time
	Duration time.Duration
	Stats    Stats
}

// Succeeded reports whether the compilation produced assets.
func (c *Compilation) Succeeded() bool {
	return c.Status == StatusSucceeded
}

// Asset returns the emitted asset at path p.
func (c *Compilation) Asset(p string) (emit.Asset, bool) {
	for _, a := range c.Assets {
		if a.Path == p {
			return a, true
		}
	}
	return emit.Asset{}, false
}

// Includes reports whether any module of the graph was loaded from path.
func (c *Compilation) Includes(path string) bool {
	return c.Graph != nil && len(c.Graph.ByPath(path)) > 0
}

// Diagnostics formats every error of a failed compilation.
func (c *Compilation) Diagnostics() []*errors.VpackError {
	if c == nil {
		return nil
	}
	var out []*errors.VpackError
	for _, err := range c.Errors {
		out = append(out, errors.Collect(err)...)
	}
	return out
}

func compilationHash(chunks []*chunk.Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.Name))
		h.Write([]byte{0})
		h.Write([]byte(c.Hash))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
