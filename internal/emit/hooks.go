package emit

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/vango-dev/vpack/internal/chunk"
)

// Kind classifies an asset.
type Kind int

const (
	// KindCode is a serialized chunk.
	KindCode Kind = iota
	// KindAux is any other output, such as HTML or a manifest.
	KindAux
)

func (k Kind) String() string {
	if k == KindCode {
		return "code"
	}
	return "aux"
}

// Asset is one output file.
type Asset struct {
	// Path is slash-separated and relative to the output root.
	Path string

	Content []byte

	// Chunk is the name of the chunk a code asset belongs to.
	Chunk string

	Kind Kind
}

// IsHTML reports whether the asset is an HTML document.
func (a Asset) IsHTML() bool {
	ext := strings.ToLower(path.Ext(a.Path))
	return ext == ".html" || ext == ".htm"
}

// Plugin is an output plugin. It subscribes to hook points by also
// implementing BeforeEmitter and/or AfterEmitter.
type Plugin interface {
	Name() string
}

// BeforeEmitter runs once the chunks are serialized, before any
// AfterEmitter.
type BeforeEmitter interface {
	Plugin
	BeforeEmit(ctx context.Context, e *Emission) error
}

// AfterEmitter runs once every code asset has its final, hashed path.
type AfterEmitter interface {
	Plugin
	AfterEmit(ctx context.Context, e *Emission) error
}

// Emission is the state shared with plugins during one Emit call.
type Emission struct {
	// ID is the compilation ID.
	ID string

	// Mode is the build mode.
	Mode string

	// OutputRoot is the absolute output directory.
	OutputRoot string

	// Chunks are the emitted chunks with Hash and Files set.
	Chunks []*chunk.Chunk

	// Assets is the current asset list. Plugins may edit it directly or use
	// the helper methods.
	Assets []Asset

	clean bool
}

// RequestClean asks the emitter to delete files under the output root that
// are not part of this emission, once the new assets are in place.
func (e *Emission) RequestClean() {
	e.clean = true
}

// CleanRequested reports whether a plugin requested a clean.
func (e *Emission) CleanRequested() bool {
	return e.clean
}

// AddAsset appends a, replacing any asset with the same path.
func (e *Emission) AddAsset(a Asset) {
	for i := range e.Assets {
		if e.Assets[i].Path == a.Path {
			e.Assets[i] = a
			return
		}
	}
	e.Assets = append(e.Assets, a)
}

// RemoveAsset removes the asset at p and reports whether it existed.
func (e *Emission) RemoveAsset(p string) bool {
	for i := range e.Assets {
		if e.Assets[i].Path == p {
			e.Assets = append(e.Assets[:i], e.Assets[i+1:]...)
			return true
		}
	}
	return false
}

// Asset returns the asset at p.
func (e *Emission) Asset(p string) (Asset, bool) {
	for _, a := range e.Assets {
		if a.Path == p {
			return a, true
		}
	}
	return Asset{}, false
}

// CodeAssets returns the code assets in chunk order.
func (e *Emission) CodeAssets() []Asset {
	order := make(map[string]int, len(e.Chunks))
	for i, c := range e.Chunks {
		order[c.Name] = i
	}
	var out []Asset
	for _, a := range e.Assets {
		if a.Kind == KindCode {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return order[out[i].Chunk] < order[out[j].Chunk]
	})
	return out
}
