package plugin

import (
	"context"

	"github.com/vango-dev/vpack/internal/emit"
	"github.com/vango-dev/vpack/pkg/assets"
)

// DefaultManifestFilename is the manifest path relative to the output root.
const DefaultManifestFilename = "manifest.json"

// Manifest writes an assets.Manifest describing every emitted chunk.
type Manifest struct {
	filename string
}

// NewManifest returns the manifest plugin.
func NewManifest(filename string) *Manifest {
	if filename == "" {
		filename = DefaultManifestFilename
	}
	return &Manifest{filename: filename}
}

// Name implements emit.Plugin.
func (m *Manifest) Name() string { return "manifest" }

// AfterEmit implements emit.AfterEmitter.
func (m *Manifest) AfterEmit(_ context.Context, e *emit.Emission) error {
	manifest := assets.NewManifest()
	for _, c := range e.Chunks {
		entry := assets.Chunk{Files: c.Files, Hash: c.Hash, Modules: len(c.Modules)}
		if len(c.Files) > 0 {
			if a, ok := e.Asset(c.Files[0]); ok {
				entry.Size = len(a.Content)
			}
		}
		manifest.Chunks[c.Name] = entry
	}
	data, err := manifest.Bytes()
	if err != nil {
		return err
	}
	e.AddAsset(emit.Asset{Path: m.filename, Content: data, Kind: emit.KindAux})
	return nil
}
