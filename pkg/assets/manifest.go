// Package assets reads the manifest vpack writes next to the bundles and
// turns chunk names into script URLs.
//
// manifest.json lists every chunk of a build under its entry name:
//
//	{
//	  "version": 1,
//	  "chunks": {
//	    "main": {
//	      "files": ["js/main.9f3a12c4.js"],
//	      "hash": "9f3a12c4e0...",
//	      "modules": 12,
//	      "size": 48211
//	    }
//	  }
//	}
//
// Servers that render their own HTML load it once at startup:
//
//	m, err := assets.Load("dist/manifest.json")
//	urls := assets.NewResolver(m, "/static/")
//	src, ok := urls.Script("main") // "/static/js/main.9f3a12c4.js"
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ManifestVersion is the manifest format written by this package.
const ManifestVersion = 1

// Chunk is the manifest record of one emitted chunk.
type Chunk struct {
	// Files are the emitted paths, relative to the output root. The first
	// one is the script to load.
	Files []string `json:"files"`

	// Hash is the full content hash of the chunk; file names carry a
	// prefix of it.
	Hash string `json:"hash"`

	// Modules is the number of modules bundled into the chunk.
	Modules int `json:"modules"`

	// Size is the byte size of Files[0].
	Size int `json:"size"`
}

// Manifest maps chunk names to their emitted files. A loaded manifest is
// read-only and safe for concurrent use.
type Manifest struct {
	Version int              `json:"version"`
	Chunks  map[string]Chunk `json:"chunks"`
}

// NewManifest returns an empty manifest of the current version.
func NewManifest() *Manifest {
	return &Manifest{Version: ManifestVersion, Chunks: make(map[string]Chunk)}
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a manifest document. Documents of another version are
// rejected rather than misread.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.Chunks == nil {
		m.Chunks = make(map[string]Chunk)
	}
	return &m, nil
}

// Script returns the emitted path of the named chunk's script.
func (m *Manifest) Script(name string) (string, bool) {
	c, ok := m.Chunks[name]
	if !ok || len(c.Files) == 0 {
		return "", false
	}
	return c.Files[0], true
}

// Names returns the chunk names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Chunks))
	for name := range m.Chunks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bytes returns the indented manifest document with a trailing newline.
// Map keys are sorted, so identical builds produce identical files.
func (m *Manifest) Bytes() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
