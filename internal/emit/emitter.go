package emit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vango-dev/vpack/internal/chunk"
	"github.com/vango-dev/vpack/internal/errors"
)

const tempPrefix = ".vpack-"

// Options configures an Emitter.
type Options struct {
	// OutputRoot is the directory assets are written to.
	OutputRoot string

	// Filename is the code asset template. Default: "[name].[hash].js".
	Filename string

	// HashLength is the length of [hash]. Default: DefaultHashLength.
	HashLength int

	// Root is the project root, used for module comments.
	Root string

	// CompilationID and Mode are exposed to plugins.
	CompilationID string
	Mode          string

	// Plugins are invoked in order at each hook point.
	Plugins []Plugin

	// InMemory skips writing to disk. The dev server serves assets from
	// the returned list.
	InMemory bool

	Logger *slog.Logger
}

// Emitter turns chunks into assets.
type Emitter struct {
	opts     Options
	template *Template
}

// New validates opts and creates an Emitter.
func New(opts Options) (*Emitter, error) {
	if opts.Filename == "" {
		opts.Filename = "[name].[hash].js"
	}
	if opts.HashLength <= 0 {
		opts.HashLength = DefaultHashLength
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	if !opts.InMemory && opts.OutputRoot == "" {
		return nil, &errors.ConfigError{Field: "output.path", Reason: "output directory is required"}
	}
	tmpl, err := ParseTemplate(opts.Filename)
	if err != nil {
		return nil, err
	}
	return &Emitter{opts: opts, template: tmpl}, nil
}

// Emit serializes chunks, runs plugin hooks and writes the resulting
// assets. On error nothing under the output root is changed, except when a
// rename fails part way through the commit.
func (e *Emitter) Emit(ctx context.Context, chunks []*chunk.Chunk) ([]Asset, error) {
	em := &Emission{
		ID:         e.opts.CompilationID,
		Mode:       e.opts.Mode,
		OutputRoot: e.opts.OutputRoot,
		Chunks:     chunks,
	}

	seen := make(map[string]string, len(chunks))
	for _, c := range chunks {
		content, err := Serialize(c, e.opts.Root)
		if err != nil {
			return nil, &errors.EmissionError{Err: err}
		}
		sum := sha256.Sum256(content)
		c.Hash = hex.EncodeToString(sum[:])

		p := e.template.Render(c.Name, c.Hash, e.opts.HashLength)
		if err := validatePath(p); err != nil {
			return nil, &errors.ConfigError{Field: "output.filename", Reason: err.Error(), Code: "E104"}
		}
		if other, ok := seen[p]; ok {
			return nil, &errors.ConfigError{
				Field:  "output.filename",
				Reason: fmt.Sprintf("chunks %q and %q both render to %q", other, c.Name, p),
				Code:   "E104",
			}
		}
		seen[p] = c.Name
		c.Files = []string{p}

		em.Assets = append(em.Assets, Asset{Path: p, Content: content, Chunk: c.Name, Kind: KindCode})
	}

	for _, p := range e.opts.Plugins {
		if h, ok := p.(BeforeEmitter); ok {
			if err := h.BeforeEmit(ctx, em); err != nil {
				return nil, &errors.EmissionError{Plugin: p.Name(), Err: err}
			}
		}
	}
	for _, p := range e.opts.Plugins {
		if h, ok := p.(AfterEmitter); ok {
			if err := h.AfterEmit(ctx, em); err != nil {
				return nil, &errors.EmissionError{Plugin: p.Name(), Err: err}
			}
		}
	}

	for _, a := range em.Assets {
		if err := validatePath(a.Path); err != nil {
			return nil, &errors.EmissionError{Path: a.Path, Err: err}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !e.opts.InMemory {
		if err := e.commit(ctx, em.Assets); err != nil {
			return nil, err
		}
		if em.CleanRequested() {
			if err := e.removeObsolete(em.Assets); err != nil {
				return nil, &errors.EmissionError{Err: err}
			}
		}
	}

	assets := make([]Asset, len(em.Assets))
	copy(assets, em.Assets)
	return assets, nil
}

// commit stages every asset and renames them into place.
func (e *Emitter) commit(ctx context.Context, assets []Asset) error {
	ordered := make([]Asset, len(assets))
	copy(ordered, assets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return !ordered[i].IsHTML() && ordered[j].IsHTML()
	})

	staged := make([]string, 0, len(ordered))
	discard := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for _, a := range ordered {
		tmp, err := stage(filepath.Join(e.opts.OutputRoot, filepath.FromSlash(a.Path)), a.Content)
		if err != nil {
			discard()
			return &errors.EmissionError{Path: a.Path, Err: err}
		}
		staged = append(staged, tmp)
	}

	if err := ctx.Err(); err != nil {
		discard()
		return err
	}

	for i, a := range ordered {
		dest := filepath.Join(e.opts.OutputRoot, filepath.FromSlash(a.Path))
		if err := os.Rename(staged[i], dest); err != nil {
			staged = staged[i:]
			discard()
			return &errors.EmissionError{Path: a.Path, Err: err}
		}
		e.opts.Logger.Debug("asset written", "path", a.Path, "bytes", len(a.Content))
	}
	return nil
}

func stage(dest string, content []byte) (string, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Chmod(f.Name(), 0644); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// removeObsolete deletes files under the output root that are not in
// assets, then prunes empty directories.
func (e *Emitter) removeObsolete(assets []Asset) error {
	keep := make(map[string]bool, len(assets))
	for _, a := range assets {
		keep[a.Path] = true
	}

	root := e.opts.OutputRoot
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if keep[filepath.ToSlash(rel)] {
			return nil
		}
		e.opts.Logger.Debug("removing obsolete output", "path", filepath.ToSlash(rel))
		return os.Remove(p)
	})
	if err != nil {
		return err
	}

	// Deepest first; non-empty directories fail to remove and are kept.
	for i := len(dirs) - 1; i >= 0; i-- {
		os.Remove(dirs[i])
	}
	return nil
}

func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty asset path")
	}
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return fmt.Errorf("asset path %q is absolute", p)
	}
	clean := path.Clean(p)
	if clean != p || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("asset path %q leaves the output root", p)
	}
	return nil
}
