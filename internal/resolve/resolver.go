package resolve

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vango-dev/vpack/internal/errors"
	"github.com/vango-dev/vpack/internal/module"
)

// DefaultExtensions are tried, in order, after the exact file.
var DefaultExtensions = []string{".js", ".jsx", ".mjs", ".cjs", ".json"}

// DefaultMainFields are the package.json fields consulted for a package
// entry, in order.
var DefaultMainFields = []string{"browser", "module", "main"}

// Options configures a Resolver.
type Options struct {
	// Root is the project root. Entry specifiers resolve against it.
	Root string

	// Extensions are appended to extension-less paths.
	// Default: DefaultExtensions.
	Extensions []string

	// IndexFiles are the directory index names (without extension).
	// Default: ["index"].
	IndexFiles []string

	// ModuleDirs are the directory names searched for bare specifiers.
	// Default: ["node_modules"].
	ModuleDirs []string

	// MainFields are the package.json fields used for package entries.
	// Default: DefaultMainFields.
	MainFields []string

	// Alias maps a specifier prefix to a replacement. Replacements that are
	// relative paths are taken relative to Root.
	Alias map[string]string

	// Externals maps specifiers to the runtime expression that provides them.
	Externals map[string]string
}

// Resolver resolves specifiers against the filesystem.
type Resolver struct {
	opts    Options
	aliases []string
}

// New creates a Resolver with defaults applied.
func New(opts Options) *Resolver {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if len(opts.IndexFiles) == 0 {
		opts.IndexFiles = []string{"index"}
	}
	if len(opts.ModuleDirs) == 0 {
		opts.ModuleDirs = []string{"node_modules"}
	}
	if len(opts.MainFields) == 0 {
		opts.MainFields = DefaultMainFields
	}
	if opts.Root != "" {
		opts.Root = filepath.Clean(opts.Root)
	}

	// Longest alias first so "@app/ui" wins over "@app".
	aliases := make([]string, 0, len(opts.Alias))
	for k := range opts.Alias {
		aliases = append(aliases, k)
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})

	return &Resolver{opts: opts, aliases: aliases}
}

// Root returns the project root.
func (r *Resolver) Root() string {
	return r.opts.Root
}

// External returns the runtime expression for an external identity.
func (r *Resolver) External(id module.Identity) (string, bool) {
	expr, ok := r.opts.Externals[id.Specifier()]
	return expr, ok
}

// Resolve maps specifier, imported from the module from, to an identity.
// from is empty for entry points.
func (r *Resolver) Resolve(specifier string, from module.Identity) (module.Identity, error) {
	p := &lookup{r: r}

	if specifier == "" {
		return "", r.fail(specifier, from, p, nil)
	}
	if _, ok := r.opts.Externals[specifier]; ok {
		return module.External(specifier), nil
	}

	request, query := splitQuery(specifier)
	request = r.applyAlias(request)

	var (
		found string
		err   error
	)
	switch {
	case filepath.IsAbs(request):
		found, err = p.load(request)
	case isRelative(request):
		found, err = p.load(filepath.Join(r.baseDir(from), filepath.FromSlash(request)))
	default:
		found, err = p.loadPackage(request, r.baseDir(from))
	}
	if err != nil || found == "" {
		return "", r.fail(specifier, from, p, err)
	}

	return module.FromPath(found, query), nil
}

func (r *Resolver) fail(specifier string, from module.Identity, p *lookup, err error) error {
	return &errors.ResolutionError{
		Specifier:  specifier,
		From:       string(from),
		Candidates: p.candidates,
		Err:        err,
	}
}

func (r *Resolver) applyAlias(request string) string {
	for _, prefix := range r.aliases {
		if request != prefix && !strings.HasPrefix(request, prefix+"/") {
			continue
		}
		target := r.opts.Alias[prefix] + strings.TrimPrefix(request, prefix)
		if isRelative(target) && r.opts.Root != "" {
			return filepath.Join(r.opts.Root, filepath.FromSlash(target))
		}
		return target
	}
	return request
}

func (r *Resolver) baseDir(from module.Identity) string {
	if from == "" || from.IsExternal() {
		return r.opts.Root
	}
	return filepath.Dir(from.Path())
}

// lookup performs the filesystem lookups of a single resolution and records
// every candidate it tries.
type lookup struct {
	r          *Resolver
	candidates []string
}

func (p *lookup) isFile(path string) bool {
	p.candidates = append(p.candidates, path)
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// load resolves a filesystem base path as a file, then as a directory.
func (p *lookup) load(base string) (string, error) {
	if found := p.loadFile(base); found != "" {
		return found, nil
	}
	if isDir(base) {
		return p.loadDir(base)
	}
	return "", nil
}

func (p *lookup) loadFile(base string) string {
	if p.isFile(base) {
		return base
	}
	for _, ext := range p.r.opts.Extensions {
		if candidate := base + ext; p.isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func (p *lookup) loadDir(dir string) (string, error) {
	pkg, err := readPackageJSON(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", err
	}
	if pkg != nil {
		if main := pkg.entry(p.r.opts.MainFields); main != "" {
			target := filepath.Join(dir, filepath.FromSlash(main))
			if found := p.loadFile(target); found != "" {
				return found, nil
			}
			if found := p.loadIndex(target); found != "" {
				return found, nil
			}
		}
	}
	return p.loadIndex(dir), nil
}

func (p *lookup) loadIndex(dir string) string {
	for _, name := range p.r.opts.IndexFiles {
		if found := p.loadFile(filepath.Join(dir, name)); found != "" {
			return found
		}
	}
	return ""
}

// loadPackage searches module directories from start upwards.
func (p *lookup) loadPackage(request, start string) (string, error) {
	dir := start
	for {
		for _, modDir := range p.r.opts.ModuleDirs {
			base := filepath.Join(dir, modDir, filepath.FromSlash(request))
			found, err := p.load(base)
			if err != nil || found != "" {
				return found, err
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func isRelative(s string) bool {
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}

func splitQuery(specifier string) (string, string) {
	if i := strings.IndexByte(specifier, '?'); i >= 0 {
		return specifier[:i], specifier[i+1:]
	}
	return specifier, ""
}
