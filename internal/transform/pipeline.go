package transform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vango-dev/vpack/internal/errors"
	"github.com/vango-dev/vpack/internal/module"
)

// DefaultCacheSize is the number of transformed modules kept in memory.
const DefaultCacheSize = 4096

// Rule selects the modules a Unit applies to. Test and Exclude are
// doublestar patterns matched against the slash-separated path relative to
// the project root. An empty Test matches every module.
type Rule struct {
	Unit    Unit
	Test    []string
	Exclude []string
}

// Matches reports whether the rule applies to rel.
func (r Rule) Matches(rel string) bool {
	for _, pattern := range r.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(r.Test) == 0 {
		return true
	}
	for _, pattern := range r.Test {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// LocatedError is returned by units that can point at the failing position
// in their input.
type LocatedError struct {
	Line   int
	Column int
	Err    error
}

func (e *LocatedError) Error() string { return e.Err.Error() }

func (e *LocatedError) Unwrap() error { return e.Err }

// Output is the result of transforming one module.
type Output struct {
	// Code is the transformed source.
	Code string

	// Dependencies are the specifiers found in Code followed by injected
	// dependencies, without duplicates.
	Dependencies []string

	// Transformers names the units that ran, in order.
	Transformers []string

	// Annotations collects the notes left by units.
	Annotations map[string]string

	// ContentHash is the hex sha256 of the raw source.
	ContentHash string

	// Cached is true when the output came from the memo.
	Cached bool
}

// Stats are cumulative pipeline counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Transformed int64
}

// Options configures a Pipeline.
type Options struct {
	// Root is the project root used for rule matching.
	Root string

	// Mode is passed to every unit through the Context.
	Mode string

	// CacheSize bounds the memo. Zero means DefaultCacheSize; negative
	// disables memoization.
	CacheSize int
}

type memoKey struct {
	id          module.Identity
	contentHash string
	fingerprint string
}

// Pipeline applies an ordered list of rules to module sources.
type Pipeline struct {
	rules       []Rule
	root        string
	mode        string
	fingerprint string
	memo        *lru.Cache[memoKey, *Output]

	hits        atomic.Int64
	misses      atomic.Int64
	transformed atomic.Int64
}

// New creates a Pipeline. Rule order is preserved exactly.
func New(rules []Rule, opts Options) (*Pipeline, error) {
	for i, r := range rules {
		if r.Unit == nil {
			return nil, fmt.Errorf("transform rule %d has no unit", i)
		}
		for _, pattern := range append(append([]string{}, r.Test...), r.Exclude...) {
			if !doublestar.ValidatePattern(pattern) {
				return nil, &errors.ConfigError{
					Field:  fmt.Sprintf("transform[%d]", i),
					Reason: fmt.Sprintf("invalid glob %q", pattern),
				}
			}
		}
	}

	p := &Pipeline{
		rules: rules,
		root:  opts.Root,
		mode:  opts.Mode,
	}
	p.fingerprint = fingerprint(rules, opts.Mode)

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		memo, err := lru.New[memoKey, *Output](size)
		if err != nil {
			return nil, err
		}
		p.memo = memo
	}
	return p, nil
}

// Fingerprint identifies the pipeline configuration.
func (p *Pipeline) Fingerprint() string {
	return p.fingerprint
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Hits:        p.hits.Load(),
		Misses:      p.misses.Load(),
		Transformed: p.transformed.Load(),
	}
}

// Transform runs raw through every matching unit in order, reads the
// dependencies of the result and normalizes it to CommonJS. A failing unit stops the chain and is reported
// as *errors.TransformError.
func (p *Pipeline) Transform(ctx context.Context, raw []byte, id module.Identity) (*Output, error) {
	sum := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(sum[:])
	key := memoKey{id: id, contentHash: contentHash, fingerprint: p.fingerprint}

	if p.memo != nil {
		if cached, ok := p.memo.Get(key); ok {
			p.hits.Add(1)
			out := *cached
			out.Cached = true
			return &out, nil
		}
	}
	p.misses.Add(1)

	out, err := p.run(ctx, raw, id)
	if err != nil {
		return nil, err
	}
	out.ContentHash = contentHash
	p.transformed.Add(1)

	if p.memo != nil {
		p.memo.Add(key, out)
	}
	result := *out
	return &result, nil
}

func (p *Pipeline) run(ctx context.Context, raw []byte, id module.Identity) (*Output, error) {
	rel := filepath.ToSlash(id.Path())
	if p.root != "" {
		if r, err := filepath.Rel(p.root, id.Path()); err == nil {
			rel = filepath.ToSlash(r)
		}
	}

	src, asData, err := prepare(raw, id)
	if err != nil {
		return nil, &errors.TransformError{Module: string(id), Transformer: "json", Err: err}
	}

	c := &Context{Module: id, Rel: rel, Mode: p.mode}
	var ran []string

	if !asData {
		for _, r := range p.rules {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !r.Matches(rel) {
				continue
			}
			name := r.Unit.Name()
			c.Unit = name
			next, err := r.Unit.Apply(src, c)
			if err != nil {
				return nil, locate(&errors.TransformError{Module: string(id), Transformer: name, Err: err})
			}
			src = next
			ran = append(ran, name)
		}
	}

	var deps []string
	if !asData {
		src, deps, err = normalize(src, rel, id, ran)
		if err != nil {
			return nil, err
		}
	}
	seen := make(map[string]bool, len(deps))
	for _, d := range deps {
		seen[d] = true
	}
	for _, d := range c.deps {
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
	}

	return &Output{
		Code:         src,
		Dependencies: deps,
		Transformers: ran,
		Annotations:  c.annotations,
	}, nil
}

// normalize reads the dependencies of src after the chain and rewrites
// it to CommonJS when it still has import/export syntax or import()
// expressions, or when it is TypeScript or JSX no esbuild unit compiled.
// Modules excluded from every unit, such as ESM-only packages under
// node_modules, are covered by the same rewrite.
func normalize(src, rel string, id module.Identity, ran []string) (string, []string, error) {
	loader := loaderFor(id.Path(), true)
	a, err := Analyze(src, rel, loader)
	if err != nil {
		return "", nil, locate(&errors.TransformError{Module: string(id), Transformer: "parse", Err: err})
	}

	compiled := slices.Contains(ran, "esbuild")
	if !a.ESM && !a.Dynamic && (compiled || !needsCompile(id.Path())) {
		return src, a.Dependencies, nil
	}
	out, err := toCommonJS(src, rel, loader)
	if err != nil {
		return "", nil, locate(&errors.TransformError{Module: string(id), Transformer: "commonjs", Err: err})
	}
	return out, a.Dependencies, nil
}

// needsCompile reports whether path holds syntax the runtime cannot run
// as written.
func needsCompile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsx", ".ts", ".mts", ".cts", ".tsx":
		return true
	}
	return false
}

// locate copies the position of a LocatedError cause onto te.
func locate(te *errors.TransformError) *errors.TransformError {
	var located *LocatedError
	if stderrors.As(te.Err, &located) {
		te.Line, te.Column = located.Line, located.Column
	}
	return te
}

// prepare turns data modules into CommonJS before the chain runs. JSON
// files export their parsed value and "?raw" imports export the source
// text. Both skip the unit chain.
func prepare(raw []byte, id module.Identity) (string, bool, error) {
	if id.Query() == "raw" {
		var b strings.Builder
		enc := json.NewEncoder(&b)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(string(raw)); err != nil {
			return "", false, err
		}
		return "module.exports = " + strings.TrimSpace(b.String()) + ";", true, nil
	}
	if strings.EqualFold(filepath.Ext(id.Path()), ".json") {
		if !json.Valid(raw) {
			return "", false, fmt.Errorf("invalid JSON")
		}
		return "module.exports = " + strings.TrimSpace(string(raw)) + ";", true, nil
	}
	return string(raw), false, nil
}

func fingerprint(rules []Rule, mode string) string {
	h := sha256.New()
	fmt.Fprintf(h, "mode=%s\n", mode)
	for _, r := range rules {
		fmt.Fprintf(h, "unit=%s\n", r.Unit.Name())
		fmt.Fprintf(h, "test=%s\n", strings.Join(r.Test, ","))
		fmt.Fprintf(h, "exclude=%s\n", strings.Join(r.Exclude, ","))
		if f, ok := r.Unit.(Fingerprinter); ok {
			fmt.Fprintf(h, "options=%s\n", f.Fingerprint())
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
