package transform

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vpack/internal/errors"
	"github.com/vango-dev/vpack/internal/module"
)

type countingUnit struct {
	name  string
	calls atomic.Int64
	fn    func(string, *Context) (string, error)
}

func (u *countingUnit) Name() string { return u.name }

func (u *countingUnit) Apply(src string, c *Context) (string, error) {
	u.calls.Add(1)
	if u.fn != nil {
		return u.fn(src, c)
	}
	return src, nil
}

func idFor(root, rel string) module.Identity {
	return module.FromPath(filepath.Join(root, filepath.FromSlash(rel)), "")
}

func TestPipelineAppliesUnitsInOrder(t *testing.T) {
	root := t.TempDir()
	upper := Func{UnitName: "upper", Fn: func(src string, _ *Context) (string, error) {
		return strings.ToUpper(src), nil
	}}
	suffix := Func{UnitName: "suffix", Fn: func(src string, _ *Context) (string, error) {
		return src + "// done", nil
	}}

	p, err := New([]Rule{{Unit: upper}, {Unit: suffix}}, Options{Root: root})
	require.NoError(t, err)

	out, err := p.Transform(context.Background(), []byte("a;"), idFor(root, "src/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "A;// done", out.Code)
	assert.Equal(t, []string{"upper", "suffix"}, out.Transformers)
	assert.Len(t, out.ContentHash, 64)
}

func TestPipelineRuleMatching(t *testing.T) {
	root := t.TempDir()
	unit := &countingUnit{name: "js-only"}
	p, err := New([]Rule{{
		Unit:    unit,
		Test:    []string{"**/*.{js,jsx}"},
		Exclude: []string{"node_modules/**"},
	}}, Options{Root: root})
	require.NoError(t, err)

	ctx := context.Background()
	out, err := p.Transform(ctx, []byte("1"), idFor(root, "src/a.jsx"))
	require.NoError(t, err)
	assert.Equal(t, []string{"js-only"}, out.Transformers)

	out, err = p.Transform(ctx, []byte("2"), idFor(root, "node_modules/lib/index.js"))
	require.NoError(t, err)
	assert.Empty(t, out.Transformers)

	out, err = p.Transform(ctx, []byte("3"), idFor(root, "src/a.ts"))
	require.NoError(t, err)
	assert.Empty(t, out.Transformers)

	assert.EqualValues(t, 1, unit.calls.Load())
}

func TestPipelineInvalidGlob(t *testing.T) {
	_, err := New([]Rule{{Unit: &countingUnit{name: "x"}, Test: []string{"src/[a"}}}, Options{})
	var cfgErr *errors.ConfigError
	require.True(t, stderrors.As(err, &cfgErr))
	assert.Equal(t, "transform[0]", cfgErr.Field)
}

func TestPipelineMemo(t *testing.T) {
	root := t.TempDir()
	unit := &countingUnit{name: "count"}
	p, err := New([]Rule{{Unit: unit}}, Options{Root: root})
	require.NoError(t, err)

	ctx := context.Background()
	id := idFor(root, "src/a.js")

	first, err := p.Transform(ctx, []byte(`require("./b")`), id)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := p.Transform(ctx, []byte(`require("./b")`), id)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, []string{"./b"}, second.Dependencies)

	_, err = p.Transform(ctx, []byte(`require("./c")`), id)
	require.NoError(t, err)

	assert.EqualValues(t, 2, unit.calls.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 2, Transformed: 2}, p.Stats())
}

func TestPipelineMemoDisabled(t *testing.T) {
	unit := &countingUnit{name: "count"}
	p, err := New([]Rule{{Unit: unit}}, Options{CacheSize: -1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.Transform(context.Background(), []byte("x"), module.FromPath("/p/a.js", ""))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, unit.calls.Load())
}

func TestPipelineFingerprint(t *testing.T) {
	a, err := New([]Rule{{Unit: &SizeLimit{Limit: 10}}}, Options{Mode: "development"})
	require.NoError(t, err)
	b, err := New([]Rule{{Unit: &SizeLimit{Limit: 20}}}, Options{Mode: "development"})
	require.NoError(t, err)
	c, err := New([]Rule{{Unit: &SizeLimit{Limit: 10}}}, Options{Mode: "production"})
	require.NoError(t, err)
	d, err := New([]Rule{{Unit: &SizeLimit{Limit: 10}}}, Options{Mode: "development"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Equal(t, a.Fingerprint(), d.Fingerprint())
}

func TestPipelineUnitError(t *testing.T) {
	root := t.TempDir()
	after := &countingUnit{name: "after"}
	failing := Func{UnitName: "strict", Fn: func(string, *Context) (string, error) {
		return "", &LocatedError{Line: 3, Column: 7, Err: fmt.Errorf("unexpected token")}
	}}
	p, err := New([]Rule{{Unit: failing}, {Unit: after}}, Options{Root: root})
	require.NoError(t, err)

	id := idFor(root, "src/bad.js")
	_, err = p.Transform(context.Background(), []byte("x"), id)
	require.Error(t, err)

	var te *errors.TransformError
	require.True(t, stderrors.As(err, &te))
	assert.Equal(t, string(id), te.Module)
	assert.Equal(t, "strict", te.Transformer)
	assert.Equal(t, 3, te.Line)
	assert.Equal(t, 7, te.Column)
	assert.EqualValues(t, 0, after.calls.Load())

	// Failures are not memoized.
	_, err = p.Transform(context.Background(), []byte("x"), id)
	require.Error(t, err)
	assert.Equal(t, Stats{Misses: 2}, p.Stats())
}

func TestPipelineCanceled(t *testing.T) {
	p, err := New([]Rule{{Unit: &countingUnit{name: "x"}}}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Transform(ctx, []byte("x"), module.FromPath("/p/a.js", ""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineContextCapabilities(t *testing.T) {
	root := t.TempDir()
	unit := Func{UnitName: "cap", Fn: func(src string, c *Context) (string, error) {
		c.AddDependency("./runtime")
		c.AddDependency("./a")
		c.Annotate("seen", c.Rel+"@"+c.Mode)
		return src, nil
	}}
	p, err := New([]Rule{{Unit: unit}}, Options{Root: root, Mode: "production"})
	require.NoError(t, err)

	out, err := p.Transform(context.Background(), []byte(`require("./a")`), idFor(root, "src/x.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{"./a", "./runtime"}, out.Dependencies)
	assert.Equal(t, map[string]string{"seen": "src/x.js@production"}, out.Annotations)
}

func TestPipelineDataModules(t *testing.T) {
	root := t.TempDir()
	unit := &countingUnit{name: "js"}
	p, err := New([]Rule{{Unit: unit}}, Options{Root: root})
	require.NoError(t, err)
	ctx := context.Background()

	out, err := p.Transform(ctx, []byte("{\"require\": \"./x\"}\n"), idFor(root, "data.json"))
	require.NoError(t, err)
	assert.Equal(t, `module.exports = {"require": "./x"};`, out.Code)
	assert.Empty(t, out.Dependencies)

	_, err = p.Transform(ctx, []byte("{nope"), idFor(root, "broken.json"))
	var te *errors.TransformError
	require.True(t, stderrors.As(err, &te))
	assert.Equal(t, "json", te.Transformer)

	raw := module.FromPath(filepath.Join(root, "tpl.html"), "raw")
	out, err = p.Transform(ctx, []byte("<p>\"hi\"</p>"), raw)
	require.NoError(t, err)
	assert.Equal(t, `module.exports = "<p>\"hi\"</p>";`, out.Code)

	assert.EqualValues(t, 0, unit.calls.Load())
}

func TestPipelineNormalizesToCommonJS(t *testing.T) {
	root := t.TempDir()
	esb, err := NewESBuild(ESBuildOptions{})
	require.NoError(t, err)
	p, err := New([]Rule{{Unit: esb, Exclude: []string{"node_modules/**"}}}, Options{Root: root})
	require.NoError(t, err)
	ctx := context.Background()

	// Excluded from the esbuild unit but still shipped as ES module syntax.
	out, err := p.Transform(ctx,
		[]byte("import dep from \"./dep.js\";\nexport default function pad(s) { return dep + s; }\n"),
		idFor(root, "node_modules/esm-only/index.js"))
	require.NoError(t, err)
	assert.Empty(t, out.Transformers)
	assert.NotContains(t, out.Code, "import dep")
	assert.NotContains(t, out.Code, "export default")
	assert.Contains(t, out.Code, `require("./dep.js")`)
	assert.Equal(t, []string{"./dep.js"}, out.Dependencies)

	out, err = p.Transform(ctx,
		[]byte("module.exports = () => import(\"./lazy\");\n"),
		idFor(root, "node_modules/lazy-lib/index.js"))
	require.NoError(t, err)
	assert.NotContains(t, out.Code, "import(")
	assert.Contains(t, out.Code, `require("./lazy")`)
	assert.Equal(t, []string{"./lazy"}, out.Dependencies)

	// CommonJS outside every rule is left as written.
	out, err = p.Transform(ctx, []byte(`module.exports = require("./x");`),
		idFor(root, "node_modules/cjs/index.js"))
	require.NoError(t, err)
	assert.Equal(t, `module.exports = require("./x");`, out.Code)
}

func TestPipelineCompilesUnhandledTypeScript(t *testing.T) {
	root := t.TempDir()
	p, err := New(nil, Options{Root: root})
	require.NoError(t, err)

	out, err := p.Transform(context.Background(),
		[]byte("const n: number = require(\"./n\");\nmodule.exports = n;\n"), idFor(root, "src/a.ts"))
	require.NoError(t, err)
	assert.NotContains(t, out.Code, ": number")
	assert.Equal(t, []string{"./n"}, out.Dependencies)
}

func TestPipelineParseError(t *testing.T) {
	root := t.TempDir()
	p, err := New(nil, Options{Root: root})
	require.NoError(t, err)

	id := idFor(root, "src/bad.js")
	_, err = p.Transform(context.Background(), []byte("const ok = 1;\nlet x = ;\n"), id)

	var te *errors.TransformError
	require.True(t, stderrors.As(err, &te))
	assert.Equal(t, "parse", te.Transformer)
	assert.Equal(t, string(id), te.Module)
	assert.Equal(t, 2, te.Line)
}
