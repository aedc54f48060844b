package graph

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vpack/internal/errors"
	"github.com/vango-dev/vpack/internal/module"
	"github.com/vango-dev/vpack/internal/resolve"
	"github.com/vango-dev/vpack/internal/transform"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// recordingUnit counts how often each module is transformed.
type recordingUnit struct {
	mu    sync.Mutex
	calls map[module.Identity]int
}

func (u *recordingUnit) Name() string { return "record" }

func (u *recordingUnit) Apply(src string, c *transform.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.calls == nil {
		u.calls = make(map[module.Identity]int)
	}
	u.calls[c.Module]++
	return src, nil
}

func newBuilder(t *testing.T, root string, workers int, rules ...transform.Rule) *Builder {
	t.Helper()
	p, err := transform.New(rules, transform.Options{Root: root})
	require.NoError(t, err)
	return New(Options{
		Resolver: resolve.New(resolve.Options{
			Root:      root,
			Externals: map[string]string{"react": "React"},
		}),
		Transformer: p,
		Workers:     workers,
	})
}

func rel(t *testing.T, root string, g *module.Graph) []string {
	t.Helper()
	var out []string
	for _, r := range g.Modules() {
		out = append(out, r.ID.Rel(root))
	}
	return out
}

func TestBuildIndexScenario(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/index.js": `require("./a"); require("./b");`,
		"src/a.js":     `require("./b");`,
		"src/b.js":     `module.exports = 1;`,
	})

	g, err := newBuilder(t, root, 4).Build(context.Background(), []string{"./src/index.js"})
	require.NoError(t, err)

	assert.Equal(t, []string{"src/index.js", "src/a.js", "src/b.js"}, rel(t, root, g))
	for i, r := range g.Modules() {
		assert.Equal(t, i, r.Index)
	}
	require.NoError(t, g.CheckClosed())

	var edges []string
	for _, e := range g.Edges() {
		edges = append(edges, fmt.Sprintf("%s -%s-> %s", e.From.Rel(root), e.Specifier, e.To.Rel(root)))
	}
	assert.Equal(t, []string{
		"src/index.js -./a-> src/a.js",
		"src/index.js -./b-> src/b.js",
		"src/a.js -./b-> src/b.js",
	}, edges)
}

func TestBuildTransformsEachModuleOnce(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.js":   `require("./a"); require("./b"); require("./c");`,
		"a.js":      `require("./shared");`,
		"b.js":      `require("./shared"); require("./a");`,
		"c.js":      `require("./shared.js");`,
		"shared.js": ``,
		"other.js":  `require("./shared");`,
	})

	unit := &recordingUnit{}
	b := newBuilder(t, root, 8, transform.Rule{Unit: unit})
	g, err := b.Build(context.Background(), []string{"./main.js", "./other.js"})
	require.NoError(t, err)

	assert.Equal(t, 6, g.Len())
	require.Len(t, unit.calls, 6)
	for id, n := range unit.calls {
		assert.Equal(t, 1, n, id)
	}
	assert.Equal(t, Stats{Modules: 6, Transformed: 6}, b.Stats())

	// The pipeline memo serves the rebuild.
	_, err = b.Build(context.Background(), []string{"./main.js", "./other.js"})
	require.NoError(t, err)
	assert.Equal(t, Stats{Modules: 6, Cached: 6}, b.Stats())
}

func TestBuildCycles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.js": `require("./b");`,
		"b.js": `require("./c");`,
		"c.js": `require("./a"); require("./c");`,
	})

	g, err := newBuilder(t, root, 2).Build(context.Background(), []string{"./a.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "b.js", "c.js"}, rel(t, root, g))
	assert.Len(t, g.Edges(), 4)
	require.NoError(t, g.CheckClosed())
}

func TestBuildReportsEveryFailure(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"index.js": `require("./ok"); require("./missing-one"); require("./bad");`,
		"ok.js":    `require("./missing-two");`,
		"bad.js":   `syntax`,
	})

	failing := transform.Func{UnitName: "strict", Fn: func(src string, c *transform.Context) (string, error) {
		if filepath.Base(c.Module.Path()) == "bad.js" {
			return "", fmt.Errorf("rejected")
		}
		return src, nil
	}}
	g, err := newBuilder(t, root, 4, transform.Rule{Unit: failing}).
		Build(context.Background(), []string{"./index.js", "./nope.js"})
	assert.Nil(t, g)

	var gerr *GraphError
	require.True(t, stderrors.As(err, &gerr))
	require.Len(t, gerr.Errors, 4)

	var specs []string
	for _, e := range gerr.Errors {
		var re *errors.ResolutionError
		if stderrors.As(e, &re) {
			specs = append(specs, re.Specifier)
			continue
		}
		var te *errors.TransformError
		require.True(t, stderrors.As(e, &te), e)
		specs = append(specs, te.Transformer)
	}
	// Entry failures first, then discovery order.
	assert.Equal(t, []string{"./nope.js", "./missing-one", "./missing-two", "strict"}, specs)

	require.NotNil(t, gerr.Graph)
	assert.Equal(t, []string{"index.js", "ok.js", "bad.js"}, rel(t, root, gerr.Graph))
	assert.NoError(t, gerr.Graph.CheckClosed())

	var re *errors.ResolutionError
	assert.True(t, stderrors.As(err, &re))
}

func TestBuildReadFailure(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.js": ``})

	p, err := transform.New(nil, transform.Options{Root: root})
	require.NoError(t, err)
	b := New(Options{
		Resolver:    resolve.New(resolve.Options{Root: root}),
		Transformer: p,
		ReadFile: func(string) ([]byte, error) {
			return nil, os.ErrPermission
		},
	})

	_, err = b.Build(context.Background(), []string{"./index.js"})
	var te *errors.TransformError
	require.True(t, stderrors.As(err, &te))
	assert.Equal(t, "read", te.Transformer)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestBuildExternals(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.js": `require("react");`})

	g, err := newBuilder(t, root, 1).Build(context.Background(), []string{"./index.js"})
	require.NoError(t, err)

	r, ok := g.Get(module.External("react"))
	require.True(t, ok)
	assert.True(t, r.IsExternal())
	assert.Equal(t, "React", r.External)
	assert.Empty(t, g.EdgesFrom(r.ID))
}

func TestBuildIsDeterministic(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{"index.js": ""}
	index := ""
	for i := 0; i < 20; i++ {
		index += fmt.Sprintf("require(\"./m%d\");", i)
		files[fmt.Sprintf("m%d.js", i)] = fmt.Sprintf("require(\"./leaf%d\");", i%5)
	}
	for i := 0; i < 5; i++ {
		files[fmt.Sprintf("leaf%d.js", i)] = ""
	}
	files["index.js"] = index
	writeFiles(t, root, files)

	var first []string
	var firstEdges []module.Edge
	for run := 0; run < 10; run++ {
		g, err := newBuilder(t, root, 8).Build(context.Background(), []string{"./index.js"})
		require.NoError(t, err)
		if run == 0 {
			first = rel(t, root, g)
			firstEdges = g.Edges()
			continue
		}
		assert.Equal(t, first, rel(t, root, g))
		assert.Equal(t, firstEdges, g.Edges())
	}
	assert.Len(t, first, 26)
}

type blockingTransformer struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingTransformer) Transform(ctx context.Context, _ []byte, _ module.Identity) (*transform.Output, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBuildCanceled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.js": ""})

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newBuilder(t, root, 2).Build(ctx, []string{"./index.js"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("while transforming", func(t *testing.T) {
		bt := &blockingTransformer{started: make(chan struct{})}
		b := New(Options{
			Resolver:    resolve.New(resolve.Options{Root: root}),
			Transformer: bt,
			Workers:     2,
		})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-bt.started
			cancel()
		}()
		_, err := b.Build(ctx, []string{"./index.js"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuildNoEntries(t *testing.T) {
	g, err := newBuilder(t, t.TempDir(), 2).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
}
