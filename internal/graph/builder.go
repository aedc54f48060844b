package graph

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/vpack/internal/errors"
	"github.com/vango-dev/vpack/internal/module"
	"github.com/vango-dev/vpack/internal/transform"
)

// Resolver maps specifiers to module identities.
type Resolver interface {
	Resolve(specifier string, from module.Identity) (module.Identity, error)
	External(id module.Identity) (string, bool)
}

// Transformer turns raw module source into code plus dependencies.
type Transformer interface {
	Transform(ctx context.Context, raw []byte, id module.Identity) (*transform.Output, error)
}

// Options configures a Builder.
type Options struct {
	Resolver    Resolver
	Transformer Transformer

	// Workers is the number of modules processed concurrently.
	// Default: runtime.NumCPU().
	Workers int

	// ReadFile loads module sources. Default: os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	// Logger receives per-module debug records.
	Logger *slog.Logger
}

// Stats summarizes one Build call.
type Stats struct {
	Modules     int
	Transformed int
	Cached      int
}

// Builder builds one module graph. A Builder may be reused; Stats reports
// the most recent Build.
type Builder struct {
	opts Options

	transformed atomic.Int64
	cached      atomic.Int64
	modules     int
}

// slot is the per-module work area. It is written only by the worker that
// claimed the module.
type slot struct {
	id          module.Identity
	record      *module.Record
	err         error
	resolveErrs []error
}

// New creates a Builder.
func New(opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return &Builder{opts: opts}
}

// Stats returns the counters of the last Build.
func (b *Builder) Stats() Stats {
	return Stats{
		Modules:     b.modules,
		Transformed: int(b.transformed.Load()),
		Cached:      int(b.cached.Load()),
	}
}

// Build resolves entries (specifiers relative to the project root) and
// builds the graph of everything they reach. If any module fails, the
// returned error is a *GraphError holding every failure; if ctx is
// canceled, ctx.Err() is returned.
func (b *Builder) Build(ctx context.Context, entries []string) (*module.Graph, error) {
	b.transformed.Store(0)
	b.cached.Store(0)
	b.modules = 0

	var (
		slots     sync.Map
		q         = newQueue()
		entryIDs  []module.Identity
		entryErrs []error
	)

	claim := func(id module.Identity) {
		s := &slot{id: id}
		if _, loaded := slots.LoadOrStore(id, s); !loaded {
			q.push(s)
		}
	}

	for _, spec := range entries {
		id, err := b.opts.Resolver.Resolve(spec, "")
		if err != nil {
			entryErrs = append(entryErrs, err)
			continue
		}
		entryIDs = append(entryIDs, id)
		claim(id)
	}
	q.seal()

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, q.close)
	defer stop()

	for i := 0; i < b.opts.Workers; i++ {
		g.Go(func() error {
			for {
				s, ok := q.pop()
				if !ok {
					return gctx.Err()
				}
				err := b.process(gctx, s, claim)
				q.done()
				if err != nil {
					return err
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	graph, errs := assemble(entryIDs, &slots)
	b.modules = graph.Len()
	for _, cycle := range graph.Cycles() {
		b.opts.Logger.Debug("circular dependency",
			"modules", len(cycle),
			"first", string(cycle[0]),
		)
	}
	errs = append(entryErrs, errs...)
	if len(errs) > 0 {
		return nil, &GraphError{Graph: graph, Errors: errs}
	}
	return graph, nil
}

// process fills the slot of one module. Only context errors are returned;
// module failures are stored on the slot.
func (b *Builder) process(ctx context.Context, s *slot, claim func(module.Identity)) error {
	if s.id.IsExternal() {
		expr, _ := b.opts.Resolver.External(s.id)
		s.record = &module.Record{ID: s.id, External: expr}
		return nil
	}

	raw, err := b.opts.ReadFile(s.id.Path())
	if err != nil {
		s.err = &errors.TransformError{Module: string(s.id), Transformer: "read", Err: err}
		return nil
	}

	out, err := b.opts.Transformer.Transform(ctx, raw, s.id)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.err = err
		return nil
	}
	if out.Cached {
		b.cached.Add(1)
	} else {
		b.transformed.Add(1)
	}
	b.opts.Logger.Debug("module transformed",
		"module", s.id,
		"cached", out.Cached,
		"dependencies", len(out.Dependencies))

	rec := &module.Record{
		ID:           s.id,
		Raw:          raw,
		Code:         out.Code,
		ContentHash:  out.ContentHash,
		Specifiers:   out.Dependencies,
		Resolved:     make([]module.Identity, len(out.Dependencies)),
		Transformers: out.Transformers,
		Annotations:  out.Annotations,
	}
	s.resolveErrs = make([]error, len(out.Dependencies))

	for i, spec := range out.Dependencies {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := b.opts.Resolver.Resolve(spec, s.id)
		if err != nil {
			s.resolveErrs[i] = err
			continue
		}
		rec.Resolved[i] = target
		claim(target)
	}
	s.record = rec
	return nil
}

// assemble walks the filled slots breadth-first from the entries and builds
// the graph with deterministic indices, edges and error order.
func assemble(entries []module.Identity, slots *sync.Map) (*module.Graph, []error) {
	g := module.NewGraph(entries...)
	var errs []error

	queue := make([]module.Identity, 0, len(entries))
	seen := make(map[module.Identity]bool)
	for _, id := range entries {
		if !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		v, ok := slots.Load(id)
		if !ok {
			continue
		}
		s := v.(*slot)
		if s.err != nil {
			errs = append(errs, s.err)
		}
		rec := s.record
		if rec == nil {
			rec = &module.Record{ID: id}
		}
		g.Add(rec)

		for i, spec := range rec.Specifiers {
			if s.resolveErrs[i] != nil {
				errs = append(errs, s.resolveErrs[i])
				continue
			}
			to := rec.Resolved[i]
			g.AddEdge(module.Edge{From: id, Specifier: spec, To: to})
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return g, errs
}
