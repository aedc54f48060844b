package build

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vpack/internal/chunk"
	"github.com/vango-dev/vpack/internal/config"
	"github.com/vango-dev/vpack/internal/emit"
	"github.com/vango-dev/vpack/internal/graph"
	"github.com/vango-dev/vpack/internal/module"
	"github.com/vango-dev/vpack/internal/resolve"
	"github.com/vango-dev/vpack/internal/transform"
)

// Default tracer name for build spans.
const defaultTracerName = "vpack"

// Options configures the builder.
type Options struct {
	// InMemory keeps assets in the Compilation instead of writing them to
	// the output directory.
	InMemory bool

	// Logger receives build records. Default: warnings to stderr.
	Logger *slog.Logger

	// OnProgress is called with progress updates.
	OnProgress func(step string)

	// Registry receives the build metrics. Default: a private registry.
	Registry prometheus.Registerer

	// Metrics tunes metric names and buckets.
	Metrics MetricsConfig

	// Tracer traces build phases. Default: otel.Tracer("vpack").
	Tracer trace.Tracer

	// ReadFile loads module sources. Default: os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// Builder runs compilations for one configuration. Build calls must not
// overlap.
type Builder struct {
	config   *config.Config
	options  Options
	resolver *resolve.Resolver
	pipeline *transform.Pipeline
	plugins  []emit.Plugin
	metrics  *metrics
}

// New validates the configuration and creates a builder with its resolver,
// transform pipeline and plugins.
func New(cfg *config.Config, options Options) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	if options.Registry == nil {
		options.Registry = prometheus.NewRegistry()
	}
	if options.Tracer == nil {
		options.Tracer = otel.Tracer(defaultTracerName)
	}
	if options.Metrics.Namespace == "" {
		options.Metrics = defaultMetricsConfig()
	}

	pipeline, err := newPipeline(cfg)
	if err != nil {
		return nil, err
	}
	plugins, err := newPlugins(cfg)
	if err != nil {
		return nil, err
	}

	return &Builder{
		config:   cfg,
		options:  options,
		resolver: newResolver(cfg),
		pipeline: pipeline,
		plugins:  plugins,
		metrics:  newMetrics(options.Registry, options.Metrics),
	}, nil
}

// Config returns the builder's configuration.
func (b *Builder) Config() *config.Config {
	return b.config
}

// Build runs one compilation. changed lists the paths that triggered it and
// is recorded on the result. The returned Compilation is never nil; when
// err is non-nil its Status is StatusFailed and Errors holds every error.
// A canceled build returns ctx.Err() and writes nothing.
func (b *Builder) Build(ctx context.Context, changed []string) (*Compilation, error) {
	c := &Compilation{
		ID:      uuid.NewString(),
		Mode:    b.config.Mode,
		Status:  StatusPending,
		Changed: changed,
		Started: time.Now(),
	}

	ctx, span := b.options.Tracer.Start(ctx, "vpack.build",
		trace.WithAttributes(
			attribute.String("vpack.compilation_id", c.ID),
			attribute.String("vpack.mode", c.Mode),
			attribute.Int("vpack.changed", len(changed)),
		))
	defer span.End()

	err := b.run(ctx, c)
	c.Duration = time.Since(c.Started)

	if err != nil {
		c.Status = StatusFailed
		c.Errors = flatten(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.options.Logger.Warn("build failed",
			"compilation", c.ID,
			"errors", len(c.Errors),
			"duration", c.Duration)
	} else {
		c.Status = StatusSucceeded
		span.SetStatus(codes.Ok, "")
		b.options.Logger.Info("build succeeded",
			"compilation", c.ID,
			"modules", c.Stats.Modules,
			"transformed", c.Stats.Transformed,
			"cached", c.Stats.Cached,
			"assets", c.Stats.Assets,
			"duration", c.Duration)
	}
	span.SetAttributes(
		attribute.Int("vpack.modules", c.Stats.Modules),
		attribute.Int("vpack.transformed", c.Stats.Transformed),
	)
	b.metrics.record(c)

	return c, err
}

func (b *Builder) run(ctx context.Context, c *Compilation) error {
	// Graph
	b.progress("Building module graph...")
	gb := graph.New(graph.Options{
		Resolver:    b.resolver,
		Transformer: b.pipeline,
		Workers:     b.config.Workers,
		ReadFile:    b.options.ReadFile,
		Logger:      b.options.Logger,
	})
	var g *module.Graph
	err := b.phase(ctx, "vpack.graph", func(ctx context.Context) error {
		var err error
		g, err = gb.Build(ctx, b.config.Entry.Specifiers())
		return err
	})
	stats := gb.Stats()
	c.Stats.Modules = stats.Modules
	c.Stats.Transformed = stats.Transformed
	c.Stats.Cached = stats.Cached
	if err != nil {
		var ge *graph.GraphError
		if errors.As(err, &ge) {
			c.Graph = ge.Graph
		}
		return err
	}
	c.Graph = g

	// Chunks
	b.progress("Planning chunks...")
	entries := make([]chunk.Entry, len(b.config.Entry))
	for i, e := range b.config.Entry {
		entries[i] = chunk.Entry{Name: e.Name, ID: g.Entries[i]}
	}
	err = b.phase(ctx, "vpack.chunk", func(context.Context) error {
		var err error
		c.Chunks, err = chunk.Plan(g, entries)
		return err
	})
	if err != nil {
		return err
	}

	// Emit
	b.progress("Emitting assets...")
	emitter, err := emit.New(emit.Options{
		OutputRoot:    b.config.OutputPath(),
		Filename:      b.config.Output.Filename,
		HashLength:    b.config.Output.HashLength,
		Root:          b.config.Dir(),
		CompilationID: c.ID,
		Mode:          b.config.Mode,
		Plugins:       b.plugins,
		InMemory:      b.options.InMemory,
		Logger:        b.options.Logger,
	})
	if err != nil {
		return err
	}
	err = b.phase(ctx, "vpack.emit", func(ctx context.Context) error {
		var err error
		c.Assets, err = emitter.Emit(ctx, c.Chunks)
		return err
	})
	if err != nil {
		return err
	}
	c.Stats.Assets = len(c.Assets)
	c.Hash = compilationHash(c.Chunks)
	return nil
}

// phase runs fn under a child span.
func (b *Builder) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := b.options.Tracer.Start(ctx, name)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// progress reports a progress update.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

// flatten returns the individual errors of a graph failure, or err alone.
func flatten(err error) []error {
	var ge *graph.GraphError
	if errors.As(err, &ge) {
		return ge.Errors
	}
	return []error{err}
}
