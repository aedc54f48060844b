// Package build runs compilations: one pass from configured entry points to
// emitted assets.
//
// A Builder owns the long-lived parts of the pipeline (resolver, transform
// pipeline with its memo, plugins, metrics) so that repeated builds only
// re-transform modules whose source changed.
//
// # Usage
//
//	builder, err := build.New(cfg, build.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	comp, err := builder.Build(ctx, nil)
//	if err != nil {
//	    errors.FprintError(os.Stderr, err)
//	    os.Exit(1)
//	}
//
//	fmt.Printf("Built %d modules in %s\n", comp.Stats.Modules, comp.Duration)
//
// # Phases
//
//	resolve entries -> graph (parallel transform) -> chunk plan -> emit
//
// Each phase is traced with OpenTelemetry under a "vpack.build" span and
// counted in Prometheus metrics.
package build
