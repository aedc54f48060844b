package build

import (
	"fmt"

	"github.com/vango-dev/vpack/internal/config"
	"github.com/vango-dev/vpack/internal/emit"
	"github.com/vango-dev/vpack/internal/errors"
	"github.com/vango-dev/vpack/internal/plugin"
	"github.com/vango-dev/vpack/internal/resolve"
	"github.com/vango-dev/vpack/internal/transform"
)

type esbuildOptions struct {
	Target      string `json:"target"`
	JSX         bool   `json:"jsx"`
	JSXFactory  string `json:"jsxFactory"`
	JSXFragment string `json:"jsxFragment"`
}

type injectOptions struct {
	Modules []string `json:"modules"`
}

type sizeLimitOptions struct {
	Limit int `json:"limit"`
}

type htmlOptions struct {
	Template string   `json:"template"`
	Filename string   `json:"filename"`
	Title    string   `json:"title"`
	Chunks   []string `json:"chunks"`
}

type manifestOptions struct {
	Filename string `json:"filename"`
}

type s3Options struct {
	Bucket      string   `json:"bucket"`
	Prefix      string   `json:"prefix"`
	Region      string   `json:"region"`
	Endpoint    string   `json:"endpoint"`
	Modes       []string `json:"modes"`
	Concurrency int      `json:"concurrency"`
}

// newResolver builds the resolver from the "resolve" section.
func newResolver(cfg *config.Config) *resolve.Resolver {
	return resolve.New(resolve.Options{
		Root:       cfg.Dir(),
		Extensions: cfg.Resolve.Extensions,
		ModuleDirs: cfg.Resolve.Modules,
		MainFields: cfg.Resolve.MainFields,
		Alias:      cfg.Resolve.Alias,
		Externals:  cfg.Resolve.Externals,
	})
}

// newPipeline builds the transform pipeline from the "transform" section.
func newPipeline(cfg *config.Config) (*transform.Pipeline, error) {
	rules := make([]transform.Rule, 0, len(cfg.Transform))
	for i, u := range cfg.Transform {
		unit, err := newUnit(u)
		if err != nil {
			return nil, &errors.ConfigError{Field: fmt.Sprintf("transform[%d]", i), Reason: err.Error()}
		}
		rules = append(rules, transform.Rule{Unit: unit, Test: u.Test, Exclude: u.Exclude})
	}
	return transform.New(rules, transform.Options{
		Root:      cfg.Dir(),
		Mode:      cfg.Mode,
		CacheSize: cfg.CacheSize,
	})
}

func newUnit(u config.UnitConfig) (transform.Unit, error) {
	switch u.Use {
	case "esbuild":
		var opts esbuildOptions
		if err := u.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return transform.NewESBuild(transform.ESBuildOptions{
			Target:      opts.Target,
			JSX:         opts.JSX,
			JSXFactory:  opts.JSXFactory,
			JSXFragment: opts.JSXFragment,
		})

	case "define":
		var values map[string]string
		if err := u.DecodeOptions(&values); err != nil {
			return nil, err
		}
		return transform.NewDefine(transform.DefineOptions{Values: values}), nil

	case "inject":
		var opts injectOptions
		if err := u.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return transform.NewInject(opts.Modules), nil

	case "size-limit":
		var opts sizeLimitOptions
		if err := u.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return &transform.SizeLimit{Limit: opts.Limit}, nil
	}
	return nil, fmt.Errorf("unknown transformer %q", u.Use)
}

// newPlugins builds the output plugins from the "plugins" section, in
// configured order.
func newPlugins(cfg *config.Config) ([]emit.Plugin, error) {
	plugins := make([]emit.Plugin, 0, len(cfg.Plugins))
	for i, u := range cfg.Plugins {
		p, err := newPlugin(cfg, u)
		if err != nil {
			return nil, &errors.ConfigError{Field: fmt.Sprintf("plugins[%d]", i), Reason: err.Error()}
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

func newPlugin(cfg *config.Config, u config.UnitConfig) (emit.Plugin, error) {
	switch u.Use {
	case "clean":
		return plugin.NewClean(), nil

	case "html":
		var opts htmlOptions
		if err := u.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return plugin.NewHTML(plugin.HTMLOptions{
			Template:   opts.Template,
			Root:       cfg.Dir(),
			Filename:   opts.Filename,
			PublicPath: cfg.Output.PublicPath,
			Title:      opts.Title,
			Chunks:     opts.Chunks,
		}), nil

	case "manifest":
		var opts manifestOptions
		if err := u.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return plugin.NewManifest(opts.Filename), nil

	case "s3":
		var opts s3Options
		if err := u.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return plugin.NewS3Publish(plugin.S3Options{
			Bucket:      opts.Bucket,
			Prefix:      opts.Prefix,
			Region:      opts.Region,
			Endpoint:    opts.Endpoint,
			Modes:       opts.Modes,
			Concurrency: opts.Concurrency,
			Getenv:      cfg.Getenv,
		})
	}
	return nil, fmt.Errorf("unknown plugin %q", u.Use)
}
