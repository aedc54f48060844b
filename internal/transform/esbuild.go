package transform

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ESBuildOptions configures the esbuild unit.
type ESBuildOptions struct {
	// Target is the syntax level to lower to ("es2015" ... "esnext").
	// Default: "es2015".
	Target string

	// JSX enables JSX in .js files. .jsx and .tsx files always allow it.
	JSX bool

	// JSXFactory and JSXFragment override React.createElement and
	// React.Fragment.
	JSXFactory  string
	JSXFragment string
}

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ESBuild converts ES modules to CommonJS, compiles JSX and lowers syntax
// to the configured target.
type ESBuild struct {
	opts   ESBuildOptions
	target api.Target
}

// NewESBuild validates opts and returns the unit.
func NewESBuild(opts ESBuildOptions) (*ESBuild, error) {
	if opts.Target == "" {
		opts.Target = "es2015"
	}
	target, ok := esTargets[strings.ToLower(opts.Target)]
	if !ok {
		return nil, fmt.Errorf("unknown esbuild target %q", opts.Target)
	}
	return &ESBuild{opts: opts, target: target}, nil
}

// Name implements Unit.
func (e *ESBuild) Name() string { return "esbuild" }

// Fingerprint implements Fingerprinter.
func (e *ESBuild) Fingerprint() string {
	return fmt.Sprintf("target=%s jsx=%t factory=%s fragment=%s",
		strings.ToLower(e.opts.Target), e.opts.JSX, e.opts.JSXFactory, e.opts.JSXFragment)
}

// Apply implements Unit.
func (e *ESBuild) Apply(src string, c *Context) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:      loaderFor(c.Module.Path(), e.opts.JSX),
		Format:      api.FormatCommonJS,
		Target:      e.target,
		JSXFactory:  e.opts.JSXFactory,
		JSXFragment: e.opts.JSXFragment,
		Sourcefile:  c.Rel,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", messageError(result.Errors[0])
	}
	return string(result.Code), nil
}

// DefineOptions configures the define unit.
type DefineOptions struct {
	// Values maps identifiers or member expressions to replacement
	// expressions, e.g. "process.env.NODE_ENV" -> "\"production\"".
	Values map[string]string
}

// Define substitutes compile-time constants.
type Define struct {
	values map[string]string
}

// NewDefine returns a define unit. When values has no
// process.env.NODE_ENV entry, it is derived from the build mode.
func NewDefine(opts DefineOptions) *Define {
	values := make(map[string]string, len(opts.Values))
	for k, v := range opts.Values {
		values[k] = v
	}
	return &Define{values: values}
}

// Name implements Unit.
func (d *Define) Name() string { return "define" }

// Fingerprint implements Fingerprinter.
func (d *Define) Fingerprint() string {
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, d.values[k])
	}
	return b.String()
}

// Apply implements Unit.
func (d *Define) Apply(src string, c *Context) (string, error) {
	values := d.values
	if _, ok := values["process.env.NODE_ENV"]; !ok && c.Mode != "" {
		values = make(map[string]string, len(d.values)+1)
		for k, v := range d.values {
			values[k] = v
		}
		values["process.env.NODE_ENV"] = fmt.Sprintf("%q", c.Mode)
	}
	if len(values) == 0 {
		return src, nil
	}

	result := api.Transform(src, api.TransformOptions{
		Loader:     loaderFor(c.Module.Path(), true),
		JSX:        api.JSXPreserve,
		Define:     values,
		Sourcefile: c.Rel,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", messageError(result.Errors[0])
	}
	return string(result.Code), nil
}

func loaderFor(path string, jsx bool) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsx":
		return api.LoaderJSX
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".js":
		if jsx {
			return api.LoaderJSX
		}
	}
	return api.LoaderJS
}

func messageError(msg api.Message) error {
	err := fmt.Errorf("%s", msg.Text)
	if msg.Location == nil {
		return err
	}
	return &LocatedError{
		Line:   msg.Location.Line,
		Column: msg.Location.Column + 1,
		Err:    err,
	}
}
