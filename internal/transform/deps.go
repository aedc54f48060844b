package transform

import (
	"encoding/json"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// metafile is the part of esbuild's metafile read by Analyze.
type metafile struct {
	Inputs map[string]metafileInput `json:"inputs"`
}

type metafileInput struct {
	Imports []metafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"`
}

type metafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// Import kinds that load a module at runtime. require.resolve, CSS
// url() and the like only name a path.
var dependencyKinds = map[string]bool{
	"import-statement": true,
	"require-call":     true,
	"dynamic-import":   true,
}

// Analysis is what the parser learned about a module.
type Analysis struct {
	// Dependencies lists the literal specifiers of import declarations,
	// re-exports, require() calls and import() expressions, in source
	// order with duplicates removed.
	Dependencies []string

	// ESM is set when the module uses import or export syntax.
	ESM bool

	// Dynamic is set when the module contains an import() expression.
	Dynamic bool
}

// Analyze parses code with esbuild and reads its import records. Every
// specifier is marked external so nothing outside code is read.
func Analyze(code, sourcefile string, loader api.Loader) (*Analysis, error) {
	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   code,
			Sourcefile: sourcefile,
			Loader:     loader,
		},
		Bundle:   true,
		Write:    false,
		Format:   api.FormatESModule,
		Metafile: true,
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{externalizeAll},
	})
	if len(result.Errors) > 0 {
		return nil, messageError(result.Errors[0])
	}

	var meta metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, fmt.Errorf("read metafile: %w", err)
	}

	a := &Analysis{}
	seen := make(map[string]bool)
	for _, in := range meta.Inputs {
		if in.Format == "esm" {
			a.ESM = true
		}
		for _, imp := range in.Imports {
			if !dependencyKinds[imp.Kind] {
				continue
			}
			if imp.Kind == "dynamic-import" {
				a.Dynamic = true
			}
			spec := imp.Path
			if imp.Original != "" {
				spec = imp.Original
			}
			if !seen[spec] {
				seen[spec] = true
				a.Dependencies = append(a.Dependencies, spec)
			}
		}
	}
	return a, nil
}

var externalizeAll = api.Plugin{
	Name: "vpack-externals",
	Setup: func(build api.PluginBuild) {
		build.OnResolve(api.OnResolveOptions{Filter: ".*"},
			func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{Path: args.Path, External: true}, nil
			})
	},
}

// toCommonJS rewrites import/export syntax and import() expressions
// into require calls, the only form the emitted runtime understands.
// import() becomes a promise of the required namespace.
func toCommonJS(code, sourcefile string, loader api.Loader) (string, error) {
	result := api.Transform(code, api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatCommonJS,
		Supported:  map[string]bool{"dynamic-import": false},
		Sourcefile: sourcefile,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", messageError(result.Errors[0])
	}
	return string(result.Code), nil
}
