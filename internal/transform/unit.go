package transform

import (
	"github.com/vango-dev/vpack/internal/module"
)

// Unit is a single transformer in the pipeline.
type Unit interface {
	// Name identifies the unit in errors and transform metadata.
	Name() string

	// Apply returns the rewritten source. Returning src unchanged makes the
	// unit inspect-only.
	Apply(src string, c *Context) (string, error)
}

// Fingerprinter is implemented by units whose output depends on options.
// The fingerprint is part of the memo key, so changing a unit's options
// invalidates previously transformed modules.
type Fingerprinter interface {
	Fingerprint() string
}

// Func adapts a function to the Unit interface.
type Func struct {
	UnitName string
	Fn       func(src string, c *Context) (string, error)
}

// Name implements Unit.
func (f Func) Name() string { return f.UnitName }

// Apply implements Unit.
func (f Func) Apply(src string, c *Context) (string, error) { return f.Fn(src, c) }

// Context is the per-module state shared by the units of one pipeline run.
type Context struct {
	// Module is the identity being transformed.
	Module module.Identity

	// Rel is the module path relative to the project root.
	Rel string

	// Mode is the build mode ("development" or "production").
	Mode string

	// Unit is the name of the unit currently running.
	Unit string

	deps        []string
	annotations map[string]string
}

// AddDependency records a dependency the unit injected at runtime level,
// independent of what appears in the source.
func (c *Context) AddDependency(specifier string) {
	c.deps = append(c.deps, specifier)
}

// Annotate attaches a key/value note to the module record.
func (c *Context) Annotate(key, value string) {
	if c.annotations == nil {
		c.annotations = make(map[string]string)
	}
	c.annotations[key] = value
}
