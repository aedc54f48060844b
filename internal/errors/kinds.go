package errors

import (
	"fmt"
	"strings"
)

// Diagnoser is implemented by errors that can describe themselves as a
// coded diagnostic.
type Diagnoser interface {
	Diagnostic() *VpackError
}

// ResolutionError reports a specifier that could not be mapped to a module.
type ResolutionError struct {
	// Specifier is the import text as written in source.
	Specifier string

	// From is the identity of the importing module; empty for entry points.
	From string

	// Candidates lists every path tried, in lookup order.
	Candidates []string

	// Err is an underlying failure (for example a malformed package.json).
	Err error
}

func (e *ResolutionError) Error() string {
	from := e.From
	if from == "" {
		from = "entry"
	}
	msg := fmt.Sprintf("cannot resolve %q from %s", e.Specifier, from)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Diagnostic implements Diagnoser.
func (e *ResolutionError) Diagnostic() *VpackError {
	code := "E200"
	if e.Err != nil {
		code = "E201"
	}
	d := New(code).WithDetail(e.Error()).Wrap(e)
	if len(e.Candidates) > 0 {
		d.WithSuggestion("Tried: " + strings.Join(e.Candidates, ", "))
	}
	return d
}

// TransformError reports a transformer unit rejecting a module.
type TransformError struct {
	// Module is the identity of the module being transformed.
	Module string

	// Transformer is the name of the failing unit. It is "read" when the
	// source could not be loaded.
	Transformer string

	// Line and Column locate the failure when the unit reports one.
	Line   int
	Column int

	Err error
}

func (e *TransformError) Error() string {
	loc := e.Module
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Module, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %s: %v", loc, e.Transformer, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Diagnostic implements Diagnoser.
func (e *TransformError) Diagnostic() *VpackError {
	code := "E210"
	if e.Transformer == "read" {
		code = "E211"
	}
	d := New(code).WithDetail(fmt.Sprintf("[%s] %v", e.Transformer, e.Err)).Wrap(e)
	if e.Line > 0 {
		d.WithLocation(e.Module, e.Line, e.Column)
	} else {
		d.Location = &Location{File: e.Module}
	}
	return d
}

// EmissionError reports an I/O failure while writing an asset or running
// an output plugin hook.
type EmissionError struct {
	// Path is the asset path relative to the output root, if known.
	Path string

	// Plugin is the name of the failing plugin, if the failure came from a hook.
	Plugin string

	Err error
}

func (e *EmissionError) Error() string {
	switch {
	case e.Plugin != "":
		return fmt.Sprintf("plugin %s: %v", e.Plugin, e.Err)
	case e.Path != "":
		return fmt.Sprintf("emit %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("emit: %v", e.Err)
}

func (e *EmissionError) Unwrap() error { return e.Err }

// Diagnostic implements Diagnoser.
func (e *EmissionError) Diagnostic() *VpackError {
	code := "E300"
	if e.Plugin != "" {
		code = "E301"
	}
	return New(code).
		WithDetail(e.Error()).
		WithSuggestion("Previous output was left untouched; fix the cause and rebuild").
		Wrap(e)
}

// ConfigError reports an invalid build configuration.
type ConfigError struct {
	// Field names the offending setting (e.g. "output.filename").
	Field string

	// Reason describes what is wrong with it.
	Reason string

	// Code overrides the default diagnostic code (E100).
	Code string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Diagnostic implements Diagnoser.
func (e *ConfigError) Diagnostic() *VpackError {
	code := e.Code
	if code == "" {
		code = "E100"
	}
	return New(code).WithDetail(e.Error()).Wrap(e)
}
