package errors

import (
	"fmt"
	"os"
	"strings"
)

// Category groups diagnostics by the build phase that raised them.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryResolve   Category = "resolve"
	CategoryTransform Category = "transform"
	CategoryEmit      Category = "emit"
	CategoryDev       Category = "dev"
	CategoryCLI       Category = "cli"
	CategoryInternal  Category = "internal"
)

// Location points at a position inside a module. Line and Column are
// 1-based; zero means unknown.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func (l *Location) String() string {
	switch {
	case l == nil:
		return ""
	case l.Line == 0:
		return l.File
	case l.Column == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Frame is the excerpt of a module shown around a Location.
type Frame struct {
	// Start is the line number of Lines[0].
	Start int
	Lines []string
}

// frameRadius is the number of lines shown on each side of the failing line.
const frameRadius = 2

// VpackError is a coded diagnostic. Typed build errors convert to one
// through Diagnoser; the CLI and the dev server only ever render these.
type VpackError struct {
	Code     string    `json:"code,omitempty"`
	Category Category  `json:"category"`
	Message  string    `json:"message"`
	Detail   string    `json:"detail,omitempty"`
	Location *Location `json:"location,omitempty"`

	// Frame is filled from the module source when the location has a line.
	Frame *Frame `json:"-"`

	Suggestion string `json:"suggestion,omitempty"`
	DocURL     string `json:"docUrl,omitempty"`

	Wrapped error `json:"-"`
}

func (e *VpackError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

func (e *VpackError) Unwrap() error { return e.Wrapped }

// WithLocation points the diagnostic at file:line:column and loads the
// surrounding source lines when the file is readable.
func (e *VpackError) WithLocation(file string, line, column int) *VpackError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Frame = readFrame(file, line)
	return e
}

func (e *VpackError) WithSuggestion(s string) *VpackError {
	e.Suggestion = s
	return e
}

func (e *VpackError) WithDetail(d string) *VpackError {
	e.Detail = d
	return e
}

// Wrap records the error the diagnostic was built from.
func (e *VpackError) Wrap(err error) *VpackError {
	e.Wrapped = err
	return e
}

func readFrame(file string, line int) *Frame {
	if line <= 0 {
		return nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if line > len(lines) {
		return nil
	}
	start := max(line-frameRadius, 1)
	end := min(line+frameRadius, len(lines))
	return &Frame{Start: start, Lines: lines[start-1 : end]}
}

// New returns the diagnostic registered under code. Unregistered codes
// yield a bare diagnostic so a typo never hides the failure.
func New(code string) *VpackError {
	t, ok := registry[code]
	if !ok {
		return &VpackError{Code: code, Category: CategoryInternal, Message: "Unknown error"}
	}
	return &VpackError{
		Code:     code,
		Category: t.Category,
		Message:  t.Message,
		Detail:   t.Detail,
		DocURL:   t.DocURL,
	}
}

// Newf returns an uncoded diagnostic.
func Newf(category Category, format string, args ...any) *VpackError {
	return &VpackError{Category: category, Message: fmt.Sprintf(format, args...)}
}

// FromError returns the diagnostic for err. Errors that carry none are
// reported under fallback with their text as the detail.
func FromError(err error, fallback string) *VpackError {
	if err == nil {
		return nil
	}
	if d := Diagnose(err); d != nil {
		return d
	}
	return New(fallback).WithDetail(err.Error()).Wrap(err)
}
