package graph

import (
	"fmt"
	"strings"

	"github.com/vango-dev/vpack/internal/module"
)

// GraphError aggregates every module error of one traversal, in discovery
// order.
type GraphError struct {
	// Graph is the partial graph assembled from the modules that could be
	// processed.
	Graph *module.Graph

	Errors []error
}

func (e *GraphError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d module errors:\n  %s", len(e.Errors), strings.Join(msgs, "\n  "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *GraphError) Unwrap() []error {
	return e.Errors
}
