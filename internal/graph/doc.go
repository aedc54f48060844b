// Package graph builds the module graph of a compilation.
//
// Starting from the entry specifiers, a fixed pool of workers reads,
// transforms and resolves modules in parallel. Each module is claimed
// exactly once through an insert-if-absent set, so shared dependencies and
// cycles are processed a single time.
//
// Workers only fill per-module slots. Once the pool has drained, the graph
// is assembled on one goroutine by a breadth-first walk from the entries,
// so module indices, edge order and error order do not depend on
// scheduling.
//
// A traversal never stops at the first bad module: every resolution and
// transform error is collected and returned together in a GraphError.
package graph
