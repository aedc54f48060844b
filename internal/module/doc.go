// Package module defines the data model shared by every build stage:
// module identities, module records, dependency edges and the module graph.
//
// An Identity is the canonical key of a module: an absolute, cleaned file
// path, optionally followed by a "?query" suffix. Externals (modules provided
// by the page at runtime) use the marker form "external:<specifier>" and are
// graph leaves.
//
// A Graph is keyed by identity, so a module imported from N places has
// exactly one Record. Records are written by the build worker that claimed
// them and are read-only once the graph has been assembled.
package module
