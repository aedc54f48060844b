package module

// Record is one module in the graph.
type Record struct {
	// ID is the canonical identity of the module.
	ID Identity

	// Raw is the source as read from disk.
	Raw []byte

	// Code is the source after the transform pipeline.
	Code string

	// ContentHash is the hex sha256 of Raw.
	ContentHash string

	// Specifiers are the dependency specifiers in declaration order.
	Specifiers []string

	// Resolved holds the identity each specifier resolved to, index-aligned
	// with Specifiers. Failed resolutions are left empty.
	Resolved []Identity

	// Transformers names the units that ran on this module, in order.
	Transformers []string

	// Annotations are key/value notes left by inspect-only units.
	Annotations map[string]string

	// External is the runtime expression an external module evaluates to.
	External string

	// Index is the first-discovery position of the module in the graph.
	Index int
}

// IsExternal reports whether the record is an external leaf.
func (r *Record) IsExternal() bool {
	return r.ID.IsExternal()
}

// Edge is a directed dependency from one module to another, labelled with
// the specifier text that produced it.
type Edge struct {
	From      Identity
	Specifier string
	To        Identity
}
