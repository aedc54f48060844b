package module

import (
	"path/filepath"
	"strings"
)

const externalPrefix = "external:"

// Identity is the canonical, resolved name of a module.
type Identity string

// External returns the marker identity for a specifier that is provided
// outside the bundle.
func External(specifier string) Identity {
	return Identity(externalPrefix + specifier)
}

// FromPath returns the identity of a file path with an optional query.
func FromPath(path, query string) Identity {
	id := filepath.Clean(path)
	if query != "" {
		id += "?" + strings.TrimPrefix(query, "?")
	}
	return Identity(id)
}

// IsExternal reports whether the identity marks an external module.
func (id Identity) IsExternal() bool {
	return strings.HasPrefix(string(id), externalPrefix)
}

// Specifier returns the original specifier of an external identity.
func (id Identity) Specifier() string {
	return strings.TrimPrefix(string(id), externalPrefix)
}

// Path returns the filesystem path of the module without its query.
// It is empty for externals.
func (id Identity) Path() string {
	if id.IsExternal() {
		return ""
	}
	s := string(id)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}

// Query returns the query suffix without the leading '?'.
func (id Identity) Query() string {
	if id.IsExternal() {
		return ""
	}
	s := string(id)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Rel returns the identity relative to root using forward slashes. It is
// used wherever a module name ends up in output, so bundles do not depend
// on where the project is checked out.
func (id Identity) Rel(root string) string {
	if id.IsExternal() || root == "" {
		return string(id)
	}
	rel, err := filepath.Rel(root, id.Path())
	if err != nil {
		return string(id)
	}
	rel = filepath.ToSlash(rel)
	if q := id.Query(); q != "" {
		rel += "?" + q
	}
	return rel
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	return string(id)
}
