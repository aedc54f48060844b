package assets

import "strings"

// Resolver turns emitted paths into URLs under the output publicPath.
type Resolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver returns a resolver for publicPath. m may be nil when only
// URL is needed, as in plugins that already hold the emitted paths.
func NewResolver(m *Manifest, publicPath string) *Resolver {
	if publicPath != "" && !strings.HasSuffix(publicPath, "/") {
		publicPath += "/"
	}
	return &Resolver{manifest: m, prefix: publicPath}
}

// URL returns the URL of an emitted path.
func (r *Resolver) URL(emitted string) string {
	return r.prefix + strings.TrimPrefix(emitted, "/")
}

// Script returns the URL of the named chunk's script.
func (r *Resolver) Script(chunk string) (string, bool) {
	if r.manifest == nil {
		return "", false
	}
	p, ok := r.manifest.Script(chunk)
	if !ok {
		return "", false
	}
	return r.URL(p), true
}
