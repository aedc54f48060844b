package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// Inject prepends require() calls for runtime dependencies, such as
// polyfills, and registers them as module dependencies.
type Inject struct {
	modules []string
}

// NewInject returns an inject unit for the given specifiers.
func NewInject(modules []string) *Inject {
	return &Inject{modules: append([]string(nil), modules...)}
}

// Name implements Unit.
func (in *Inject) Name() string { return "inject" }

// Fingerprint implements Fingerprinter.
func (in *Inject) Fingerprint() string {
	return strings.Join(in.modules, ",")
}

// Apply implements Unit.
func (in *Inject) Apply(src string, c *Context) (string, error) {
	if len(in.modules) == 0 {
		return src, nil
	}
	var b strings.Builder
	for _, m := range in.modules {
		fmt.Fprintf(&b, "require(%s);\n", strconv.Quote(m))
		c.AddDependency(m)
	}
	b.WriteString(src)
	return b.String(), nil
}

// SizeLimit records the transformed size of each module and rejects
// modules larger than Limit bytes. It never rewrites source.
type SizeLimit struct {
	Limit int
}

// Name implements Unit.
func (s *SizeLimit) Name() string { return "size-limit" }

// Fingerprint implements Fingerprinter.
func (s *SizeLimit) Fingerprint() string { return strconv.Itoa(s.Limit) }

// Apply implements Unit.
func (s *SizeLimit) Apply(src string, c *Context) (string, error) {
	c.Annotate("size", strconv.Itoa(len(src)))
	if s.Limit > 0 && len(src) > s.Limit {
		return "", fmt.Errorf("module is %d bytes, limit is %d", len(src), s.Limit)
	}
	return src, nil
}
