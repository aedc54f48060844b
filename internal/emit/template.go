package emit

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/vango-dev/vpack/internal/errors"
)

// DefaultHashLength is the number of hex digits [hash] expands to.
const DefaultHashLength = 8

const maxHashLength = 64

type segment struct {
	literal string
	token   string // "name" or "hash"
	length  int    // hash length, 0 for the default
}

// Template is a parsed output filename template.
type Template struct {
	raw      string
	segments []segment
}

// ParseTemplate parses a filename template. Recognized tokens are [name],
// [hash] and [hash:N]. Anything else in brackets, unbalanced brackets,
// absolute paths and paths leaving the output root are rejected.
func ParseTemplate(s string) (*Template, error) {
	invalid := func(reason string) error {
		return &errors.ConfigError{Field: "output.filename", Reason: fmt.Sprintf("%s in %q", reason, s), Code: "E104"}
	}

	if strings.TrimSpace(s) == "" {
		return nil, invalid("empty template")
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`) || (len(s) > 1 && s[1] == ':') {
		return nil, invalid("absolute path")
	}

	t := &Template{raw: s}
	rest := s
	for rest != "" {
		open := strings.IndexByte(rest, '[')
		closeIdx := strings.IndexByte(rest, ']')
		if open < 0 {
			if closeIdx >= 0 {
				return nil, invalid("unbalanced ']'")
			}
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if closeIdx >= 0 && closeIdx < open {
			return nil, invalid("unbalanced ']'")
		}
		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], ']')
		if end < 0 {
			return nil, invalid("unterminated '['")
		}
		tok := rest[open+1 : open+end]
		seg, ok := parseToken(tok)
		if !ok {
			return nil, invalid(fmt.Sprintf("unknown token [%s]", tok))
		}
		t.segments = append(t.segments, seg)
		rest = rest[open+end+1:]
	}

	// Check that no rendering can leave the output root.
	sample := t.Render("name", strings.Repeat("0", maxHashLength), DefaultHashLength)
	clean := path.Clean(sample)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return nil, invalid("path outside the output root")
	}
	if strings.HasSuffix(s, "/") {
		return nil, invalid("template names a directory")
	}
	return t, nil
}

func parseToken(tok string) (segment, bool) {
	switch {
	case tok == "name":
		return segment{token: "name"}, true
	case tok == "hash":
		return segment{token: "hash"}, true
	case strings.HasPrefix(tok, "hash:"):
		n, err := strconv.Atoi(strings.TrimPrefix(tok, "hash:"))
		if err != nil || n < 1 || n > maxHashLength {
			return segment{}, false
		}
		return segment{token: "hash", length: n}, true
	}
	return segment{}, false
}

// String returns the template source.
func (t *Template) String() string {
	return t.raw
}

// UsesName reports whether the template contains [name].
func (t *Template) UsesName() bool {
	for _, s := range t.segments {
		if s.token == "name" {
			return true
		}
	}
	return false
}

// Render substitutes name and the full hex hash. [hash] takes hashLength
// characters; [hash:N] takes N.
func (t *Template) Render(name, hash string, hashLength int) string {
	if hashLength <= 0 {
		hashLength = DefaultHashLength
	}
	var b strings.Builder
	for _, s := range t.segments {
		switch s.token {
		case "name":
			b.WriteString(name)
		case "hash":
			n := hashLength
			if s.length > 0 {
				n = s.length
			}
			if n > len(hash) {
				n = len(hash)
			}
			b.WriteString(hash[:n])
		default:
			b.WriteString(s.literal)
		}
	}
	return path.Clean(b.String())
}
