package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/vango-dev/vpack/internal/errors"
)

// Entry is a named entry point.
type Entry struct {
	// Name becomes the chunk name and the [name] token.
	Name string

	// Path is the entry specifier, relative to the project root.
	Path string
}

// Entries is the ordered entry list. In JSON it is a string, an array of
// strings, or an object mapping names to paths; object key order is kept.
type Entries []Entry

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entries) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*e = nil
		return nil
	}

	switch data[0] {
	case '"':
		var p string
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*e = Entries{{Name: "main", Path: p}}
		return nil

	case '[':
		var paths []string
		if err := json.Unmarshal(data, &paths); err != nil {
			return err
		}
		out := make(Entries, 0, len(paths))
		for _, p := range paths {
			name := "main"
			if len(paths) > 1 {
				name = stem(p)
			}
			out = append(out, Entry{Name: name, Path: p})
		}
		*e = out
		return nil

	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return err
		}
		var out Entries
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			name, _ := tok.(string)
			var p string
			if err := dec.Decode(&p); err != nil {
				return fmt.Errorf("entry %q: %w", name, err)
			}
			out = append(out, Entry{Name: name, Path: p})
		}
		*e = out
		return nil
	}
	return fmt.Errorf("entry must be a string, an array or an object")
}

// MarshalJSON implements json.Marshaler. Entries are always written in
// object form, in order.
func (e Entries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		p, err := json.Marshal(entry.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(p)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Names returns the entry names in order.
func (e Entries) Names() []string {
	out := make([]string, len(e))
	for i, entry := range e {
		out[i] = entry.Name
	}
	return out
}

// Specifiers returns the entry paths in order as specifiers relative to
// the project root. A root-relative path such as "src/index.js" gets a
// "./" prefix so it is not resolved as a package name.
func (e Entries) Specifiers() []string {
	out := make([]string, len(e))
	for i, entry := range e {
		out[i] = entrySpecifier(entry.Path)
	}
	return out
}

func entrySpecifier(p string) string {
	slashed := filepath.ToSlash(p)
	switch {
	case filepath.IsAbs(p), strings.HasPrefix(slashed, "/"),
		slashed == ".", slashed == "..",
		strings.HasPrefix(slashed, "./"), strings.HasPrefix(slashed, "../"):
		return p
	}
	return "./" + slashed
}

func (e Entries) validate() error {
	seen := make(map[string]bool, len(e))
	for i, entry := range e {
		field := fmt.Sprintf("entry[%d]", i)
		switch {
		case entry.Name == "":
			return &errors.ConfigError{Field: field, Reason: "entry name is empty"}
		case seen[entry.Name]:
			return &errors.ConfigError{Field: field, Reason: fmt.Sprintf("duplicate entry name %q", entry.Name)}
		case strings.HasPrefix(entry.Name, "/") || path.Clean(entry.Name) != entry.Name || strings.HasPrefix(entry.Name, ".."):
			return &errors.ConfigError{Field: field, Reason: fmt.Sprintf("entry name %q must be a clean relative name", entry.Name)}
		case strings.TrimSpace(entry.Path) == "":
			return &errors.ConfigError{Field: field, Reason: fmt.Sprintf("entry %q has no path", entry.Name)}
		}
		seen[entry.Name] = true
	}
	return nil
}

// stem returns the file name of p without directory and extension.
func stem(p string) string {
	base := filepath.Base(filepath.FromSlash(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
