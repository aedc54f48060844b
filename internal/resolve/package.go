package resolve

import (
	"encoding/json"
	"fmt"
	"os"
)

// packageJSON holds the package.json fields that matter for resolution.
type packageJSON struct {
	fields map[string]json.RawMessage
}

// readPackageJSON returns nil, nil when the file does not exist.
func readPackageJSON(path string) (*packageJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &packageJSON{fields: fields}, nil
}

// entry returns the first string-valued field among names. Object-valued
// "browser" maps are ignored.
func (p *packageJSON) entry(names []string) string {
	for _, name := range names {
		raw, ok := p.fields[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}
