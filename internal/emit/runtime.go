package emit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vango-dev/vpack/internal/chunk"
	"github.com/vango-dev/vpack/internal/module"
)

const runtimePrelude = `(function (modules, entry) {
  var cache = {};
  function load(id) {
    var cached = cache[id];
    if (cached) return cached.exports;
    var module = (cache[id] = { exports: {} });
    var def = modules[id];
    def[0].call(module.exports, module, module.exports, function (specifier) {
      var target = def[1][specifier];
      if (target === undefined) throw new Error("Cannot find module '" + specifier + "'");
      return load(target);
    });
    return module.exports;
  }
  return load(entry);
})([
`

// Serialize renders a chunk as a standalone script. Module comments use
// paths relative to root so output does not depend on the checkout
// location.
func Serialize(c *chunk.Chunk, root string) ([]byte, error) {
	index := make(map[module.Identity]int, len(c.Modules))
	for i, m := range c.Modules {
		index[m.ID] = i
	}

	var buf bytes.Buffer
	buf.WriteString(runtimePrelude)

	for i, m := range c.Modules {
		deps := make(map[string]int, len(m.Specifiers))
		for j, spec := range m.Specifiers {
			if j >= len(m.Resolved) || m.Resolved[j] == "" {
				continue
			}
			target, ok := index[m.Resolved[j]]
			if !ok {
				return nil, fmt.Errorf("chunk %s: %s depends on %s, which is not in the chunk",
					c.Name, m.ID.Rel(root), m.Resolved[j].Rel(root))
			}
			deps[spec] = target
		}
		depsJSON, err := json.Marshal(deps)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&buf, "/* %d: %s */\n", i, commentSafe(m.ID.Rel(root)))
		buf.WriteString("[function (module, exports, require) {\n")
		if m.IsExternal() {
			fmt.Fprintf(&buf, "module.exports = %s;\n", m.External)
		} else {
			buf.WriteString(m.Code)
			if !strings.HasSuffix(m.Code, "\n") {
				buf.WriteByte('\n')
			}
		}
		buf.WriteString("}, ")
		buf.Write(depsJSON)
		buf.WriteString("]")
		if i < len(c.Modules)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}

	fmt.Fprintf(&buf, "], %d);\n", entryIndex(c, index))
	return buf.Bytes(), nil
}

func entryIndex(c *chunk.Chunk, index map[module.Identity]int) int {
	if i, ok := index[c.Entry]; ok {
		return i
	}
	return len(c.Modules) - 1
}

func commentSafe(s string) string {
	return strings.ReplaceAll(s, "*/", "*\\/")
}
