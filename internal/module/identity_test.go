package module

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	root := filepath.FromSlash("/project")
	id := FromPath(filepath.Join(root, "src", "..", "src", "a.js"), "?raw")

	assert.Equal(t, filepath.Join(root, "src", "a.js"), id.Path())
	assert.Equal(t, "raw", id.Query())
	assert.Equal(t, "src/a.js?raw", id.Rel(root))
	assert.False(t, id.IsExternal())
}

func TestIdentity_External(t *testing.T) {
	id := External("react")

	assert.True(t, id.IsExternal())
	assert.Equal(t, "react", id.Specifier())
	assert.Empty(t, id.Path())
	assert.Empty(t, id.Query())
	assert.Equal(t, "external:react", id.Rel("/project"))
}
