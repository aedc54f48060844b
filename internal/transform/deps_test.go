package transform

import (
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeDependencies(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []string
	}{
		{
			name: "require and dynamic import",
			code: `const a = require("./a"); import("./lazy").then(m => m);`,
			want: []string{"./a", "./lazy"},
		},
		{
			name: "static imports",
			code: "import React from 'react';\nimport { b, c } from \"./b\";\nimport './side-effect.css';\nimport * as ns from \"./ns\";\nconsole.log(React, b, c, ns);",
			want: []string{"react", "./b", "./side-effect.css", "./ns"},
		},
		{
			name: "export from",
			code: `export { x } from "./x"; export * from './all'; export const y = 1;`,
			want: []string{"./x", "./all"},
		},
		{
			name: "comments are skipped",
			code: "// require(\"./line\")\n/* import x from './block' */\nrequire('./real');",
			want: []string{"./real"},
		},
		{
			name: "string contents are skipped",
			code: `const s = "require('./nope')"; const t = 'import x from "./nope2"';`,
			want: nil,
		},
		{
			name: "template literal text is skipped but substitutions are code",
			code: "const s = `require(\"./nope\") ${require(\"./inner\")}`; require('./after');",
			want: []string{"./inner", "./after"},
		},
		{
			name: "nested template substitutions",
			code: "const s = `a ${`b ${import(\"./deep\")}`} ${{ k: require(\"./obj\") }.k}`;",
			want: []string{"./deep", "./obj"},
		},
		{
			name: "substitution-free template specifier",
			code: "require(`./tpl`);",
			want: []string{"./tpl"},
		},
		{
			name: "regex literals are skipped",
			code: `const re = /require\("x"\)/g; const n = 4 / 2; require("./ok");`,
			want: []string{"./ok"},
		},
		{
			name: "member require is not a dependency",
			code: `obj.require("./member");`,
			want: nil,
		},
		{
			name: "non-literal require is ignored",
			code: `require(name); require("./a" + b);`,
			want: nil,
		},
		{
			name: "duplicates keep first position",
			code: `require("./a"); require("./b"); require("./a");`,
			want: []string{"./a", "./b"},
		},
		{
			name: "require.resolve only names a path",
			code: `const p = require.resolve("./asset"); require("./a");`,
			want: []string{"./a"},
		},
		{
			name: "jsx",
			code: "const App = require(\"./app\");\nconst el = <App />;",
			want: []string{"./app"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Analyze(tt.code, "test.jsx", api.LoaderJSX)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Dependencies)
		})
	}
}

func TestAnalyzeFormat(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		wantESM     bool
		wantDynamic bool
	}{
		{"commonjs", `module.exports = require("./a");`, false, false},
		{"import declaration", `import a from "./a"; console.log(a);`, true, false},
		{"export only", `export const x = 1;`, true, false},
		{"dynamic import in commonjs", `module.exports = () => import("./a");`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Analyze(tt.code, "test.js", api.LoaderJS)
			require.NoError(t, err)
			assert.Equal(t, tt.wantESM, a.ESM)
			assert.Equal(t, tt.wantDynamic, a.Dynamic)
		})
	}
}

func TestAnalyzeSyntaxError(t *testing.T) {
	_, err := Analyze("const a = 1;\nconst = 2;\n", "bad.js", api.LoaderJS)
	require.Error(t, err)

	var located *LocatedError
	require.ErrorAs(t, err, &located)
	assert.Equal(t, 2, located.Line)
}

func TestToCommonJS(t *testing.T) {
	out, err := toCommonJS("import a from \"./a\";\nexport const lazy = () => import(\"./b\");\nconsole.log(a);\n",
		"x.js", api.LoaderJS)
	require.NoError(t, err)
	assert.Contains(t, out, `require("./a")`)
	assert.Contains(t, out, `require("./b")`)
	assert.NotContains(t, out, "import(")
	assert.Contains(t, out, "module.exports")
}
