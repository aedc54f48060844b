// Package config loads and validates vpack.json.
//
// The configuration file lives at the project root. Every relative path in
// it is taken relative to that directory.
//
// # Configuration File Structure
//
//	{
//	  "mode": "development",
//	  "entry": {"main": "./src/index.js"},
//	  "output": {
//	    "path": "dist",
//	    "filename": "js/[name].[hash].js",
//	    "publicPath": "/"
//	  },
//	  "resolve": {
//	    "extensions": [".js", ".jsx", ".json"],
//	    "externals": {"react": "React"}
//	  },
//	  "transform": [
//	    {"use": "esbuild", "test": ["**/*.{js,jsx}"], "exclude": ["node_modules/**"],
//	     "options": {"target": "es2015", "jsx": true}}
//	  ],
//	  "plugins": [
//	    {"use": "clean"},
//	    {"use": "html", "options": {"template": "src/index.html"}}
//	  ],
//	  "dev": {"host": "localhost", "port": 8080, "historyApiFallback": true}
//	}
//
// "entry" also accepts a single path or a list of paths.
//
// # Mode
//
// The build mode is taken, in order of precedence, from the --mode flag,
// the VPACK_MODE environment variable (a .env file next to vpack.json is
// read too), the "mode" field, and finally defaults to development.
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
