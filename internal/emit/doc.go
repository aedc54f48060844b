// Package emit serializes chunks into output assets and writes them.
//
// Each chunk becomes one self-contained script: a small CommonJS-style
// runtime wrapped around an array of module factories. The script is
// hashed and its path rendered from the filename template:
//
//	js/[name].[hash].js   ->  js/main.9f3a12c4.js
//	[name].[hash:4].js    ->  main.9f3a.js
//
// Output plugins observe and mutate the list of assets through two hooks,
// BeforeEmit and AfterEmit, invoked in registration order.
//
// Writing is atomic per emission: every asset is first written to a
// temporary file next to its destination, and files are only renamed into
// place once every write has succeeded. HTML documents are renamed last so
// a page never references scripts that are not there yet. Obsolete files
// are removed only after the commit, and only when a plugin asked for it.
package emit
