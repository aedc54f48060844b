// Package transform runs module sources through an ordered chain of
// transformer units and discovers their dependencies.
//
// A Unit is a small interface: it receives the output of the previous unit
// and returns rewritten source. Through its Context a unit can also inject
// runtime dependencies or annotate the module without rewriting anything.
// Units are wrapped in Rules whose Test/Exclude globs select the modules
// they apply to, mirroring webpack's module.rules.
//
// Order is significant and preserved exactly: a later unit may rely on
// syntax normalized by an earlier one.
//
// After the chain has run, esbuild parses the final code and its import
// records give the require(), import() and import/export-from specifiers.
// Code left with ES module syntax is rewritten to CommonJS, the only
// module format the emitted runtime loads. Results are memoized by module identity, source hash and pipeline fingerprint, so an
// unchanged module is not transformed again on rebuild.
package transform
