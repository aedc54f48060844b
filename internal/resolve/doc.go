// Package resolve maps import specifiers to module identities.
//
// Resolution is a pure function of the specifier, the importing module and
// the filesystem at call time. Nothing is cached between calls, so a file
// created or removed between two builds is always observed.
//
// # Resolution Order
//
//  1. Externals: specifiers listed in the externals table resolve to an
//     external marker identity and become graph leaves.
//  2. Aliases: a matching alias prefix is substituted.
//  3. Relative ("./", "../") and absolute specifiers are joined with the
//     importer's directory (or the project root for entry points).
//     Bare specifiers are looked up in module directories ("node_modules")
//     walking up from the importer.
//  4. Each base path is tried as: exact file, file plus each known
//     extension, directory package.json fields, directory index file.
//
// A failed resolution returns an *errors.ResolutionError listing every
// candidate that was tried.
package resolve
