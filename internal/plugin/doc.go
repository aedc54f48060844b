// Package plugin provides the output plugins shipped with vpack.
//
//   - Clean asks the emitter to delete stale files from the output root
//     once the new assets are in place.
//   - HTML writes an HTML page that loads every emitted chunk.
//   - Manifest writes manifest.json mapping chunk names to hashed paths.
//   - S3Publish uploads the emitted assets to an S3 bucket.
//
// Plugins only see the emit.Emission passed to their hooks; none of them
// touches the filesystem directly except to read templates.
package plugin
