// Package errors provides structured, actionable diagnostics for vpack.
//
// Every failure the CLI or the dev server shows is a VpackError: a coded
// diagnostic with an optional location and source frame. Build phases
// return typed errors (ResolutionError, TransformError, EmissionError,
// ConfigError) that keep the machine-readable facts and convert through
// Diagnostic(). Collect flattens aggregates into diagnostics and reports
// anything else as E500.
//
// Diagnostics render three ways: Format for the terminal, FormatCompact
// for the dev overlay, and FormatJSON for vpack build --json.
//
// # Error Categories
//
//   - config: invalid vpack.json or command-line settings
//   - resolve: an import specifier could not be mapped to a module
//   - transform: a transformer unit rejected a module's source
//   - emit: output assets could not be written
//   - dev: development server failures
//   - cli: command-line usage errors
//
// # Usage
//
//	err := errors.New("E210").
//	    WithLocation("src/app.jsx", 15, 12).
//	    WithSuggestion("Check the JSX closing tag")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E210: Transform failed
//	//
//	//   src/app.jsx:15:12
//	//
//	//       14 | return (
//	//     > 15 |   <div>
//	//          |            ^
//	//       16 | );
//	//
//	//   Hint: Check the JSX closing tag
//	//
//	//   Learn more: https://vpack.dev/docs/errors/E210
package errors
