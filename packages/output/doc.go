// Package output renders failures and run summaries.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//
// ConsoleFormatter.FormatFailure is what a spec bound to a testing.TB prints
// when a chain step fails.
package output
