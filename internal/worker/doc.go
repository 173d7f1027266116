// Package worker implements the two PhotoBox operations on top of the model
// backends: background removal with color replacement, and text extraction.
//
// The functions here are used two ways. The runner calls them directly in
// "inprocess" isolation mode, and the CLI in this package wraps them for the
// "photobox worker" subcommands the runner spawns in "process" mode.
//
// # Errors
//
// Every failure returned from this package is classified with a Kind:
//
//   - InvalidArgument: the caller sent something unusable (bad base64, bad
//     color, undecodable image)
//   - DependencyMissing: a model library or interpreter is not installed
//   - ProcessingFailure: the model ran and failed, or timed out
//   - NotFound: an unknown route or resource
//
// Use KindOf to read the Kind of any error; unclassified errors are
// ProcessingFailure.
package worker
