// Package ocr runs character recognition passes over a normalized image.
//
// A pass pairs a name with a character whitelist. The Orchestrator runs the
// passes of a request concurrently, each on its own Worker leased from a
// bounded Pool, and Aggregate folds the per-pass Results into an Outcome
// that the transports render.
//
// # Passes
//
// Two modes are built in:
//
//   - SinglePass: one unrestricted pass named "text".
//   - DualPasses: an "alphabetic" pass restricted to A-Za-z and a "numeric"
//     pass restricted to 0-9 and the separators . / : % , -
//
// Callers may also supply their own passes with whitelists built by
// NewWhitelist or ParseWhitelist.
//
// # Workers
//
// A Worker is created for exactly one pass and closed when the pass ends,
// whatever the outcome. Workers are never shared between passes, so a
// whitelist set on one can never affect another. The Pool caps how many
// workers are alive process-wide.
//
// # Failures
//
// Every pass fails on its own. A failed pass is reported in its Result and
// does not cancel or alter the others. Errors wrap one of:
//
//   - imaging.ErrInvalidInput: the image could not be used.
//   - imaging.ErrUpstreamFetch: the image URL could not be fetched.
//   - ErrEngine: the engine failed to create, configure or run a worker.
//   - ErrRecognitionTimeout: the pass exceeded its deadline.
//
// KindOf maps an error to the kind name used in response bodies.
//
// The Tesseract binding lives in the tesseract subpackage; ocrtest provides
// an in-memory engine for tests.
package ocr
