// Package imaging turns inbound image references into validated in-memory
// buffers ready for recognition.
//
// Two input forms are accepted:
//   - Inline: a base64 payload, optionally prefixed with a data URI header
//     ("data:image/<type>;base64,"). The header is stripped by exact match;
//     payloads without it decode identically.
//   - Remote: an http(s) URL, downloaded through a Fetcher.
//
// # Validation
//
// Every payload is decoded once to make sure it is a well-formed PNG, JPEG,
// GIF, BMP, TIFF or WebP image. No pixels are altered: the recognition engine
// receives the exact bytes the caller sent.
//
// # Thread Safety
//
// ImageBuffer is immutable and may be shared by concurrent recognition
// passes. Normalizer and HTTPFetcher hold no per-request state and are safe
// for concurrent use.
//
// # Error Handling
//
// Failures wrap one of two sentinels, matched with errors.Is:
//   - ErrInvalidInput: missing, empty, oversized or undecodable payloads,
//     and unusable URLs
//   - ErrUpstreamFetch: the remote image could not be downloaded
package imaging
