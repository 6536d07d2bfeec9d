// Package server implements the HTTP transport for the OCR service.
//
// Routes:
//   - POST /ocr: body {"imageBase64"?, "imageUrl"?, "mode"?}. mode is
//     "single" (default) or "dual".
//   - POST /ocr-dual: same body, always dual.
//   - GET /healthz: status, engine version and worker count.
//
// A single-pass success is answered in the ParsedResults shape:
//
//	{"ParsedResults":[{"ParsedText":"HELLO 123"}],"IsErroredOnProcessing":false}
//
// A dual-pass request answers 200 as long as one pass succeeded:
//
//	{"alphabetic":"HELLO","numeric":"123","IsErroredOnProcessing":false}
//
// A failed pass is omitted and listed under "errors" with its kind.
//
// # Status Codes
//
//   - 400: invalid input, including a missing image or unknown mode
//   - 413: request body above the configured limit
//   - 502: the image URL could not be fetched
//   - 500: engine failure, or every dual pass failed
//   - 504: the single pass timed out
//
// Error bodies are {"error": message, "kind": kind}.
package server
