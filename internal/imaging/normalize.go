package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrInvalidInput reports a missing, empty, oversized or malformed image
	// payload. It is the caller's fault and is never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamFetch reports that a remote image could not be retrieved.
	ErrUpstreamFetch = errors.New("failed to fetch remote image")

	// ErrMissingImage reports an Input with neither field set. It wraps
	// ErrInvalidInput.
	ErrMissingImage = fmt.Errorf("%w: missing image payload", ErrInvalidInput)
)

// dataURIPrefix matches the media-type header some callers put in front of
// an inline payload. Only this exact shape is stripped.
var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// DefaultMaxImageBytes caps decoded inline payloads and fetched images.
const DefaultMaxImageBytes = 10 << 20

// Input is an inbound image reference. Exactly one of the fields is
// normally set; when both are, the inline payload wins and no fetch happens.
type Input struct {
	// Base64 is an inline payload, optionally prefixed with
	// "data:image/<type>;base64,".
	Base64 string

	// URL is a remote http(s) image reference.
	URL string
}

// IsEmpty reports whether neither an inline payload nor a URL was supplied.
func (in Input) IsEmpty() bool {
	return strings.TrimSpace(in.Base64) == "" && strings.TrimSpace(in.URL) == ""
}

// Fetcher retrieves remote image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Normalizer turns an Input into a validated ImageBuffer.
//
// Normalizer holds no per-request state and is safe for concurrent use.
type Normalizer struct {
	fetcher   Fetcher
	maxBytes  int
	maxPixels int
}

// NewNormalizer creates a Normalizer.
//
// Parameters:
//   - fetcher: Used for URL inputs. May be nil, in which case URL inputs are
//     rejected with ErrInvalidInput.
//   - maxBytes: Upper bound on the decoded image size. Zero or negative
//     selects DefaultMaxImageBytes.
func NewNormalizer(fetcher Fetcher, maxBytes int) *Normalizer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Normalizer{fetcher: fetcher, maxBytes: maxBytes, maxPixels: DefaultMaxImagePixels}
}

// WithMaxPixels returns a copy of n that rejects images with more than
// maxPixels pixels. Zero or negative selects DefaultMaxImagePixels.
func (n *Normalizer) WithMaxPixels(maxPixels int) *Normalizer {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	c := *n
	c.maxPixels = maxPixels
	return &c
}

// Normalize decodes or fetches the image referenced by in.
//
// Returns:
//   - ImageBuffer: The validated image.
//   - error: Wraps ErrInvalidInput for missing, undecodable or oversized
//     payloads (ErrImageTooLarge when the pixel count is over the limit),
//     or ErrUpstreamFetch when the remote fetch fails.
//
// The only blocking step is the fetch for URL inputs; inline payloads are
// decoded synchronously.
func (n *Normalizer) Normalize(ctx context.Context, in Input) (ImageBuffer, error) {
	if in.IsEmpty() {
		return ImageBuffer{}, ErrMissingImage
	}

	if strings.TrimSpace(in.Base64) != "" {
		data, err := DecodeInline(in.Base64)
		if err != nil {
			return ImageBuffer{}, err
		}
		if len(data) > n.maxBytes {
			return ImageBuffer{}, fmt.Errorf("%w: image is %d bytes, limit is %d", ErrInvalidInput, len(data), n.maxBytes)
		}
		return NewImageBufferWithLimit(data, n.maxPixels)
	}

	if n.fetcher == nil {
		return ImageBuffer{}, fmt.Errorf("%w: remote images are not supported", ErrInvalidInput)
	}
	data, err := n.fetcher.Fetch(ctx, strings.TrimSpace(in.URL))
	if err != nil {
		return ImageBuffer{}, err
	}
	if len(data) > n.maxBytes {
		return ImageBuffer{}, fmt.Errorf("%w: remote image is %d bytes, limit is %d", ErrInvalidInput, len(data), n.maxBytes)
	}
	return NewImageBufferWithLimit(data, n.maxPixels)
}

// DecodeInline decodes a base64 payload, stripping a leading
// "data:image/<type>;base64," header when present.
//
// Embedded whitespace (line-wrapped base64) is ignored. Standard and
// URL-safe alphabets are accepted, padded or not. Payloads without the
// header decode to the same bytes as payloads with it.
func DecodeInline(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if loc := dataURIPrefix.FindStringIndex(payload); loc != nil {
		payload = payload[loc[1]:]
	}
	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty image payload", ErrInvalidInput)
	}

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(payload)
		if err == nil {
			if len(data) == 0 {
				break
			}
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		return nil, fmt.Errorf("%w: empty image payload", ErrInvalidInput)
	}
	return nil, fmt.Errorf("%w: payload is not valid base64: %v", ErrInvalidInput, firstErr)
}
