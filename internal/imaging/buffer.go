package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ImageBuffer is a validated, encoded image held in memory for the duration
// of one request.
//
// The buffer is immutable once built: recognition passes share it read-only,
// possibly from several goroutines at once. It is never cached or reused
// across requests.
//
// # Example Usage
//
//	buf, err := imaging.NewImageBuffer(pngBytes)
//	if err != nil {
//	    return err // wraps ErrInvalidInput
//	}
//	log.Printf("%s %dx%d, %d bytes", buf.Format(), buf.Width(), buf.Height(), buf.Len())
type ImageBuffer struct {
	data   []byte
	format string
	width  int
	height int
}

// DefaultMaxImagePixels caps width x height when no limit is configured.
const DefaultMaxImagePixels = 50_000_000

// ErrImageTooLarge reports an image whose header declares more pixels than
// allowed. It wraps ErrInvalidInput.
var ErrImageTooLarge = fmt.Errorf("%w: image dimensions too large", ErrInvalidInput)

// NewImageBuffer validates data as a decodable image of at most
// DefaultMaxImagePixels pixels and wraps it.
func NewImageBuffer(data []byte) (ImageBuffer, error) {
	return NewImageBufferWithLimit(data, DefaultMaxImagePixels)
}

// NewImageBufferWithLimit validates data as a decodable image and wraps it.
//
// Parameters:
//   - data: Encoded image bytes. Supported formats are PNG, JPEG, GIF, BMP,
//     TIFF and WebP. The slice is retained, not copied; callers must not
//     modify it afterwards.
//   - maxPixels: Upper bound on width x height. Zero or negative selects
//     DefaultMaxImagePixels.
//
// Returns:
//   - ImageBuffer: The wrapped image with its format and dimensions.
//   - error: Wraps ErrInvalidInput if data is empty or not a well-formed
//     image, and ErrImageTooLarge if it has too many pixels.
//
// # Validation
//
// The dimensions are read from the header first, so an oversized image is
// rejected before any pixel memory is allocated. Otherwise the image is
// fully decoded once so that truncated or corrupt payloads are rejected
// here rather than deep inside the recognition engine. The decoded pixels
// are discarded; the engine receives the original encoded bytes.
func NewImageBufferWithLimit(data []byte, maxPixels int) (ImageBuffer, error) {
	if len(data) == 0 {
		return ImageBuffer{}, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageBuffer{}, fmt.Errorf("%w: failed to read image header: %v", ErrInvalidInput, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageBuffer{}, fmt.Errorf("%w: image has no pixels (%dx%d)", ErrInvalidInput, cfg.Width, cfg.Height)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(maxPixels) {
		return ImageBuffer{}, fmt.Errorf("%w: %dx%d is %d pixels, limit is %d", ErrImageTooLarge, cfg.Width, cfg.Height, pixels, maxPixels)
	}

	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return ImageBuffer{}, fmt.Errorf("%w: failed to decode image: %v", ErrInvalidInput, err)
	}

	return ImageBuffer{
		data:   data,
		format: format,
		width:  cfg.Width,
		height: cfg.Height,
	}, nil
}

// Bytes returns the encoded image. The returned slice is shared and must be
// treated as read-only.
func (b ImageBuffer) Bytes() []byte { return b.data }

// Len returns the size of the encoded image in bytes.
func (b ImageBuffer) Len() int { return len(b.data) }

// IsEmpty reports whether the buffer holds no image, which is only true for
// the zero value.
func (b ImageBuffer) IsEmpty() bool { return len(b.data) == 0 }

// Format is the detected encoding: "png", "jpeg", "gif", "bmp", "tiff" or "webp".
func (b ImageBuffer) Format() string { return b.format }

// Width is the image width in pixels.
func (b ImageBuffer) Width() int { return b.width }

// Height is the image height in pixels.
func (b ImageBuffer) Height() int { return b.height }

// ImageInfo contains metadata about a normalized image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the detected image format, taken from the file contents.
	Format string `json:"format"`

	// SizeBytes is the size of the encoded image in bytes.
	SizeBytes int `json:"size_bytes"`
}

// Info returns the buffer's metadata in a JSON-friendly form.
func (b ImageBuffer) Info() ImageInfo {
	return ImageInfo{
		Width:     b.width,
		Height:    b.height,
		Format:    b.format,
		SizeBytes: len(b.data),
	}
}
