package ocr

import (
	"errors"
	"fmt"

	"github.com/ironsheep/dual-ocr/internal/imaging"
)

var (
	// ErrEngine reports that the recognition engine failed to create,
	// configure or run a worker. It is scoped to one pass.
	ErrEngine = errors.New("recognition engine failure")

	// ErrRecognitionTimeout reports a pass that exceeded its deadline.
	// It wraps ErrEngine, so errors.Is(err, ErrEngine) also holds.
	ErrRecognitionTimeout = fmt.Errorf("%w: recognition timed out", ErrEngine)
)

// ErrorKind names a failure class in responses and logs.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "InvalidInput"
	KindNetwork            ErrorKind = "NetworkError"
	KindEngine             ErrorKind = "EngineError"
	KindRecognitionTimeout ErrorKind = "RecognitionTimeout"
)

// KindOf classifies err. Errors outside the taxonomy are reported as
// engine errors.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, imaging.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, imaging.ErrUpstreamFetch):
		return KindNetwork
	case errors.Is(err, ErrRecognitionTimeout):
		return KindRecognitionTimeout
	default:
		return KindEngine
	}
}
