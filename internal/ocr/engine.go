package ocr

import (
	"errors"
	"fmt"
	"strings"
)

// Engine creates recognition workers for a language.
//
// Implementations must return a fresh worker from every call. Workers keep
// their configuration for their whole lifetime, so handing the same worker
// to two passes would let one pass's whitelist leak into the other.
type Engine interface {
	NewWorker(language string) (Worker, error)
	Version() string
}

// Worker is a stateful handle into the engine. A worker serves exactly one
// pass and must be closed afterwards.
type Worker interface {
	// SetWhitelist restricts the characters the worker may emit.
	SetWhitelist(w Whitelist) error

	// Recognize returns the raw text found in an encoded image. It must
	// not modify img.
	Recognize(img []byte) (string, error)

	// Close releases the engine state held by the worker.
	Close() error
}

// Pass is one named recognition run over an image.
type Pass struct {
	Name      string
	Whitelist Whitelist
}

// Pass names used by the built-in modes.
const (
	PassText       = "text"
	PassAlphabetic = "alphabetic"
	PassNumeric    = "numeric"
)

// SinglePass returns the one unrestricted pass used for plain transcription.
func SinglePass() []Pass {
	return []Pass{{Name: PassText, Whitelist: Unrestricted}}
}

// DualPasses returns the letters pass followed by the digits/symbols pass.
func DualPasses() []Pass {
	return []Pass{
		{Name: PassAlphabetic, Whitelist: Alpha},
		{Name: PassNumeric, Whitelist: Numeric},
	}
}

// ValidatePasses checks that there is at least one pass and that pass
// names are non-empty and unique.
func ValidatePasses(passes []Pass) error {
	if len(passes) == 0 {
		return errors.New("at least one pass is required")
	}
	seen := make(map[string]bool, len(passes))
	for i, p := range passes {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("pass %d has no name", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate pass name %q", name)
		}
		seen[name] = true
	}
	return nil
}
