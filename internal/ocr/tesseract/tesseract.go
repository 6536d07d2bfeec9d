// Package tesseract binds the ocr.Engine interface to Tesseract through
// gosseract/v2.
//
// It is kept out of package ocr so that the orchestration core and its tests
// build without cgo or libtesseract. Only the command wires this package in.
//
// # Prerequisites
//
// Tesseract and the language data for the configured language must be
// installed on the host:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A non-standard tessdata directory can be selected with the tessdata prefix
// passed to New.
package tesseract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/dual-ocr/internal/ocr"
)

// whitelistVariable is the Tesseract variable restricting output characters.
const whitelistVariable = "tessedit_char_whitelist"

// Engine creates gosseract-backed workers.
type Engine struct {
	tessdataPrefix string
	clientFactory  func() *gosseract.Client
}

// New returns an engine that loads language data from tessdataPrefix. An
// empty prefix uses Tesseract's compiled-in default location.
func New(tessdataPrefix string) *Engine {
	return &Engine{
		tessdataPrefix: tessdataPrefix,
		clientFactory:  gosseract.NewClient,
	}
}

// NewWorker creates a fresh Tesseract client for language.
//
// Parameters:
//   - language: Tesseract language code (e.g., "eng"). The language data
//     must be installed or present under the tessdata prefix.
//
// Returns:
//   - ocr.Worker: A worker owning its own client. The caller must Close it.
//   - error: Non-nil if the client rejects the tessdata prefix or language.
//     The client is closed before returning.
func (e *Engine) NewWorker(language string) (ocr.Worker, error) {
	if strings.TrimSpace(language) == "" {
		return nil, errors.New("language is required")
	}

	client := e.clientFactory()
	if e.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return &worker{client: client}, nil
}

// Version returns the linked Tesseract library version.
func (e *Engine) Version() string {
	return "tesseract " + gosseract.Version()
}

type worker struct {
	client *gosseract.Client
}

func (w *worker) SetWhitelist(wl ocr.Whitelist) error {
	if err := w.client.SetWhitelist(wl.String()); err != nil {
		return fmt.Errorf("failed to set %s: %w", whitelistVariable, err)
	}
	return nil
}

func (w *worker) Recognize(img []byte) (string, error) {
	if err := w.client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := w.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

func (w *worker) Close() error {
	return w.client.Close()
}
