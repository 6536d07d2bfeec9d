// Package ocrtest provides an in-memory recognition engine and image
// fixtures for tests that exercise the OCR pipeline without Tesseract.
package ocrtest

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/dual-ocr/internal/ocr"
)

// Engine is a scripted ocr.Engine. Every worker "recognizes" Text filtered
// through its whitelist, the way a real engine never emits characters
// outside the allowed set.
//
// Fields must be set before the engine is shared between goroutines.
type Engine struct {
	// Text is returned, filtered by whitelist, from every recognition.
	Text string

	// CreateErr fails worker creation.
	CreateErr error

	// CreatePanic makes worker creation panic.
	CreatePanic bool

	// ConfigureErr fails SetWhitelist.
	ConfigureErr error

	// RecognizeErr, if set, is consulted before every recognition. A
	// non-nil return fails that recognition.
	RecognizeErr func(w ocr.Whitelist) error

	// CloseErr fails worker release. The worker is still counted released.
	CloseErr error

	// Gate, if non-nil, blocks every recognition until it is closed or
	// receives a value.
	Gate chan struct{}

	// Panic makes every recognition panic.
	Panic bool

	mu    sync.Mutex
	stats Stats
}

// Stats counts worker lifecycle events.
type Stats struct {
	Created    int
	Released   int
	Configured int
	Recognized int
	Active     int
	MaxActive  int
	Whitelists []string
}

// NewEngine returns a fake engine that recognizes text.
func NewEngine(text string) *Engine {
	return &Engine{Text: text}
}

// Version implements ocr.Engine.
func (e *Engine) Version() string { return "fake" }

// NewWorker implements ocr.Engine.
func (e *Engine) NewWorker(language string) (ocr.Worker, error) {
	if e.CreatePanic {
		panic("engine failed to start")
	}
	if e.CreateErr != nil {
		return nil, e.CreateErr
	}
	if language == "" {
		return nil, errors.New("language is required")
	}
	e.mu.Lock()
	e.stats.Created++
	e.stats.Active++
	if e.stats.Active > e.stats.MaxActive {
		e.stats.MaxActive = e.stats.Active
	}
	e.mu.Unlock()
	return &worker{engine: e}, nil
}

// Stats returns a snapshot of the lifecycle counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Whitelists = append([]string(nil), e.stats.Whitelists...)
	return s
}

// WaitIdle blocks until every created worker has been released or timeout
// elapses, and reports whether the engine went idle.
func (e *Engine) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		active := e.stats.Active
		e.mu.Unlock()
		if active == 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

type worker struct {
	engine    *Engine
	whitelist ocr.Whitelist
	closed    bool
}

func (w *worker) SetWhitelist(wl ocr.Whitelist) error {
	if w.engine.ConfigureErr != nil {
		return w.engine.ConfigureErr
	}
	w.whitelist = wl
	w.engine.mu.Lock()
	w.engine.stats.Configured++
	w.engine.stats.Whitelists = append(w.engine.stats.Whitelists, wl.String())
	w.engine.mu.Unlock()
	return nil
}

func (w *worker) Recognize(img []byte) (string, error) {
	if w.closed {
		return "", errors.New("worker already released")
	}
	if len(img) == 0 {
		return "", errors.New("no image")
	}
	if w.engine.Gate != nil {
		<-w.engine.Gate
	}
	if w.engine.Panic {
		panic("engine crashed")
	}
	if w.engine.RecognizeErr != nil {
		if err := w.engine.RecognizeErr(w.whitelist); err != nil {
			return "", err
		}
	}
	w.engine.mu.Lock()
	w.engine.stats.Recognized++
	w.engine.mu.Unlock()
	return Filter(w.engine.Text, w.whitelist), nil
}

func (w *worker) Close() error {
	if w.closed {
		return errors.New("worker already released")
	}
	w.closed = true
	w.engine.mu.Lock()
	w.engine.stats.Released++
	w.engine.stats.Active--
	w.engine.mu.Unlock()
	return w.engine.CloseErr
}

// Filter drops every character of text that wl does not allow. Whitespace
// is kept so that word boundaries survive.
func Filter(text string, wl ocr.Whitelist) string {
	if wl.IsUnrestricted() {
		return text
	}
	var b strings.Builder
	for _, r := range text {
		if wl.Allows(r) || r == ' ' || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TextImage renders text in black on white with basicfont, scaled up by
// scale, and returns it PNG encoded.
func TextImage(t testing.TB, text string, scale int) []byte {
	t.Helper()
	if scale < 1 {
		scale = 1
	}

	// basicfont.Face7x13 is 7 pixels wide, 13 pixels tall per character
	width := len(text)*7 + 40
	height := 40
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(20), Y: fixed.I(25)},
	}
	d.DrawString(text)

	var out image.Image = img
	if scale > 1 {
		out = imaging.Resize(img, width*scale, height*scale, imaging.NearestNeighbor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}
