package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/dual-ocr/internal/imaging"
	"github.com/ironsheep/dual-ocr/internal/ocr"
	"github.com/ironsheep/dual-ocr/internal/ocr/ocrtest"
	"github.com/ironsheep/dual-ocr/internal/recognizer"
)

type stubFetcher struct {
	data []byte
	err  error
}

func (f *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

// newTestServer wires a server to a fake engine. fetcher may be nil.
func newTestServer(t *testing.T, e *ocrtest.Engine, fetcher imaging.Fetcher, opts Options) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := ocr.NewPool(e, "eng", 2, logger)
	orch := ocr.NewOrchestrator(pool, 100*time.Millisecond, logger)
	svc := recognizer.New(imaging.NewNormalizer(fetcher, 0), orch, logger)
	return New(svc, opts, logger)
}

func imageBody(t *testing.T, extra map[string]string) string {
	t.Helper()
	body := map[string]string{
		"imageBase64": "data:image/png;base64," + base64.StdEncoding.EncodeToString(ocrtest.TextImage(t, "HELLO 123", 1)),
	}
	for k, v := range extra {
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return string(data)
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
}

func TestOCR_Single(t *testing.T) {
	s := newTestServer(t, ocrtest.NewEngine("HELLO 123\n"), nil, Options{})

	rec := post(t, s.Handler(), "/ocr", imageBody(t, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got ocr.SingleResponse
	decode(t, rec, &got)
	if len(got.ParsedResults) != 1 || got.ParsedResults[0].ParsedText != "HELLO 123" {
		t.Errorf("ParsedResults = %+v", got.ParsedResults)
	}
	if got.IsErroredOnProcessing {
		t.Error("IsErroredOnProcessing should be false")
	}
}

func TestOCR_DualRoutes(t *testing.T) {
	tests := []struct {
		name string
		path string
		body map[string]string
	}{
		{"dual route", "/ocr-dual", nil},
		{"mode field", "/ocr", map[string]string{"mode": "dual"}},
		{"dual route ignores mode", "/ocr-dual", map[string]string{"mode": "single"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, ocrtest.NewEngine("HELLO 123"), nil, Options{})

			rec := post(t, s.Handler(), tt.path, imageBody(t, tt.body))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			var got map[string]any
			decode(t, rec, &got)
			if got["alphabetic"] != "HELLO" || got["numeric"] != "123" {
				t.Errorf("body = %v", got)
			}
		})
	}
}

func TestOCR_DualPartialFailure(t *testing.T) {
	e := ocrtest.NewEngine("HELLO 123")
	e.RecognizeErr = func(w ocr.Whitelist) error {
		if w.Equal(ocr.Numeric) {
			return errors.New("crashed")
		}
		return nil
	}
	s := newTestServer(t, e, nil, Options{})

	rec := post(t, s.Handler(), "/ocr-dual", imageBody(t, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got map[string]any
	decode(t, rec, &got)
	if got["alphabetic"] != "HELLO" {
		t.Errorf("alphabetic = %v", got["alphabetic"])
	}
	if _, ok := got["numeric"]; ok {
		t.Error("numeric should be absent")
	}
	if got["IsErroredOnProcessing"] != true {
		t.Error("IsErroredOnProcessing should be true")
	}
}

func TestOCR_DualAllFailed(t *testing.T) {
	e := ocrtest.NewEngine("HELLO 123")
	e.CreateErr = errors.New("no tessdata")
	s := newTestServer(t, e, nil, Options{})

	rec := post(t, s.Handler(), "/ocr-dual", imageBody(t, nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var got errorResponse
	decode(t, rec, &got)
	if got.Error == "" || len(got.Errors) != 2 {
		t.Errorf("body = %+v", got)
	}
}

func TestOCR_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(e *ocrtest.Engine)
		fetcher    imaging.Fetcher
		body       func(t *testing.T) string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing image",
			body:       func(*testing.T) string { return `{}` },
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing imageBase64 or imageUrl",
		},
		{
			name:       "bad json",
			body:       func(*testing.T) string { return `{"imageBase64":` },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not an image",
			body:       func(*testing.T) string { return `{"imageBase64":"aGVsbG8="}` },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown mode",
			body:       func(t *testing.T) string { return imageBody(t, map[string]string{"mode": "triple"}) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "fetch failure",
			fetcher:    &stubFetcher{err: imaging.ErrUpstreamFetch},
			body:       func(*testing.T) string { return `{"imageUrl":"https://example.com/a.png"}` },
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "engine failure",
			setup:      func(e *ocrtest.Engine) { e.CreateErr = errors.New("no tessdata") },
			body:       func(t *testing.T) string { return imageBody(t, nil) },
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "timeout",
			setup:      func(e *ocrtest.Engine) { e.Gate = make(chan struct{}) },
			body:       func(t *testing.T) string { return imageBody(t, nil) },
			wantStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ocrtest.NewEngine("HELLO")
			if tt.setup != nil {
				tt.setup(e)
			}
			s := newTestServer(t, e, tt.fetcher, Options{})

			rec := post(t, s.Handler(), "/ocr", tt.body(t))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			var got errorResponse
			decode(t, rec, &got)
			if got.Error == "" {
				t.Error("error message is empty")
			}
			if tt.wantError != "" && got.Error != tt.wantError {
				t.Errorf("error = %q, want %q", got.Error, tt.wantError)
			}
			if e.Gate != nil {
				close(e.Gate)
			}
		})
	}
}

func TestOCR_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, ocrtest.NewEngine("HELLO"), nil, Options{MaxBodyBytes: 64})

	body := `{"imageBase64":"` + strings.Repeat("A", 256) + `"}`
	rec := post(t, s.Handler(), "/ocr", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestOCR_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, ocrtest.NewEngine("HELLO"), nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/ocr", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, ocrtest.NewEngine(""), nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	decode(t, rec, &got)
	if got["status"] != "ok" || got["engine"] != "fake" || got["workers"] != float64(2) {
		t.Errorf("body = %v", got)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, ocrtest.NewEngine("HELLO"), nil, Options{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/ocr", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/ocr", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

func TestServe_Shutdown(t *testing.T) {
	s := newTestServer(t, ocrtest.NewEngine("HELLO 123"), nil, Options{MaxConnections: 4})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	resp, err := http.Post(url+"/ocr", "application/json", bytes.NewBufferString(imageBody(t, nil)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
