package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/color"
	"strings"
	"testing"
)

// stubFetcher records calls and returns canned data.
type stubFetcher struct {
	data  []byte
	err   error
	calls int
	url   string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls++
	f.url = url
	return f.data, f.err
}

func TestDecodeInline_PrefixIndependent(t *testing.T) {
	data := createTestImage(t, 20, 20, color.Black, "png")
	encoded := base64.StdEncoding.EncodeToString(data)

	tests := []struct {
		name    string
		payload string
	}{
		{"bare", encoded},
		{"png header", "data:image/png;base64," + encoded},
		{"jpeg header", "data:image/jpeg;base64," + encoded},
		{"surrounding whitespace", "  \n" + "data:image/png;base64," + encoded + "\n"},
		{"line wrapped", wrap(encoded, 76)},
		{"unpadded", strings.TrimRight(encoded, "=")},
		{"url-safe", base64.URLEncoding.EncodeToString(data)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInline(tt.payload)
			if err != nil {
				t.Fatalf("DecodeInline failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Error("decoded bytes differ from the original image")
			}
		})
	}
}

func TestDecodeInline_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t"},
		{"header only", "data:image/png;base64,"},
		{"not base64", "this is *not* base64!"},
		{"unknown header kept", "data:application/pdf;base64,AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInline(tt.payload)
			if err == nil {
				t.Fatal("DecodeInline should fail")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error should wrap ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestNormalizer_Inline(t *testing.T) {
	data := createTestImage(t, 64, 32, color.White, "png")
	encoded := base64.StdEncoding.EncodeToString(data)
	n := NewNormalizer(nil, 0)

	withPrefix, err := n.Normalize(context.Background(), Input{Base64: "data:image/png;base64," + encoded})
	if err != nil {
		t.Fatalf("Normalize with prefix failed: %v", err)
	}
	withoutPrefix, err := n.Normalize(context.Background(), Input{Base64: encoded})
	if err != nil {
		t.Fatalf("Normalize without prefix failed: %v", err)
	}

	if !bytes.Equal(withPrefix.Bytes(), withoutPrefix.Bytes()) {
		t.Error("prefix presence changed the normalized buffer")
	}
	if withPrefix.Width() != 64 || withPrefix.Height() != 32 {
		t.Errorf("dimensions: got %dx%d, want 64x32", withPrefix.Width(), withPrefix.Height())
	}
}

func TestNormalizer_MissingImage(t *testing.T) {
	fetcher := &stubFetcher{}
	n := NewNormalizer(fetcher, 0)

	for _, in := range []Input{{}, {Base64: "  ", URL: " "}} {
		_, err := n.Normalize(context.Background(), in)
		if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, ErrMissingImage) {
			t.Errorf("Normalize(%+v): expected ErrMissingImage, got %v", in, err)
		}
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times for missing input", fetcher.calls)
	}
}

func TestNormalizer_NotAnImage(t *testing.T) {
	n := NewNormalizer(nil, 0)
	payload := base64.StdEncoding.EncodeToString([]byte("plain text, not pixels"))

	_, err := n.Normalize(context.Background(), Input{Base64: payload})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNormalizer_TooLarge(t *testing.T) {
	data := createTestImage(t, 64, 64, color.White, "png")
	n := NewNormalizer(nil, len(data)-1)

	_, err := n.Normalize(context.Background(), Input{Base64: base64.StdEncoding.EncodeToString(data)})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNormalizer_TooManyPixels(t *testing.T) {
	data := createTestImage(t, 64, 64, color.White, "png")
	fetcher := &stubFetcher{data: data}
	n := NewNormalizer(fetcher, 0).WithMaxPixels(64*64 - 1)

	tests := []struct {
		name string
		in   Input
	}{
		{"inline", Input{Base64: base64.StdEncoding.EncodeToString(data)}},
		{"url", Input{URL: "https://example.com/a.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(context.Background(), tt.in)
			if !errors.Is(err, ErrImageTooLarge) {
				t.Errorf("error = %v, want ErrImageTooLarge", err)
			}
		})
	}

	if _, err := NewNormalizer(nil, 0).Normalize(context.Background(), Input{Base64: base64.StdEncoding.EncodeToString(data)}); err != nil {
		t.Errorf("default limit rejected a small image: %v", err)
	}
}

func TestNormalizer_URL(t *testing.T) {
	data := createTestImage(t, 30, 30, color.Black, "jpeg")
	fetcher := &stubFetcher{data: data}
	n := NewNormalizer(fetcher, 0)

	buf, err := n.Normalize(context.Background(), Input{URL: " https://example.com/receipt.jpg "})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher calls: got %d, want 1", fetcher.calls)
	}
	if fetcher.url != "https://example.com/receipt.jpg" {
		t.Errorf("fetched url: got %q", fetcher.url)
	}
	if buf.Format() != "jpeg" {
		t.Errorf("Format: got %s, want jpeg", buf.Format())
	}
}

func TestNormalizer_InlineWinsOverURL(t *testing.T) {
	data := createTestImage(t, 10, 10, color.White, "png")
	fetcher := &stubFetcher{err: errors.New("should not be called")}
	n := NewNormalizer(fetcher, 0)

	_, err := n.Normalize(context.Background(), Input{
		Base64: base64.StdEncoding.EncodeToString(data),
		URL:    "https://example.com/other.png",
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times, inline payload should win", fetcher.calls)
	}
}

func TestNormalizer_FetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: ErrUpstreamFetch}
	n := NewNormalizer(fetcher, 0)

	_, err := n.Normalize(context.Background(), Input{URL: "https://example.com/x.png"})
	if !errors.Is(err, ErrUpstreamFetch) {
		t.Errorf("expected ErrUpstreamFetch, got %v", err)
	}
}

func TestNormalizer_URLWithoutFetcher(t *testing.T) {
	n := NewNormalizer(nil, 0)
	_, err := n.Normalize(context.Background(), Input{URL: "https://example.com/x.png"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}
