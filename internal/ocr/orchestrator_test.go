package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/dual-ocr/internal/imaging"
	"github.com/ironsheep/dual-ocr/internal/ocr"
	"github.com/ironsheep/dual-ocr/internal/ocr/ocrtest"
)

func newBuffer(t *testing.T) imaging.ImageBuffer {
	t.Helper()
	buf, err := imaging.NewImageBuffer(ocrtest.TextImage(t, "HELLO 123", 1))
	if err != nil {
		t.Fatalf("NewImageBuffer failed: %v", err)
	}
	return buf
}

func TestNewOrchestrator_Defaults(t *testing.T) {
	pool := ocr.NewPool(ocrtest.NewEngine(""), "eng", 1, nil)
	o := ocr.NewOrchestrator(pool, 0, nil)
	if o.Timeout() != ocr.DefaultPassTimeout {
		t.Errorf("Timeout() = %v, want %v", o.Timeout(), ocr.DefaultPassTimeout)
	}
	if o.Pool() != pool {
		t.Error("Pool() should return the configured pool")
	}
}

func TestRun_ResultsFollowPassOrder(t *testing.T) {
	e := ocrtest.NewEngine("abc")
	o := ocr.NewOrchestrator(ocr.NewPool(e, "eng", 2, nil), time.Second, nil)

	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d passes", n), func(t *testing.T) {
			passes := make([]ocr.Pass, n)
			for i := range passes {
				passes[i] = ocr.Pass{Name: fmt.Sprintf("p%d", i), Whitelist: ocr.Unrestricted}
			}

			results := o.Run(context.Background(), newBuffer(t), passes)
			if len(results) != n {
				t.Fatalf("len(results) = %d, want %d", len(results), n)
			}
			for i, r := range results {
				if r.Name != passes[i].Name {
					t.Errorf("results[%d].Name = %q, want %q", i, r.Name, passes[i].Name)
				}
				if !r.OK() || r.Text != "abc" {
					t.Errorf("results[%d] = %+v", i, r)
				}
			}
		})
	}
}

func TestRun_DualPassesApplyWhitelists(t *testing.T) {
	e := ocrtest.NewEngine("HELLO 123")
	o := ocr.NewOrchestrator(ocr.NewPool(e, "eng", 2, nil), time.Second, nil)

	results := o.Run(context.Background(), newBuffer(t), ocr.DualPasses())
	if got := strings.TrimSpace(results[0].Text); got != "HELLO" {
		t.Errorf("alphabetic = %q, want HELLO", got)
	}
	if got := strings.TrimSpace(results[1].Text); got != "123" {
		t.Errorf("numeric = %q, want 123", got)
	}

	for _, r := range results {
		wl := ocr.Alpha
		if r.Name == ocr.PassNumeric {
			wl = ocr.Numeric
		}
		for _, c := range strings.TrimSpace(r.Text) {
			if !wl.Allows(c) {
				t.Errorf("%s pass emitted %q", r.Name, c)
			}
		}
	}

	s := e.Stats()
	if s.Created != 2 || s.Released != 2 {
		t.Errorf("created %d, released %d; want 2 and 2", s.Created, s.Released)
	}
}

func TestRun_PassesAreIndependent(t *testing.T) {
	e := ocrtest.NewEngine("HELLO 123")
	e.RecognizeErr = func(w ocr.Whitelist) error {
		if w.Equal(ocr.Numeric) {
			return errors.New("numeric pass crashed")
		}
		return nil
	}
	o := ocr.NewOrchestrator(ocr.NewPool(e, "eng", 2, nil), time.Second, nil)

	results := o.Run(context.Background(), newBuffer(t), ocr.DualPasses())
	if !results[0].OK() || strings.TrimSpace(results[0].Text) != "HELLO" {
		t.Errorf("alphabetic pass = %+v, want HELLO", results[0])
	}
	if results[1].OK() {
		t.Fatal("numeric pass should fail")
	}
	if ocr.KindOf(results[1].Err) != ocr.KindEngine {
		t.Errorf("numeric kind = %s, want EngineError", ocr.KindOf(results[1].Err))
	}
}

func TestRun_TimeoutIsPerPass(t *testing.T) {
	e := ocrtest.NewEngine("HELLO 123")
	e.Gate = make(chan struct{})
	o := ocr.NewOrchestrator(ocr.NewPool(e, "eng", 2, nil), 50*time.Millisecond, nil)

	results := o.Run(context.Background(), newBuffer(t), ocr.DualPasses())
	for _, r := range results {
		if ocr.KindOf(r.Err) != ocr.KindRecognitionTimeout {
			t.Errorf("%s error = %v, want timeout", r.Name, r.Err)
		}
		if r.Text != "" {
			t.Errorf("%s text = %q, want empty", r.Name, r.Text)
		}
	}

	close(e.Gate)
	if !e.WaitIdle(time.Second) {
		t.Error("workers were not released after timeout")
	}
}

func TestRun_EmptyBufferNeverCallsEngine(t *testing.T) {
	e := ocrtest.NewEngine("HELLO")
	o := ocr.NewOrchestrator(ocr.NewPool(e, "eng", 1, nil), time.Second, nil)

	results := o.Run(context.Background(), imaging.ImageBuffer{}, ocr.DualPasses())
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if !errors.Is(r.Err, imaging.ErrInvalidInput) {
			t.Errorf("%s error = %v, want ErrInvalidInput", r.Name, r.Err)
		}
	}
	if s := e.Stats(); s.Created != 0 {
		t.Errorf("Created = %d, want 0", s.Created)
	}
}

func TestRun_MoreWorkersThanPool(t *testing.T) {
	e := ocrtest.NewEngine("X")
	o := ocr.NewOrchestrator(ocr.NewPool(e, "eng", 1, nil), time.Second, nil)

	passes := []ocr.Pass{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	results := o.Run(context.Background(), newBuffer(t), passes)
	for _, r := range results {
		if !r.OK() {
			t.Errorf("%s failed: %v", r.Name, r.Err)
		}
	}
	if s := e.Stats(); s.MaxActive != 1 {
		t.Errorf("MaxActive = %d, want 1", s.MaxActive)
	}
}
