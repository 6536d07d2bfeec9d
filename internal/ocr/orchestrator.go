package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/dual-ocr/internal/imaging"
)

// DefaultPassTimeout bounds a single pass when no timeout is configured.
const DefaultPassTimeout = 30 * time.Second

// Result is the outcome of one pass. Exactly one of Text and Err is
// meaningful: Err is nil on success. Text is the engine's raw output.
type Result struct {
	Name     string
	Text     string
	Err      error
	Duration time.Duration
}

// OK reports whether the pass succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Orchestrator runs recognition passes over a shared image.
type Orchestrator struct {
	pool    *Pool
	timeout time.Duration
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator that leases workers from pool and
// gives each pass timeout to finish. A non-positive timeout selects
// DefaultPassTimeout.
func NewOrchestrator(pool *Pool, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultPassTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{pool: pool, timeout: timeout, logger: logger}
}

// Timeout returns the per-pass deadline.
func (o *Orchestrator) Timeout() time.Duration { return o.timeout }

// Pool returns the worker pool passes are leased from.
func (o *Orchestrator) Pool() *Pool { return o.pool }

// Run executes every pass against buf and returns one Result per pass, in
// the order of passes.
//
// Passes run concurrently, limited by the pool. They are independent: a
// failed or timed-out pass is recorded in its own Result and never cancels
// its siblings. buf is shared read-only by all passes.
func (o *Orchestrator) Run(ctx context.Context, buf imaging.ImageBuffer, passes []Pass) []Result {
	results := make([]Result, len(passes))
	if buf.IsEmpty() {
		for i, p := range passes {
			results[i] = Result{Name: p.Name, Err: fmt.Errorf("%w: empty image buffer", imaging.ErrInvalidInput)}
		}
		return results
	}

	var g errgroup.Group
	for i, pass := range passes {
		g.Go(func() error {
			results[i] = o.runPass(ctx, buf, pass)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) runPass(ctx context.Context, buf imaging.ImageBuffer, pass Pass) Result {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	text, err := o.pool.WithWorker(ctx, pass.Whitelist, func(w Worker) (string, error) {
		return w.Recognize(buf.Bytes())
	})
	res := Result{Name: pass.Name, Text: text, Err: err, Duration: time.Since(start)}

	attrs := []any{
		"pass", pass.Name,
		"whitelist_size", pass.Whitelist.Len(),
		"duration", res.Duration,
	}
	switch {
	case err == nil:
		o.logger.Debug("pass completed", append(attrs, "chars", len(text))...)
	case errors.Is(err, ErrRecognitionTimeout):
		o.logger.Warn("pass timed out", append(attrs, "timeout", o.timeout, "error", err)...)
	default:
		o.logger.Error("pass failed", append(attrs, "error", err)...)
	}
	return res
}
