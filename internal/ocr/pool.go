package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many recognition workers are alive at once across all
// requests, and hands them out as scoped leases.
//
// A slot is held from worker creation until the worker is released, so the
// bound covers workers abandoned by a timed-out pass until the engine lets
// go of them. Workers themselves are never reused: every lease creates and
// releases its own.
type Pool struct {
	engine   Engine
	language string
	size     int
	sem      *semaphore.Weighted
	logger   *slog.Logger

	// abandoned counts workers still held by passes that timed out.
	abandoned atomic.Int64
}

// NewPool creates a pool of at most size concurrent workers for language.
//
// Parameters:
//   - engine: The recognition engine that creates workers.
//   - language: Engine language code (e.g., "eng"), fixed for the process.
//   - size: Maximum live workers. Zero or negative selects runtime.NumCPU().
//   - logger: Receives release failures. Nil selects slog.Default().
func NewPool(engine Engine, language string, size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		engine:   engine,
		language: language,
		size:     size,
		sem:      semaphore.NewWeighted(int64(size)),
		logger:   logger,
	}
}

// Size returns the maximum number of live workers.
func (p *Pool) Size() int { return p.size }

// Language returns the engine language every worker is created with.
func (p *Pool) Language() string { return p.language }

// EngineVersion returns the underlying engine's version string.
func (p *Pool) EngineVersion() string { return p.engine.Version() }

// Abandoned returns the number of workers whose pass timed out but whose
// engine call has not returned yet. Each one still holds a slot.
func (p *Pool) Abandoned() int { return int(p.abandoned.Load()) }

// Lease states, advanced once with compare-and-swap.
const (
	leaseRunning int32 = iota
	leaseFinished
	leaseAbandoned
)

// WithWorker leases a worker configured with w, runs fn on it and releases it.
//
// The lease acquires a pool slot, creates a worker, applies the whitelist
// (skipped when unrestricted), calls fn, then closes the worker and frees
// the slot. Release happens on every path: success, creation or
// configuration failure, an error or panic from fn, and timeout.
//
// Returns:
//   - string: fn's text on success.
//   - error: Wraps ErrEngine for engine failures and ErrRecognitionTimeout
//     when ctx expires first. A failure to close the worker is logged and
//     never replaces the error that triggered it.
//
// # Timeouts
//
// ctx bounds both the wait for a slot and fn itself. When ctx expires while
// fn is running, WithWorker returns immediately; fn keeps its worker until
// the engine call returns, then the worker is released in the background.
func (p *Pool) WithWorker(ctx context.Context, w Whitelist, fn func(Worker) (string, error)) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: waiting for a worker: %w", ErrRecognitionTimeout, err)
	}

	type leaseResult struct {
		text string
		err  error
	}
	done := make(chan leaseResult, 1)
	var state atomic.Int32
	go func() {
		defer p.sem.Release(1)
		text, err := p.lease(w, fn)
		if !state.CompareAndSwap(leaseRunning, leaseFinished) {
			n := p.abandoned.Add(-1)
			p.logger.Info("abandoned worker released", "abandoned", n, "pool_size", p.size)
		}
		done <- leaseResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		n := p.abandoned.Add(1)
		if !state.CompareAndSwap(leaseRunning, leaseAbandoned) {
			// The lease finished first; its result is on the way.
			p.abandoned.Add(-1)
			res := <-done
			return res.text, res.err
		}
		p.logger.Warn("worker abandoned after timeout",
			"abandoned", n,
			"pool_size", p.size,
			"whitelist_size", w.Len(),
		)
		return "", fmt.Errorf("%w: %w", ErrRecognitionTimeout, ctx.Err())
	}
}

// lease runs one acquire/configure/recognize/release cycle.
func (p *Pool) lease(w Whitelist, fn func(Worker) (string, error)) (text string, err error) {
	var worker Worker
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: worker panicked: %v", ErrEngine, r)
		}
		if worker == nil {
			return
		}
		if cerr := worker.Close(); cerr != nil {
			p.logger.Error("failed to release worker", "error", cerr, "cause", err)
		}
	}()

	worker, err = p.engine.NewWorker(p.language)
	if err != nil {
		worker = nil
		return "", fmt.Errorf("%w: failed to create worker: %w", ErrEngine, err)
	}

	if !w.IsUnrestricted() {
		if err := worker.SetWhitelist(w); err != nil {
			return "", fmt.Errorf("%w: failed to set whitelist: %w", ErrEngine, err)
		}
	}

	text, err = fn(worker)
	if err != nil && !errors.Is(err, ErrEngine) {
		err = fmt.Errorf("%w: %w", ErrEngine, err)
	}
	return text, err
}
