// Package recognizer is the request-level entry point shared by every
// transport: it normalizes the image, runs the passes for the requested mode
// and aggregates their results.
package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ironsheep/dual-ocr/internal/imaging"
	"github.com/ironsheep/dual-ocr/internal/ocr"
)

// Mode selects the set of passes run for a request.
type Mode string

const (
	// ModeSingle runs one unrestricted pass.
	ModeSingle Mode = "single"

	// ModeDual runs the alphabetic and numeric passes.
	ModeDual Mode = "dual"
)

// ParseMode parses a mode name. The empty string selects ModeSingle.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeDual:
		return ModeDual, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q (expected single or dual)", imaging.ErrInvalidInput, s)
	}
}

// Passes returns the passes run for the mode.
func (m Mode) Passes() []ocr.Pass {
	if m == ModeDual {
		return ocr.DualPasses()
	}
	return ocr.SinglePass()
}

// Request is one recognition request.
type Request struct {
	Image imaging.Input
	Mode  Mode

	// Passes, when non-empty, overrides Mode.
	Passes []ocr.Pass
}

// Service turns requests into outcomes. It is safe for concurrent use.
type Service struct {
	normalizer *imaging.Normalizer
	orch       *ocr.Orchestrator
	logger     *slog.Logger
}

// New creates a Service.
func New(normalizer *imaging.Normalizer, orch *ocr.Orchestrator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{normalizer: normalizer, orch: orch, logger: logger}
}

// EngineVersion returns the recognition engine's version string.
func (s *Service) EngineVersion() string { return s.orch.Pool().EngineVersion() }

// Workers returns the maximum number of concurrent recognition workers.
func (s *Service) Workers() int { return s.orch.Pool().Size() }

// Recognize normalizes the request image and runs its passes.
//
// The request runs to completion or to its per-pass deadlines even if ctx
// is cancelled; only values are taken from ctx.
//
// Returns:
//   - *ocr.Outcome: Per-pass texts and failures. Returned whenever the passes
//     ran, including when some or all of them failed.
//   - error: Non-nil when no pass ran (invalid input, failed fetch, invalid
//     pass list) or, for a request with a single pass, when that pass failed.
func (s *Service) Recognize(ctx context.Context, req Request) (*ocr.Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	passes := req.Passes
	if len(passes) == 0 {
		passes = req.Mode.Passes()
	}
	if err := ocr.ValidatePasses(passes); err != nil {
		return nil, fmt.Errorf("%w: %w", imaging.ErrInvalidInput, err)
	}

	start := time.Now()
	buf, err := s.normalizer.Normalize(ctx, req.Image)
	if err != nil {
		s.logger.Info("rejected image", "kind", ocr.KindOf(err), "error", err)
		return nil, err
	}

	results := s.orch.Run(ctx, buf, passes)
	out := ocr.Aggregate(results)

	s.logger.Info("recognition completed",
		"passes", len(passes),
		"failed", len(out.Errors),
		"format", buf.Format(),
		"width", buf.Width(),
		"height", buf.Height(),
		"duration", time.Since(start),
	)

	if len(passes) == 1 && !out.OK() {
		return out, out.Err()
	}
	return out, nil
}
