package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photo-album/internal/logging"
	"photo-album/internal/metrics"
)

var (
	// ErrBackendUnavailable signals that a backend cannot serve at all
	// (model failed to load, no API token configured). The chain skips
	// to the next backend without treating it as an analysis failure.
	ErrBackendUnavailable = errors.New("analysis backend unavailable")

	// ErrAnalysisFailed is returned when every backend in the chain
	// failed for an image.
	ErrAnalysisFailed = errors.New("all analysis backends failed")
)

// Result is the outcome of analyzing a single image.
type Result struct {
	Description string
	Tags        []string
	Confidence  float64
	Backend     string
}

// Backend generates a description for an image file.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Analyze produces a description, tags and a confidence score for
	// the image at path. Returning ErrBackendUnavailable marks the
	// backend as unusable rather than the image as unanalyzable.
	Analyze(ctx context.Context, path string) (*Result, error)
}

// Chain tries a fixed ordered list of backends and returns the first
// successful result. Order encodes preference: richer backends first,
// the heuristic last so analysis always produces something unless the
// file itself is gone.
type Chain struct {
	backends []Backend
}

func NewChain(backends ...Backend) *Chain {
	return &Chain{backends: backends}
}

// Analyze runs the chain for one image.
func (c *Chain) Analyze(ctx context.Context, path string) (*Result, error) {
	var lastErr error
	for _, b := range c.backends {
		start := time.Now()
		result, err := b.Analyze(ctx, path)
		metrics.AnalysisCallDuration.WithLabelValues(b.Name()).Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			metrics.AnalysisCallsTotal.WithLabelValues(b.Name(), "success").Inc()
			result.Backend = b.Name()
			return result, nil
		case errors.Is(err, ErrBackendUnavailable):
			metrics.AnalysisCallsTotal.WithLabelValues(b.Name(), "unavailable").Inc()
			logging.Debug("Analysis backend %s unavailable: %v", b.Name(), err)
		default:
			metrics.AnalysisCallsTotal.WithLabelValues(b.Name(), "error").Inc()
			logging.Error("Analysis backend %s failed for %s: %v", b.Name(), path, err)
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, lastErr)
}
