package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/logging"
	"asset-catalog/internal/metrics"
)

// Request describes one render attempt. SourcePath is always a local path;
// the daemon stages remote files into a scratch directory first.
type Request struct {
	SourcePath string
	Kind       catalog.AssetKind
	Format     string
	Width      int
	Height     int
}

// Renderer is one backend in the fallback chain.
type Renderer interface {
	Name() string
	CanRender(req *Request) bool
	Render(ctx context.Context, req *Request) (image.Image, error)
}

// ChainError aggregates the per-backend failures of an exhausted chain.
type ChainError struct {
	Attempts []string
	Errs     []error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("all renderers failed (%s): %v", strings.Join(e.Attempts, ", "), errors.Join(e.Errs...))
}

func (e *ChainError) Unwrap() []error {
	return e.Errs
}

// Chain tries renderers in order until one succeeds. Building one with a
// placeholder renderer last makes it infallible.
type Chain struct {
	renderers []Renderer
}

func NewChain(renderers ...Renderer) *Chain {
	return &Chain{renderers: renderers}
}

// Render walks the fallback chain. Context cancellation stops the chain
// between attempts and aborts subprocess-backed renderers mid-attempt.
func (c *Chain) Render(ctx context.Context, req *Request) (image.Image, error) {
	cerr := &ChainError{}
	for _, r := range c.renderers {
		if !r.CanRender(req) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := r.Render(ctx, req)
		if err == nil {
			metrics.RenderBackendAttempts.WithLabelValues(r.Name(), "success").Inc()
			return img, nil
		}
		metrics.RenderBackendAttempts.WithLabelValues(r.Name(), "failure").Inc()
		logging.Debug("Renderer %s failed for %s: %v", r.Name(), req.SourcePath, err)
		cerr.Attempts = append(cerr.Attempts, r.Name())
		cerr.Errs = append(cerr.Errs, fmt.Errorf("%s: %w", r.Name(), err))
	}
	if len(cerr.Errs) == 0 {
		return nil, fmt.Errorf("no renderer accepts %s (format %s)", req.SourcePath, req.Format)
	}
	return nil, cerr
}
