package rewriter

import (
	"context"
	"errors"
	"strings"

	"github.com/raaihank/confidenceboost/internal/rewrite"
	"go.uber.org/zap"
)

// FallbackRewriter tries the primary strategy and falls back to the secondary
// when the primary fails or answers with nothing
type FallbackRewriter struct {
	primary   TextRewriter
	secondary TextRewriter
	logger    *zap.Logger
}

// NewFallbackRewriter creates a fallback chain
func NewFallbackRewriter(primary, secondary TextRewriter, logger *zap.Logger) *FallbackRewriter {
	return &FallbackRewriter{primary: primary, secondary: secondary, logger: logger}
}

// Rewrite runs the primary, then the secondary on failure
func (f *FallbackRewriter) Rewrite(ctx context.Context, req rewrite.Request) (*Response, error) {
	resp, err := f.primary.Rewrite(ctx, req)
	if err == nil && strings.TrimSpace(resp.Text) != "" {
		return resp, nil
	}

	var cfgErr *rewrite.ConfigurationError
	if errors.As(err, &cfgErr) {
		return nil, err
	}
	if err == nil {
		err = ErrEmptyResponse
	}

	f.logger.Warn("Primary rewriter failed, using fallback",
		zap.String("primary", f.primary.Name()),
		zap.String("fallback", f.secondary.Name()),
		zap.Error(err))

	resp, err = f.secondary.Rewrite(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.FallbackUsed = true
	return resp, nil
}

// Name returns the primary strategy name
func (f *FallbackRewriter) Name() string {
	return f.primary.Name()
}
