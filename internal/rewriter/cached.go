package rewriter

import (
	"context"

	"github.com/raaihank/confidenceboost/internal/cache"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	"go.uber.org/zap"
)

// RewriteStore persists rewrites between calls. *cache.RewriteCache implements it.
type RewriteStore interface {
	Lookup(ctx context.Context, rewriteContext, text string) (*cache.CachedRewrite, bool)
	Store(ctx context.Context, text string, rewrite *cache.CachedRewrite) error
}

// CachedRewriter serves repeated messages from a store before calling the
// wrapped rewriter
type CachedRewriter struct {
	next   TextRewriter
	store  RewriteStore
	logger *zap.Logger
}

// NewCachedRewriter decorates next with store
func NewCachedRewriter(next TextRewriter, store RewriteStore, logger *zap.Logger) *CachedRewriter {
	return &CachedRewriter{next: next, store: store, logger: logger}
}

// Rewrite returns a stored rewrite when present, otherwise delegates and stores the result
func (c *CachedRewriter) Rewrite(ctx context.Context, req rewrite.Request) (*Response, error) {
	if hit, ok := c.store.Lookup(ctx, string(req.Context), req.Text); ok {
		return &Response{
			Text:     hit.Text,
			Changed:  hit.Changed,
			Strategy: hit.Strategy,
			Cached:   true,
		}, nil
	}

	resp, err := c.next.Rewrite(ctx, req)
	if err != nil {
		return nil, err
	}

	entry := &cache.CachedRewrite{
		Text:     resp.Text,
		Context:  string(req.Context),
		Strategy: resp.Strategy,
		Changed:  resp.Changed,
	}
	if err := c.store.Store(ctx, req.Text, entry); err != nil {
		// A failed write only costs a future upstream call
		c.logger.Warn("Failed to store rewrite", zap.Error(err))
	}

	return resp, nil
}

// Name returns the wrapped strategy name
func (c *CachedRewriter) Name() string {
	return c.next.Name()
}
