package rewriter

import (
	"context"

	"github.com/raaihank/confidenceboost/internal/rewrite"
)

// LocalRewriter runs the deterministic rule engine in process
type LocalRewriter struct {
	engine *rewrite.Engine
}

// NewLocalRewriter wraps an engine
func NewLocalRewriter(engine *rewrite.Engine) *LocalRewriter {
	return &LocalRewriter{engine: engine}
}

// Rewrite applies the rule pipeline
func (l *LocalRewriter) Rewrite(_ context.Context, req rewrite.Request) (*Response, error) {
	result, err := l.engine.Rewrite(req.Text, req.Context)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:     result.Text,
		Changed:  result.Changed,
		Strategy: StrategyLocal,
		Rules:    result.Applied,
	}, nil
}

// Name returns the strategy name
func (l *LocalRewriter) Name() string {
	return StrategyLocal
}
