package rewriter

import (
	"context"
	"errors"

	"github.com/raaihank/confidenceboost/internal/rewrite"
)

// Strategy names reported in responses and logs
const (
	StrategyLocal  = "local"
	StrategyRemote = "remote"
)

// ErrEmptyResponse is returned when a hosted model answers with no text
var ErrEmptyResponse = errors.New("rewriter returned empty text")

// TextRewriter turns a hesitant message into a confident one
type TextRewriter interface {
	// Rewrite rewrites a single message for the requested context
	Rewrite(ctx context.Context, req rewrite.Request) (*Response, error)

	// Name returns the strategy name
	Name() string
}

// Response is the outcome of a rewrite through any strategy
type Response struct {
	Text         string   `json:"text"`
	Changed      bool     `json:"changed"`
	Strategy     string   `json:"strategy"`
	FallbackUsed bool     `json:"fallback_used"`
	Cached       bool     `json:"cached"`
	Rules        []string `json:"rules,omitempty"`
}
