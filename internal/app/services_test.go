package app

import (
	"context"
	"testing"

	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/logger"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	"github.com/raaihank/confidenceboost/internal/rewriter"
)

func TestBuildOffline(t *testing.T) {
	cfg := config.GetDefaults()

	s, err := Build(cfg, logger.NewNop(), Parts{Usage: true, History: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer s.Close()

	if s.Rewriter.Name() != rewriter.StrategyLocal {
		t.Errorf("Expected local strategy, got %s", s.Rewriter.Name())
	}
	if s.Limiter == nil {
		t.Error("Expected a usage limiter")
	}
	if s.Recorder() != nil {
		t.Error("History is disabled by default")
	}

	resp, err := s.Rewriter.Rewrite(context.Background(), rewrite.Request{
		Text:    "Would you like to grab coffee sometime?",
		Context: rewrite.ContextDating,
	})
	if err != nil || !resp.Changed {
		t.Errorf("Unexpected rewrite %+v (%v)", resp, err)
	}
}

func TestBuildRejectsBadRewriteConfig(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.Rewrite.DisabledRules = []string{"not a rule"}

	if _, err := Build(cfg, logger.NewNop(), Parts{}); err == nil {
		t.Error("Expected error for unknown disabled rule")
	}
}

func TestNewLogger(t *testing.T) {
	cfg := config.GetDefaults().Logging
	cfg.Format = "console"

	log, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if log.Level().String() != "info" {
		t.Errorf("Unexpected level %s", log.Level())
	}
}
