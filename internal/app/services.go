package app

import (
	"fmt"

	"github.com/raaihank/confidenceboost/internal/cache"
	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/history"
	"github.com/raaihank/confidenceboost/internal/logger"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	"github.com/raaihank/confidenceboost/internal/rewriter"
	"github.com/raaihank/confidenceboost/internal/usage"
	"go.uber.org/zap"
)

// Services holds everything the binaries share
type Services struct {
	Engine   *rewrite.Engine
	Rewriter rewriter.TextRewriter
	Limiter  usage.Limiter
	Cache    *cache.RewriteCache
	History  *history.Store
}

// Parts selects the optional services a binary needs
type Parts struct {
	Usage   bool
	History bool
}

// NewLogger builds the logger described by the logging section
func NewLogger(cfg config.LoggingConfig) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
	}
	if cfg.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.File.Enabled,
			Path:    cfg.File.Path,
		}
	}
	return logger.New(loggerConfig)
}

// Build initializes the rewrite engine, the rewriter chain and the optional
// backing services. Close must be called on the result.
func Build(cfg *config.Config, log *logger.Logger, parts Parts) (*Services, error) {
	s := &Services{}

	engine, err := rewrite.New(cfg.Rewrite, log.WithComponent("rewrite"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rewrite engine: %w", err)
	}
	s.Engine = engine

	var store rewriter.RewriteStore
	if cfg.Cache.Enabled && cfg.Rewrite.Mode == string(rewriter.ModeRemote) {
		log.Info("Initializing rewrite cache...")
		rc, err := cache.NewRewriteCache(cfg.Cache, log.Logger)
		if err != nil {
			// The cache only saves upstream calls
			log.Warn("Rewrite cache unavailable, continuing without it", zap.Error(err))
		} else {
			s.Cache = rc
			store = rc
		}
	}

	rw, err := rewriter.NewFromConfig(cfg, engine, store, log.WithComponent("rewriter").Logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create rewriter: %w", err)
	}
	s.Rewriter = rw

	if parts.Usage {
		limiter, err := usage.New(cfg.Usage, log.WithComponent("usage").Logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create usage limiter: %w", err)
		}
		s.Limiter = limiter
	}

	if parts.History && cfg.History.Enabled {
		log.Info("Initializing history store...")
		hist, err := history.NewStore(cfg.History, log.WithComponent("history").Logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize history store: %w", err)
		}
		s.History = hist
	}

	return s, nil
}

// Recorder returns the history store as a recorder, or nil when disabled
func (s *Services) Recorder() history.Recorder {
	if s.History == nil {
		return nil
	}
	return s.History
}

// Close releases every initialized service
func (s *Services) Close() {
	if s.Limiter != nil {
		s.Limiter.Close()
	}
	if s.Cache != nil {
		s.Cache.Close()
	}
	if s.History != nil {
		s.History.Close()
	}
}
