package rewriter

import (
	"fmt"

	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/privacy"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	"go.uber.org/zap"
)

// Mode selects how rewrites are produced
type Mode string

const (
	// ModeOffline uses only the local rule engine
	ModeOffline Mode = "offline"

	// ModeRemote calls the hosted model and falls back to the local engine
	ModeRemote Mode = "remote"
)

// NewFromConfig builds the rewriter chain for cfg.Rewrite.Mode.
// store may be nil to disable caching of hosted rewrites.
func NewFromConfig(cfg *config.Config, engine *rewrite.Engine, store RewriteStore, logger *zap.Logger) (TextRewriter, error) {
	local := NewLocalRewriter(engine)

	switch Mode(cfg.Rewrite.Mode) {
	case ModeOffline, "":
		logger.Info("Created local rewriter")
		return local, nil
	case ModeRemote:
		remote, err := NewRemoteRewriter(cfg.Upstream, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Privacy.Enabled {
			detector, err := privacy.New(cfg.Privacy, logger)
			if err != nil {
				return nil, err
			}
			remote.UsePrivacy(detector)
		}

		var primary TextRewriter = remote
		if store != nil {
			primary = NewCachedRewriter(remote, store, logger)
		}

		logger.Info("Created remote rewriter with local fallback",
			zap.Bool("cache_enabled", store != nil),
			zap.Bool("privacy_enabled", cfg.Privacy.Enabled))
		return NewFallbackRewriter(primary, local, logger), nil
	default:
		return nil, fmt.Errorf("unsupported rewrite mode: %s", cfg.Rewrite.Mode)
	}
}
