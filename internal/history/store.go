package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

const schema = `
	CREATE TABLE IF NOT EXISTS rewrite_history (
		id            BIGSERIAL PRIMARY KEY,
		request_id    TEXT NOT NULL DEFAULT '',
		context       TEXT NOT NULL,
		strategy      TEXT NOT NULL,
		input_length  INTEGER NOT NULL,
		output_length INTEGER NOT NULL,
		changed       BOOLEAN NOT NULL,
		fallback_used BOOLEAN NOT NULL DEFAULT FALSE,
		cached        BOOLEAN NOT NULL DEFAULT FALSE,
		rules         TEXT[] NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_rewrite_history_created_at ON rewrite_history (created_at DESC);`

const maxRecentLimit = 500

// Store writes rewrite outcomes to PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to PostgreSQL and creates the history table if needed
func NewStore(cfg config.HistoryConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("History store initialized successfully",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return store, nil
}

// Migrate creates the history table and its index
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

// Insert records one rewrite
func (s *Store) Insert(ctx context.Context, record *Record) error {
	if record.Rules == nil {
		record.Rules = []string{}
	}

	query := `
		INSERT INTO rewrite_history
			(request_id, context, strategy, input_length, output_length, changed, fallback_used, cached, rules)
		VALUES
			(:request_id, :context, :strategy, :input_length, :output_length, :changed, :fallback_used, :cached, :rules)
		RETURNING id, created_at`

	rows, err := s.db.NamedQueryContext(ctx, query, record)
	if err != nil {
		s.logger.Error("Failed to insert history record",
			zap.Error(err),
			zap.String("context", record.Context),
			zap.String("strategy", record.Strategy))
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&record.ID, &record.CreatedAt); err != nil {
			return fmt.Errorf("failed to read inserted record: %w", err)
		}
	}

	s.logger.Debug("History record inserted", zap.Int64("id", record.ID))
	return rows.Err()
}

// Recent returns the newest records first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	records := []Record{}
	query := `
		SELECT id, request_id, context, strategy, input_length, output_length,
		       changed, fallback_used, cached, rules, created_at
		FROM rewrite_history
		ORDER BY created_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &records, query, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return records, nil
}

// GetStats returns aggregate counts over the whole history
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByContext: make(map[string]int64)}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN changed THEN 1 END) AS changed,
			COUNT(CASE WHEN fallback_used THEN 1 END) AS fallback_used
		FROM rewrite_history`

	err := s.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Changed, &stats.FallbackUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stats: %w", err)
	}

	var perContext []struct {
		Context string `db:"context"`
		Count   int64  `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &perContext,
		`SELECT context, COUNT(*) AS count FROM rewrite_history GROUP BY context`); err != nil {
		return nil, fmt.Errorf("failed to get per-context stats: %w", err)
	}
	for _, row := range perContext {
		stats.ByContext[row.Context] = row.Count
	}

	err = s.db.SelectContext(ctx, &stats.TopRules, `
		SELECT rule, COUNT(*) AS count
		FROM rewrite_history, UNNEST(rules) AS rule
		GROUP BY rule
		ORDER BY count DESC, rule
		LIMIT 10`)
	if err != nil {
		s.logger.Warn("Failed to get rule stats", zap.Error(err))
	}

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return min(limit, maxRecentLimit)
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	if colon <= strings.Index(userPart, "://")+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
