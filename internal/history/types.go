package history

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// Record is one audited rewrite. Message bodies are never stored.
type Record struct {
	ID           int64          `db:"id" json:"id"`
	RequestID    string         `db:"request_id" json:"request_id"`
	Context      string         `db:"context" json:"context"`
	Strategy     string         `db:"strategy" json:"strategy"`
	InputLength  int            `db:"input_length" json:"input_length"`
	OutputLength int            `db:"output_length" json:"output_length"`
	Changed      bool           `db:"changed" json:"changed"`
	FallbackUsed bool           `db:"fallback_used" json:"fallback_used"`
	Cached       bool           `db:"cached" json:"cached"`
	Rules        pq.StringArray `db:"rules" json:"rules"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Stats summarizes the history table
type Stats struct {
	Total        int64            `json:"total"`
	Changed      int64            `json:"changed"`
	FallbackUsed int64            `json:"fallback_used"`
	ByContext    map[string]int64 `json:"by_context"`
	TopRules     []RuleCount      `json:"top_rules"`
}

// RuleCount is how often a rule fired
type RuleCount struct {
	Rule  string `db:"rule" json:"rule"`
	Count int64  `db:"count" json:"count"`
}

// Recorder accepts rewrite outcomes. *Store implements it.
type Recorder interface {
	Insert(ctx context.Context, record *Record) error
}
