package batch

import (
	"path/filepath"
	"strings"
	"time"
)

// InputRecord is one message to rewrite. Context may be empty to use the
// pipeline default.
type InputRecord struct {
	ID      string `parquet:"id" json:"id"`
	Text    string `parquet:"text" json:"text"`
	Context string `parquet:"context" json:"context"`
}

// ResultRecord is the rewrite outcome for one input record
type ResultRecord struct {
	ID           string   `parquet:"id" json:"id"`
	Context      string   `parquet:"context" json:"context"`
	Input        string   `parquet:"input" json:"input"`
	Output       string   `parquet:"output" json:"output"`
	Changed      bool     `parquet:"changed" json:"changed"`
	Strategy     string   `parquet:"strategy" json:"strategy"`
	FallbackUsed bool     `parquet:"fallback_used" json:"fallback_used"`
	Rules        []string `parquet:"rules" json:"rules,omitempty"`
	Error        string   `parquet:"error" json:"error,omitempty"`
}

// Summary describes a finished batch run
type Summary struct {
	TotalRecords int64         `json:"total_records"`
	Changed      int64         `json:"changed"`
	Unchanged    int64         `json:"unchanged"`
	Failed       int64         `json:"failed"`
	Batches      int64         `json:"batches"`
	Duration     time.Duration `json:"duration"`
	Errors       []string      `json:"errors,omitempty"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSONL   FileFormat = "jsonl"
)

// DetectFileFormat detects file format from extension. Unknown extensions
// are treated as JSON lines.
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	default:
		return FormatJSONL
	}
}
