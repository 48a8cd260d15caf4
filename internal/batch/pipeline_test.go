package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/logger"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	"github.com/raaihank/confidenceboost/internal/rewriter"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

func newTestPipeline(t *testing.T, cfg config.BatchConfig) *Pipeline {
	t.Helper()
	engine, err := rewrite.New(config.RewriteConfig{}, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	p, err := NewPipeline(rewriter.NewLocalRewriter(engine), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	return p
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func readJSONL(t *testing.T, path string) []ResultRecord {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer file.Close()

	var results []ResultRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record ResultRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("Bad output line %q: %v", scanner.Text(), err)
		}
		results = append(results, record)
	}
	return results
}

func TestProcessCSVToJSONL(t *testing.T) {
	input := writeFile(t, "messages.csv", strings.Join([]string{
		"id,text,context",
		`a,"Hey, I was wondering if maybe you'd like to grab coffee sometime? No pressure though...",dating`,
		`b,I was hoping we could possibly discuss my project timeline if you have time...,work`,
		`c,ok,`,
		`d,   ,dating`,
		`e,Maybe we could meet,casual`,
	}, "\n")+"\n")
	output := filepath.Join(t.TempDir(), "out.jsonl")

	p := newTestPipeline(t, config.BatchConfig{BatchSize: 2, WorkerCount: 3, Context: "dating"})
	summary, err := p.ProcessFile(context.Background(), input, output)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if summary.TotalRecords != 5 || summary.Changed != 2 || summary.Unchanged != 1 || summary.Failed != 2 {
		t.Errorf("Unexpected summary %+v", summary)
	}
	if summary.Batches != 3 {
		t.Errorf("Expected 3 batches, got %d", summary.Batches)
	}

	results := readJSONL(t, output)
	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	if strings.Join(ids, "") != "abcde" {
		t.Errorf("Output order not preserved: %v", ids)
	}

	if results[0].Output != "Hey, let's get coffee this week - I'm looking forward to it!" {
		t.Errorf("Unexpected dating output %q", results[0].Output)
	}
	if results[1].Context != "professional" ||
		results[1].Output != "Let's review my project timeline at your earliest convenience." {
		t.Errorf("Unexpected professional result %+v", results[1])
	}
	if results[2].Changed || results[2].Output != "ok" || results[2].Context != "dating" {
		t.Errorf("Short message should be returned unchanged with default context: %+v", results[2])
	}
	if results[3].Error == "" || results[4].Error == "" {
		t.Error("Empty text and unknown context should be reported per record")
	}
}

func TestProcessJSONLToParquet(t *testing.T) {
	input := writeFile(t, "messages.jsonl",
		`{"text":"Maybe we could meet tomorrow?","context":"professional"}`+"\n"+
			`{"id":"x","text":"I think we should grab a drink sometime"}`+"\n")
	output := filepath.Join(t.TempDir(), "out.parquet")

	p := newTestPipeline(t, config.BatchConfig{BatchSize: 10, WorkerCount: 2, Context: "dating"})
	summary, err := p.ProcessFile(context.Background(), input, output)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if summary.TotalRecords != 2 || summary.Failed != 0 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	file, err := os.Open(output)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var results []ResultRecord
	for {
		var record ResultRecord
		err := reader.Read(&record)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read parquet output: %v", err)
		}
		results = append(results, record)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].ID != "1" || results[0].Output != "Let's meet tomorrow." {
		t.Errorf("Unexpected first result %+v", results[0])
	}
	if results[1].ID != "x" || !results[1].Changed || len(results[1].Rules) == 0 {
		t.Errorf("Unexpected second result %+v", results[1])
	}
}

func TestProcessParquetInput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "messages.parquet")
	file, err := os.Create(input)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}
	writer := parquet.NewWriter(file, parquet.SchemaOf(new(InputRecord)))
	for _, record := range []InputRecord{
		{ID: "p1", Text: "Sorry, could we possibly touch base this week?", Context: "professional"},
		{ID: "p2", Text: "Would you like to hang out sometime?", Context: "dating"},
	} {
		if err := writer.Write(&record); err != nil {
			t.Fatalf("Failed to write input row: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close parquet writer: %v", err)
	}
	file.Close()

	output := filepath.Join(t.TempDir(), "out.jsonl")
	p := newTestPipeline(t, config.BatchConfig{BatchSize: 1, WorkerCount: 1, Context: "dating"})
	summary, err := p.ProcessFile(context.Background(), input, output)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if summary.TotalRecords != 2 || summary.Changed != 2 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	results := readJSONL(t, output)
	if len(results) != 2 || results[0].ID != "p1" || results[1].ID != "p2" {
		t.Fatalf("Unexpected results %+v", results)
	}
	if strings.Contains(strings.ToLower(results[0].Output), "sorry") {
		t.Errorf("Hedge should be stripped: %q", results[0].Output)
	}
}

func TestCSVRequiresTextColumn(t *testing.T) {
	input := writeFile(t, "bad.csv", "id,message\n1,hello\n")
	p := newTestPipeline(t, config.BatchConfig{BatchSize: 10, WorkerCount: 1, Context: "dating"})
	if _, err := p.ProcessFile(context.Background(), input, filepath.Join(t.TempDir(), "out.jsonl")); err == nil {
		t.Error("Expected error for CSV without text column")
	}
}

func TestNewPipelineRejectsUnknownContext(t *testing.T) {
	if _, err := NewPipeline(nil, config.BatchConfig{Context: "casual"}, zap.NewNop()); err == nil {
		t.Error("Expected error for unknown default context")
	}
}

func TestDetectFileFormat(t *testing.T) {
	tests := map[string]FileFormat{
		"a.csv":         FormatCSV,
		"b.CSV":         FormatCSV,
		"c.parquet":     FormatParquet,
		"d.jsonl":       FormatJSONL,
		"e.json":        FormatJSONL,
		"no-extension":  FormatJSONL,
		"dir.csv/f.txt": FormatJSONL,
	}
	for name, expected := range tests {
		if got := DetectFileFormat(name); got != expected {
			t.Errorf("DetectFileFormat(%q) = %s, want %s", name, got, expected)
		}
	}
}
