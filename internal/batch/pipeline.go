package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	"github.com/raaihank/confidenceboost/internal/rewriter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxReportedErrors = 20

// Pipeline rewrites message files in batches with a bounded worker pool
type Pipeline struct {
	rewriter       rewriter.TextRewriter
	config         config.BatchConfig
	defaultContext rewrite.Context
	maxInputLength int
	logger         *zap.Logger
}

// NewPipeline creates a new batch pipeline
func NewPipeline(rw rewriter.TextRewriter, cfg config.BatchConfig, logger *zap.Logger) (*Pipeline, error) {
	defaultContext, err := rewrite.ParseContext(cfg.Context)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}

	return &Pipeline{
		rewriter:       rw,
		config:         cfg,
		defaultContext: defaultContext,
		maxInputLength: rewrite.MaxInputLength,
		logger:         logger,
	}, nil
}

// ProcessFile rewrites every record of inputPath into outputPath. Output
// order matches input order. Per-record failures are reported in the
// output and the summary; only I/O failures abort the run.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string) (*Summary, error) {
	start := time.Now()

	p.logger.Info("Starting batch rewrite",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("input_format", string(DetectFileFormat(inputPath))),
		zap.String("output_format", string(DetectFileFormat(outputPath))),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	reader, err := openReader(inputPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	writer, err := createWriter(outputPath)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	runErr := p.processBatches(ctx, reader, writer, summary)
	closeErr := writer.Close()
	summary.Duration = time.Since(start)

	if runErr != nil {
		return summary, runErr
	}
	if closeErr != nil {
		return summary, closeErr
	}

	p.logger.Info("Batch rewrite completed",
		zap.Int64("total_records", summary.TotalRecords),
		zap.Int64("changed", summary.Changed),
		zap.Int64("unchanged", summary.Unchanged),
		zap.Int64("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

func (p *Pipeline) processBatches(ctx context.Context, reader recordReader, writer resultWriter, summary *Summary) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := readBatch(reader, p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		results, err := p.processBatch(ctx, batch)
		if err != nil {
			return err
		}

		for _, result := range results {
			if err := writer.Write(result); err != nil {
				return fmt.Errorf("failed to write result %s: %w", result.ID, err)
			}
			summary.add(result)
		}
		summary.Batches++

		p.logger.Debug("Batch processed",
			zap.Int64("batch", summary.Batches),
			zap.Int("batch_size", len(batch)),
			zap.Int64("records_so_far", summary.TotalRecords))
	}
}

func readBatch(reader recordReader, size int) ([]*InputRecord, error) {
	batch := make([]*InputRecord, 0, size)
	for len(batch) < size {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, record)
	}
	return batch, nil
}

// processBatch rewrites one batch concurrently, keeping input order
func (p *Pipeline) processBatch(ctx context.Context, batch []*InputRecord) ([]*ResultRecord, error) {
	results := make([]*ResultRecord, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.WorkerCount)

	for i, record := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.rewriteRecord(gctx, record)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) rewriteRecord(ctx context.Context, record *InputRecord) *ResultRecord {
	result := &ResultRecord{ID: record.ID, Input: record.Text}

	rewriteContext := p.defaultContext
	if strings.TrimSpace(record.Context) != "" {
		parsed, err := rewrite.ParseContext(record.Context)
		if err != nil {
			result.Context = record.Context
			result.Error = err.Error()
			return result
		}
		rewriteContext = parsed
	}
	result.Context = string(rewriteContext)

	if strings.TrimSpace(record.Text) == "" {
		result.Error = "empty text"
		return result
	}
	if n := len([]rune(strings.TrimSpace(record.Text))); n > p.maxInputLength {
		result.Error = fmt.Sprintf("text exceeds %d characters", p.maxInputLength)
		return result
	}

	resp, err := p.rewriter.Rewrite(ctx, rewrite.Request{Text: record.Text, Context: rewriteContext})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Output = resp.Text
	result.Changed = resp.Changed
	result.Strategy = resp.Strategy
	result.FallbackUsed = resp.FallbackUsed
	result.Rules = resp.Rules
	return result
}

func (s *Summary) add(result *ResultRecord) {
	s.TotalRecords++
	switch {
	case result.Error != "":
		s.Failed++
		if len(s.Errors) < maxReportedErrors {
			s.Errors = append(s.Errors, fmt.Sprintf("record %s: %s", result.ID, result.Error))
		}
	case result.Changed:
		s.Changed++
	default:
		s.Unchanged++
	}
}
