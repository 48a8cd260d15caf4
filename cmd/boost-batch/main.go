package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/confidenceboost/internal/app"
	"github.com/raaihank/confidenceboost/internal/batch"
	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/rewriter"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Configuration file path")
		inputFile   = flag.String("input", "", "Input file (CSV, Parquet, or JSONL)")
		outputFile  = flag.String("output", "", "Output file (Parquet or JSONL)")
		contextName = flag.String("context", "", "Default tone profile for records without one")
		batchSize   = flag.Int("batch-size", 0, "Records per batch")
		workers     = flag.Int("workers", 0, "Number of worker goroutines")
		offline     = flag.Bool("offline", false, "Use only the local rule engine")
	)
	flag.Parse()

	if *inputFile == "" || *outputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -input messages.csv -output rewrites.jsonl\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input messages.parquet -output rewrites.parquet -context professional -workers 8\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *offline {
		cfg.Rewrite.Mode = string(rewriter.ModeOffline)
	}
	if *contextName != "" {
		cfg.Batch.Context = *contextName
	}
	if *batchSize > 0 {
		cfg.Batch.BatchSize = *batchSize
	}
	if *workers > 0 {
		cfg.Batch.WorkerCount = *workers
	}

	log, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting ConfidenceBoost batch rewrite",
		zap.String("mode", cfg.Rewrite.Mode),
		zap.String("context", cfg.Batch.Context))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling batch...")
		cancel()
	}()

	// Batch runs are not subject to the daily quota
	services, err := app.Build(cfg, log, app.Parts{})
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	pipeline, err := batch.NewPipeline(services.Rewriter, cfg.Batch, log.WithComponent("batch").Logger)
	if err != nil {
		log.Fatal("Invalid batch configuration", zap.Error(err))
	}

	summary, err := pipeline.ProcessFile(ctx, *inputFile, *outputFile)
	if err != nil {
		log.Fatal("Batch rewrite failed", zap.Error(err))
	}

	fmt.Printf("Records:   %d\n", summary.TotalRecords)
	fmt.Printf("Changed:   %d\n", summary.Changed)
	fmt.Printf("Unchanged: %d\n", summary.Unchanged)
	fmt.Printf("Failed:    %d\n", summary.Failed)
	fmt.Printf("Batches:   %d\n", summary.Batches)
	fmt.Printf("Duration:  %s\n", summary.Duration)
	for _, msg := range summary.Errors {
		fmt.Printf("  - %s\n", msg)
	}
}
