package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raaihank/confidenceboost/internal/app"
	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	"github.com/raaihank/confidenceboost/internal/rewriter"
	"github.com/raaihank/confidenceboost/internal/usage"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		contextName = flag.String("context", "dating", "Tone profile: dating or professional")
		offline     = flag.Bool("offline", false, "Use only the local rule engine")
		asJSON      = flag.Bool("json", false, "Print the full result as JSON")
		verbose     = flag.Bool("verbose", false, "Log to stderr at debug level")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [message]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nReads the message from stdin when none is given.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s \"maybe we could grab coffee sometime?\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  echo \"I think we should meet\" | %s -context professional\n", os.Args[0])
	}
	flag.Parse()

	if err := run(*configPath, *contextName, *offline, *asJSON, *verbose, flag.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, contextName string, offline, asJSON, verbose bool, args []string, stdin io.Reader, stdout io.Writer) error {
	ctx, err := rewrite.ParseContext(contextName)
	if err != nil {
		return err
	}

	text, err := readMessage(args, stdin)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if offline {
		cfg.Rewrite.Mode = string(rewriter.ModeOffline)
	}

	// Keep stdout for the rewrite itself
	cfg.Logging.Level = "error"
	if verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Logging.Format = "console"
	log, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	if utf8.RuneCountInString(strings.TrimSpace(text)) > cfg.Rewrite.MaxInputLength {
		return fmt.Errorf("message exceeds %d characters", cfg.Rewrite.MaxInputLength)
	}

	services, err := app.Build(cfg, log, app.Parts{Usage: cfg.Usage.Backend == "redis"})
	if err != nil {
		return err
	}
	defer services.Close()

	runCtx, cancel := context.WithTimeout(context.Background(), cfg.Upstream.Timeout+5*time.Second)
	defer cancel()

	if services.Limiter != nil {
		decision, err := services.Limiter.Allow(runCtx, localClientID())
		if err != nil {
			return fmt.Errorf("usage check failed: %w", err)
		}
		if !decision.Allowed {
			return fmt.Errorf("%w: limit %d, retry in %s", usage.ErrLimitExceeded, decision.Limit, decision.RetryAfter.Round(time.Minute))
		}
	}

	resp, err := services.Rewriter.Rewrite(runCtx, rewrite.Request{Text: text, Context: ctx})
	if err != nil {
		return err
	}

	if asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(resp)
	}
	_, err = fmt.Fprintln(stdout, resp.Text)
	return err
}

func readMessage(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			return "", errors.New("please enter some text to rewrite")
		}
		return text, nil
	}

	data, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("please enter some text to rewrite")
	}
	return text, nil
}

// localClientID identifies this machine's user against a shared quota
func localClientID() string {
	host, _ := os.Hostname()
	user := os.Getenv("USER")
	return "cli:" + user + "@" + host
}
