package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/raaihank/confidenceboost/internal/rewriter"
)

func TestRunFromArgs(t *testing.T) {
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	args := []string{"Hey, I was wondering if maybe you'd like to grab coffee sometime? No pressure though..."}
	if err := run("", "dating", true, false, false, args, strings.NewReader(""), &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := strings.TrimSpace(out.String()); got != "Hey, let's get coffee this week - I'm looking forward to it!" {
		t.Errorf("Unexpected output %q", got)
	}
}

func TestRunFromStdinJSON(t *testing.T) {
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	stdin := strings.NewReader("I was hoping we could possibly discuss my project timeline if you have time...\n")
	if err := run("", "work", true, true, false, nil, stdin, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var resp rewriter.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if resp.Text != "Let's review my project timeline at your earliest convenience." || resp.Strategy != rewriter.StrategyLocal {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestRunErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name    string
		context string
		args    []string
		stdin   string
	}{
		{"UnknownContext", "casual", []string{"hello there friend"}, ""},
		{"EmptyStdin", "dating", nil, "   \n"},
		{"TooLong", "dating", []string{strings.Repeat("a", 501)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run("", tt.context, true, false, false, tt.args, strings.NewReader(tt.stdin), &out); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
