package iface

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thyrook/abeval/internal/decision"
	"github.com/thyrook/abeval/internal/position"
)

func TestFormatScore(t *testing.T) {
	tests := []struct {
		score float64
		depth int
		want  string
	}{
		{1.5, 3, "+1.50"},
		{-0.25, 2, "-0.25"},
		{0, 1, "+0.00"},
		{math.Inf(1), 3, "#+3"},
		{math.Inf(-1), 4, "#-4"},
	}

	for _, tt := range tests {
		if got := FormatScore(tt.score, tt.depth); got != tt.want {
			t.Errorf("FormatScore(%v, %d) = %q, want %q", tt.score, tt.depth, got, tt.want)
		}
	}
}

func TestPrintDecision(t *testing.T) {
	var buf bytes.Buffer
	cli := NewCLI(&buf, false)

	static := 2.0
	cli.PrintDecision(&decision.Decision{
		Move:     "e2e4",
		Score:    2,
		Depth:    3,
		TieBreak: true,
		Candidates: []decision.Candidate{
			{Move: "d2d4", Score: 3, Depth: 3, Static: new(float64)},
			{Move: "e2e4", Score: 3, Depth: 3, Static: &static},
			{Move: "a2a3", Score: 1, Depth: 3},
		},
		Nodes:   120,
		Elapsed: 5 * time.Millisecond,
	})

	out := buf.String()
	for _, want := range []string{"Best move: e2e4", "* e2e4", "static +2.00", "a2a3", "tie-break", "nodes 120"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintDecisionQuiet(t *testing.T) {
	var buf bytes.Buffer
	cli := NewCLI(&buf, true)

	cli.PrintWelcome()
	cli.PrintStatus("searching")
	cli.PrintDecision(&decision.Decision{
		Move:       "a1a8",
		Score:      math.Inf(1),
		Depth:      1,
		Candidates: []decision.Candidate{{Move: "a1a8", Score: math.Inf(1), Depth: 1}},
	})

	if got := strings.TrimSpace(buf.String()); got != "Best move: a1a8  score #+1  depth 1" {
		t.Errorf("Unexpected quiet output: %q", got)
	}
}

func TestPrintTerminal(t *testing.T) {
	var buf bytes.Buffer
	cli := NewCLI(&buf, false)

	cli.PrintDecision(&decision.Decision{Move: position.NoMove, Terminal: true, Status: position.Stalemate})
	if !strings.Contains(buf.String(), "game over") {
		t.Errorf("Expected game over, got %q", buf.String())
	}
}

func TestPrintErrorAndStatistics(t *testing.T) {
	var buf bytes.Buffer
	cli := NewCLI(&buf, false)

	cli.PrintError(errors.New("boom"))
	cli.PrintStatistics(decision.EngineStats{TotalDecisions: 3, FailedDecisions: 1, TotalNodes: 42})

	out := buf.String()
	if !strings.Contains(out, "Error: boom") || !strings.Contains(out, "3 (1 failed)") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(&buf, 4, 10)

	pb.Update(2)
	if !strings.Contains(buf.String(), "50.0%") {
		t.Errorf("Expected 50%%, got %q", buf.String())
	}
	pb.Update(4)
	if !strings.HasSuffix(buf.String(), "100.0%\n") {
		t.Errorf("Expected completed bar, got %q", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "abeval.log")

	logger, err := NewLogger(path, "debug")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.GetZapLogger().Info("hello")
	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if ParseLevel("nonsense") != ParseLevel("info") {
		t.Error("Unknown level should fall back to info")
	}
}
