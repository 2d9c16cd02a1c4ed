package iface

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thyrook/abeval/internal/decision"
)

// Logger wraps zap logger for structured logging
type Logger struct {
	zap  *zap.Logger
	file *os.File
}

// ParseLevel maps a config level name to a zap level. Unknown names mean info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLogger creates a logger writing to stderr and, when logPath is set, to that file
func NewLogger(logPath string, level string) (*Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var (
		w       io.Writer = os.Stderr
		logFile *os.File
	)
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		w = io.MultiWriter(os.Stderr, f)
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		ParseLevel(level),
	)

	return &Logger{
		zap:  zap.New(core, zap.AddCaller()),
		file: logFile,
	}, nil
}

// Sync flushes buffered logs
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Close flushes the logger and closes the log file, if any
func (l *Logger) Close() error {
	_ = l.zap.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// GetZapLogger returns the underlying zap logger
func (l *Logger) GetZapLogger() *zap.Logger {
	return l.zap
}

// FormatScore renders a White-relative score. Forced mates show the side
// that mates and the ply at which it happens.
func FormatScore(score float64, depth int) string {
	switch {
	case math.IsInf(score, 1):
		return fmt.Sprintf("#+%d", depth)
	case math.IsInf(score, -1):
		return fmt.Sprintf("#-%d", depth)
	default:
		return fmt.Sprintf("%+.2f", score)
	}
}

// CLI handles command-line output
type CLI struct {
	out   io.Writer
	quiet bool
	mu    sync.Mutex
}

// NewCLI creates a CLI writing to out. Quiet suppresses everything but decisions and errors.
func NewCLI(out io.Writer, quiet bool) *CLI {
	if out == nil {
		out = os.Stdout
	}
	return &CLI{out: out, quiet: quiet}
}

// PrintWelcome displays the banner
func (c *CLI) PrintWelcome() {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, strings.Repeat("=", 60))
	fmt.Fprintln(c.out, "  abeval - alpha-beta search with pluggable evaluation")
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
	fmt.Fprintln(c.out)
}

// PrintStatus displays a timestamped status line
func (c *CLI) PrintStatus(status string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "[%s] %s\n", timestamp, status)
}

// PrintDecision displays the chosen move and, unless quiet, every candidate
func (c *CLI) PrintDecision(d *decision.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d.Terminal {
		fmt.Fprintf(c.out, "No move: game over (%s), score %s\n", d.Status, FormatScore(d.Score, d.Depth))
		return
	}

	fmt.Fprintf(c.out, "Best move: %s  score %s  depth %d\n", d.Move, FormatScore(d.Score, d.Depth), d.Depth)
	if c.quiet {
		return
	}

	fmt.Fprintln(c.out, strings.Repeat("─", 50))
	for _, cand := range d.Candidates {
		marker := " "
		if cand.Move == d.Move {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-6s %8s  depth %d", marker, cand.Move, FormatScore(cand.Score, cand.Depth), cand.Depth)
		if cand.Static != nil {
			line += fmt.Sprintf("  static %+.2f", *cand.Static)
		}
		fmt.Fprintln(c.out, line)
	}
	fmt.Fprintln(c.out, strings.Repeat("─", 50))

	note := ""
	if d.TieBreak {
		note = " (evaluator tie-break)"
	}
	fmt.Fprintf(c.out, "nodes %d  leaves %d  cutoffs %d  time %v%s\n",
		d.Nodes, d.Leaves, d.Cutoffs, d.Elapsed.Round(time.Microsecond), note)
}

// PrintError displays an error message
func (c *CLI) PrintError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "Error: %v\n", err)
}

// PrintStatistics displays selector statistics
func (c *CLI) PrintStatistics(stats decision.EngineStats) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, "\n"+strings.Repeat("═", 50))
	fmt.Fprintln(c.out, "  SEARCH STATISTICS")
	fmt.Fprintln(c.out, strings.Repeat("═", 50))
	fmt.Fprintf(c.out, "Decisions:        %d (%d failed)\n", stats.TotalDecisions, stats.FailedDecisions)
	fmt.Fprintf(c.out, "Forced mates:     %d\n", stats.MateDecisions)
	fmt.Fprintf(c.out, "Nodes searched:   %d\n", stats.TotalNodes)
	fmt.Fprintf(c.out, "Avg search time:  %.2f ms\n", stats.AvgSearchMs)
	fmt.Fprintln(c.out, strings.Repeat("═", 50))
}

// ProgressBar displays a progress bar
type ProgressBar struct {
	out     io.Writer
	total   int
	current int
	width   int
	mu      sync.Mutex
}

// NewProgressBar creates a new progress bar
func NewProgressBar(out io.Writer, total, width int) *ProgressBar {
	if out == nil {
		out = os.Stdout
	}
	return &ProgressBar{
		out:   out,
		total: total,
		width: width,
	}
}

// Update updates the progress bar
func (pb *ProgressBar) Update(current int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.current = current
	pb.render()
}

// render displays the progress bar
func (pb *ProgressBar) render() {
	percent := 1.0
	if pb.total > 0 {
		percent = math.Min(1, float64(pb.current)/float64(pb.total))
	}
	filled := int(percent * float64(pb.width))

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < pb.width; i++ {
		switch {
		case i < filled:
			bar.WriteString("=")
		case i == filled:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	fmt.Fprintf(&bar, "] %.1f%%", percent*100)

	fmt.Fprintf(pb.out, "\r%s", bar.String())

	if pb.current >= pb.total {
		fmt.Fprintln(pb.out)
	}
}
