// Package decision picks a move by searching every successor of a position.
package decision

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thyrook/abeval/internal/eval"
	"github.com/thyrook/abeval/internal/position"
	"github.com/thyrook/abeval/internal/search"
)

// ErrSideMismatch is returned when the requested side is not the side to move.
var ErrSideMismatch = errors.New("side is not to move")

// Config controls how deep and how wide the selector searches.
type Config struct {
	// MaxDepth is the ply depth successors are searched to, counting the move itself.
	MaxDepth int
	// Parallel searches successors concurrently, at most Workers at a time.
	Parallel bool
	Workers  int
	// HistorySize bounds the decisions kept for GetHistory.
	HistorySize int
}

// DefaultConfig returns a sequential depth-3 configuration.
func DefaultConfig() Config {
	return Config{
		MaxDepth:    3,
		Workers:     runtime.NumCPU(),
		HistorySize: 100,
	}
}

// Flusher persists buffered evaluations, e.g. eval.Cached.
type Flusher interface {
	Flush() (int, error)
}

// Candidate is one successor with its search result.
type Candidate struct {
	Move  position.Move
	Score float64
	Depth int
	// Static is the evaluator score, set only for candidates that tied on Score.
	Static *float64
}

// Decision is the outcome of one SelectMove call.
type Decision struct {
	Move  position.Move
	Score float64
	Depth int

	// Terminal is set when the root has no moves; Status says why.
	Terminal bool
	Status   position.Status

	// TieBreak is set when the evaluator chose among equal search scores.
	TieBreak   bool
	Candidates []Candidate

	Nodes     int64
	Leaves    int64
	Cutoffs   int64
	Elapsed   time.Duration
	Timestamp time.Time
}

// IsMate reports whether the decision score is a forced mate.
func (d *Decision) IsMate() bool {
	return math.IsInf(d.Score, 0)
}

// Engine selects moves with a search engine.
type Engine struct {
	searcher *search.Engine
	config   Config
	flusher  Flusher
	history  *DecisionHistory
	logger   *zap.Logger
	mu       sync.RWMutex

	// Statistics
	totalDecisions  int
	failedDecisions int
	mateDecisions   int
	totalNodes      int64
	totalSearchTime time.Duration
}

// NewEngine creates a move selector.
func NewEngine(searcher *search.Engine, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxDepth < 1 {
		config.MaxDepth = 1
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.HistorySize < 1 {
		config.HistorySize = 1
	}
	return &Engine{
		searcher: searcher,
		config:   config,
		history:  NewDecisionHistory(config.HistorySize),
		logger:   logger,
	}
}

// WithFlusher flushes f after every decision.
func (e *Engine) WithFlusher(f Flusher) *Engine {
	e.flusher = f
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// SelectMove returns the best move for side, which must be the side to move in p.
func (e *Engine) SelectMove(p position.Position, side position.Color) (*Decision, error) {
	start := time.Now()
	before := e.searcher.Stats()

	d, err := e.selectMove(p, side)
	if err != nil {
		e.mu.Lock()
		e.totalDecisions++
		e.failedDecisions++
		e.mu.Unlock()

		e.logger.Error("Move selection failed",
			zap.String("position", p.Snapshot()),
			zap.Stringer("side", side),
			zap.Error(err),
		)
		return nil, err
	}

	after := e.searcher.Stats()
	d.Nodes = after.Nodes - before.Nodes
	d.Leaves = after.Leaves - before.Leaves
	d.Cutoffs = after.Cutoffs - before.Cutoffs
	d.Elapsed = time.Since(start)
	d.Timestamp = time.Now()

	if e.flusher != nil {
		if n, err := e.flusher.Flush(); err != nil {
			e.logger.Warn("Evaluation cache flush failed", zap.Error(err))
		} else if n > 0 {
			e.logger.Debug("Flushed evaluation cache", zap.Int("entries", n))
		}
	}

	e.mu.Lock()
	e.totalDecisions++
	if d.IsMate() {
		e.mateDecisions++
	}
	e.totalNodes += d.Nodes
	e.totalSearchTime += d.Elapsed
	e.mu.Unlock()

	e.history.Add(d)

	e.logger.Info("Decision made",
		zap.String("move", d.Move.String()),
		zap.Float64("score", d.Score),
		zap.Int("depth", d.Depth),
		zap.Bool("terminal", d.Terminal),
		zap.Bool("tie_break", d.TieBreak),
		zap.Int("candidates", len(d.Candidates)),
		zap.Int64("nodes", d.Nodes),
		zap.Int64("cutoffs", d.Cutoffs),
		zap.Duration("elapsed", d.Elapsed),
	)

	return d, nil
}

func (e *Engine) selectMove(p position.Position, side position.Color) (*Decision, error) {
	if side != p.Turn() {
		return nil, fmt.Errorf("%w: asked for %s, %s to move", ErrSideMismatch, side, p.Turn())
	}

	moves := p.LegalMoves()
	if len(moves) == 0 {
		score, ok := eval.Terminal(p)
		if !ok {
			return nil, fmt.Errorf("%w: %s", search.ErrNoLegalMoves, p.Snapshot())
		}
		return &Decision{Move: position.NoMove, Score: score, Terminal: true, Status: p.Status()}, nil
	}

	children := make([]position.Position, len(moves))
	for i, m := range moves {
		child, err := p.Apply(m)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}

	// A mate in one needs no search.
	for i, child := range children {
		if child.Status() == position.Checkmate {
			return &Decision{
				Move:       moves[i],
				Score:      winFor(side),
				Depth:      1,
				Candidates: []Candidate{{Move: moves[i], Score: winFor(side), Depth: 1}},
			}, nil
		}
	}

	results, err := e.searchAll(children, side.Other())
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(moves))
	for i, r := range results {
		candidates[i] = Candidate{Move: moves[i], Score: r.Score, Depth: r.Depth}
	}

	best := results[0].Score
	for _, r := range results[1:] {
		if better(side, r.Score, best) {
			best = r.Score
		}
	}

	var tied []int
	for i, r := range results {
		if r.Score == best {
			tied = append(tied, i)
		}
	}

	d := &Decision{Score: best, Candidates: candidates}

	if math.IsInf(best, 0) {
		pick := pickMate(side, best, tied, results)
		d.Move = moves[pick]
		d.Depth = results[pick].Depth
		return d, nil
	}

	if len(tied) == 1 {
		d.Move = moves[tied[0]]
		d.Depth = results[tied[0]].Depth
		return d, nil
	}

	pick := -1
	var pickScore float64
	for _, i := range tied {
		s, err := e.searcher.Evaluator().Evaluate(children[i])
		if err != nil {
			return nil, fmt.Errorf("tie-break %s: %w", moves[i], err)
		}
		static := s
		candidates[i].Static = &static
		if pick < 0 || better(side, s, pickScore) {
			pick, pickScore = i, s
		}
	}

	d.Move = moves[pick]
	d.Score = pickScore
	d.Depth = results[pick].Depth
	d.TieBreak = true
	return d, nil
}

// searchAll searches each child with the opponent to move. Results keep move order.
func (e *Engine) searchAll(children []position.Position, toMove position.Color) ([]search.Result, error) {
	results := make([]search.Result, len(children))

	if !e.config.Parallel || len(children) == 1 {
		for i, child := range children {
			r, err := e.searcher.Run(child, 1, e.config.MaxDepth, toMove)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	var g errgroup.Group
	g.SetLimit(e.config.Workers)

	for i, child := range children {
		i, child := i, child
		g.Go(func() error {
			r, err := e.searcher.Run(child, 1, e.config.MaxDepth, toMove)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// pickMate chooses among candidates tied on a mate score: the fastest mate
// when the mover is winning, the longest defence when it is losing.
func pickMate(side position.Color, score float64, tied []int, results []search.Result) int {
	winning := (score > 0) == (side == position.White)

	pick := tied[0]
	for _, i := range tied[1:] {
		if winning && results[i].Depth < results[pick].Depth {
			pick = i
		}
		if !winning && results[i].Depth > results[pick].Depth {
			pick = i
		}
	}
	return pick
}

func better(side position.Color, a, b float64) bool {
	if side == position.White {
		return a > b
	}
	return a < b
}

func winFor(side position.Color) float64 {
	if side == position.White {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// GetStatistics returns engine performance statistics
func (e *Engine) GetStatistics() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var avgSearchMs float64
	succeeded := e.totalDecisions - e.failedDecisions
	if succeeded > 0 {
		avgSearchMs = float64(e.totalSearchTime.Microseconds()) / float64(succeeded) / 1000.0
	}

	return EngineStats{
		TotalDecisions:  e.totalDecisions,
		FailedDecisions: e.failedDecisions,
		MateDecisions:   e.mateDecisions,
		TotalNodes:      e.totalNodes,
		AvgSearchMs:     avgSearchMs,
		TotalSearchTime: e.totalSearchTime,
	}
}

// GetHistory returns the n most recent decisions
func (e *Engine) GetHistory(n int) []Decision {
	return e.history.GetRecent(n)
}

// EngineStats represents engine performance statistics
type EngineStats struct {
	TotalDecisions  int
	FailedDecisions int
	MateDecisions   int
	TotalNodes      int64
	AvgSearchMs     float64
	TotalSearchTime time.Duration
}
