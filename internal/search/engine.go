// Package search implements depth-limited alpha-beta over immutable positions.
// Scores are from White's perspective: White maximises, Black minimises.
package search

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/thyrook/abeval/internal/eval"
	"github.com/thyrook/abeval/internal/position"
)

// ErrNoLegalMoves is returned when a position reported as ongoing has no
// legal moves. The rules collaborator under-reported a terminal state.
var ErrNoLegalMoves = errors.New("no legal moves in non-terminal position")

// Algorithm selects the tree search used by the engine.
type Algorithm string

const (
	AlphaBeta Algorithm = "alphabeta"
	Minimax   Algorithm = "minimax"
)

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlphaBeta, Minimax:
		return Algorithm(s), nil
	}
	return "", fmt.Errorf("unknown search algorithm %q", s)
}

// Result is a score and the depth at which it was established.
type Result struct {
	Score float64
	Depth int
}

// IsMate reports whether the score is a forced mate for either side.
func (r Result) IsMate() bool {
	return math.IsInf(r.Score, 0)
}

// Stats counts work done by an engine.
type Stats struct {
	Nodes   int64
	Leaves  int64
	Cutoffs int64
}

// Engine searches positions with a leaf evaluator. It holds no per-search
// state besides counters, so one engine may serve concurrent searches.
type Engine struct {
	evaluator eval.Evaluator
	algorithm Algorithm

	nodes   atomic.Int64
	leaves  atomic.Int64
	cutoffs atomic.Int64
}

// NewEngine creates an alpha-beta engine.
func NewEngine(evaluator eval.Evaluator) *Engine {
	return &Engine{evaluator: evaluator, algorithm: AlphaBeta}
}

// WithAlgorithm sets the algorithm used by Run.
func (e *Engine) WithAlgorithm(a Algorithm) *Engine {
	e.algorithm = a
	return e
}

// Algorithm returns the algorithm used by Run.
func (e *Engine) Algorithm() Algorithm {
	return e.algorithm
}

// Evaluator returns the leaf evaluator.
func (e *Engine) Evaluator() eval.Evaluator {
	return e.evaluator
}

// Stats returns the counters accumulated since the last reset.
func (e *Engine) Stats() Stats {
	return Stats{
		Nodes:   e.nodes.Load(),
		Leaves:  e.leaves.Load(),
		Cutoffs: e.cutoffs.Load(),
	}
}

// ResetStats zeroes the counters.
func (e *Engine) ResetStats() {
	e.nodes.Store(0)
	e.leaves.Store(0)
	e.cutoffs.Store(0)
}

// Run searches p with a full window using the configured algorithm.
func (e *Engine) Run(p position.Position, depth, maxDepth int, side position.Color) (Result, error) {
	if e.algorithm == Minimax {
		return e.Minimax(p, depth, maxDepth, side)
	}
	return e.Search(p, math.Inf(-1), math.Inf(1), depth, maxDepth, side)
}

// terminal scores checkmate and draws, tagged with the current depth.
func terminal(p position.Position, depth int, side position.Color) (Result, bool) {
	status := p.Status()
	switch {
	case status == position.Checkmate:
		if side == position.White {
			return Result{Score: math.Inf(-1), Depth: depth}, true
		}
		return Result{Score: math.Inf(1), Depth: depth}, true
	case status.IsDraw():
		return Result{Score: 0, Depth: depth}, true
	}
	return Result{}, false
}

func (e *Engine) leaf(p position.Position, depth int) (Result, error) {
	e.leaves.Add(1)
	score, err := e.evaluator.Evaluate(p)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate at depth %d: %w", depth, err)
	}
	return Result{Score: score, Depth: depth}, nil
}

// Search runs fail-hard alpha-beta. side is the side to move in p; the
// result is clamped to [alpha, beta].
func (e *Engine) Search(p position.Position, alpha, beta float64, depth, maxDepth int, side position.Color) (Result, error) {
	e.nodes.Add(1)

	if r, ok := terminal(p, depth, side); ok {
		return r, nil
	}
	if depth >= maxDepth {
		return e.leaf(p, depth)
	}

	moves := p.LegalMoves()
	if len(moves) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoLegalMoves, p.Snapshot())
	}

	bestDepth := -1

	for _, m := range moves {
		child, err := p.Apply(m)
		if err != nil {
			return Result{}, err
		}

		// Once a mate is in hand only a shorter mate matters, so the window
		// shrinks to the mate score alone.
		childAlpha, childBeta := alpha, beta
		if math.IsInf(alpha, 1) {
			childAlpha = math.MaxFloat64
		}
		if math.IsInf(beta, -1) {
			childBeta = -math.MaxFloat64
		}

		r, err := e.Search(child, childAlpha, childBeta, depth+1, maxDepth, side.Other())
		if err != nil {
			return Result{}, err
		}

		if side == position.White {
			// A later sibling may still mate sooner, so equal mates do not cut.
			if r.Score >= beta && !bothInf(r.Score, beta) {
				e.cutoffs.Add(1)
				return Result{Score: beta, Depth: r.Depth}, nil
			}
			if r.Score > alpha {
				alpha = r.Score
				bestDepth = r.Depth
			} else if r.Score == alpha && math.IsInf(alpha, 0) {
				bestDepth = mateDepth(side, alpha, bestDepth, r.Depth)
			}
		} else {
			if r.Score <= alpha && !bothInf(r.Score, alpha) {
				e.cutoffs.Add(1)
				return Result{Score: alpha, Depth: r.Depth}, nil
			}
			if r.Score < beta {
				beta = r.Score
				bestDepth = r.Depth
			} else if r.Score == beta && math.IsInf(beta, 0) {
				bestDepth = mateDepth(side, beta, bestDepth, r.Depth)
			}
		}
	}

	if bestDepth < 0 {
		bestDepth = depth
	}
	if side == position.White {
		return Result{Score: alpha, Depth: bestDepth}, nil
	}
	return Result{Score: beta, Depth: bestDepth}, nil
}

// Minimax is the unpruned reference search over the same tree.
func (e *Engine) Minimax(p position.Position, depth, maxDepth int, side position.Color) (Result, error) {
	e.nodes.Add(1)

	if r, ok := terminal(p, depth, side); ok {
		return r, nil
	}
	if depth >= maxDepth {
		return e.leaf(p, depth)
	}

	moves := p.LegalMoves()
	if len(moves) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoLegalMoves, p.Snapshot())
	}

	best := math.Inf(1)
	if side == position.White {
		best = math.Inf(-1)
	}
	bestDepth := -1

	for _, m := range moves {
		child, err := p.Apply(m)
		if err != nil {
			return Result{}, err
		}

		r, err := e.Minimax(child, depth+1, maxDepth, side.Other())
		if err != nil {
			return Result{}, err
		}

		improves := r.Score > best
		if side == position.Black {
			improves = r.Score < best
		}
		switch {
		case improves:
			best = r.Score
			bestDepth = r.Depth
		case r.Score == best && math.IsInf(best, 0):
			bestDepth = mateDepth(side, best, bestDepth, r.Depth)
		}
	}

	if bestDepth < 0 {
		bestDepth = depth
	}
	return Result{Score: best, Depth: bestDepth}, nil
}

func bothInf(a, b float64) bool {
	return math.IsInf(a, 0) && a == b
}

// mateDepth merges the depths of two lines with the same mate score. The
// mover keeps the shorter line when it is mating and the longer defence
// when it is being mated.
func mateDepth(mover position.Color, score float64, current, candidate int) int {
	if current < 0 {
		return candidate
	}
	winner := position.Black
	if score > 0 {
		winner = position.White
	}
	if winner == mover {
		return min(current, candidate)
	}
	return max(current, candidate)
}
