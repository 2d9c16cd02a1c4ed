// Package eval scores positions from White's perspective.
package eval

import (
	"errors"
	"math"

	"github.com/thyrook/abeval/internal/position"
)

var (
	// ErrEvaluation is returned when a model fails or rejects its input.
	ErrEvaluation = errors.New("evaluation failed")

	// ErrModelUnavailable is returned when the learned strategy has no model.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrUnknownStrategy is returned for an unrecognised strategy name.
	ErrUnknownStrategy = errors.New("unknown evaluation strategy")
)

// Evaluator scores a position. Positive favours White.
type Evaluator interface {
	Evaluate(p position.Position) (float64, error)
}

// Model maps a feature vector to a scalar evaluation.
type Model interface {
	Predict(features []float64) (float64, error)
}

// Terminal scores finished positions: the side to move in checkmate has
// lost, and every draw class is 0. ok is false for ongoing positions.
func Terminal(p position.Position) (score float64, ok bool) {
	status := p.Status()
	switch {
	case status == position.Checkmate:
		if p.Turn() == position.White {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	case status.IsDraw():
		return 0, true
	}
	return 0, false
}
