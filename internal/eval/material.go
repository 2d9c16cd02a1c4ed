package eval

import (
	"fmt"
	"strings"

	"github.com/thyrook/abeval/internal/position"
)

var pieceValues = map[rune]float64{
	'P': 1, 'N': 3, 'B': 3, 'R': 5, 'Q': 10, 'K': 0,
	'p': -1, 'n': -3, 'b': -3, 'r': -5, 'q': -10, 'k': 0,
}

// Material counts piece values from the snapshot's placement field.
type Material struct{}

// NewMaterial returns the material evaluator.
func NewMaterial() Material {
	return Material{}
}

// Evaluate implements Evaluator.
func (Material) Evaluate(p position.Position) (float64, error) {
	if score, ok := Terminal(p); ok {
		return score, nil
	}
	return MaterialScore(p.Snapshot())
}

// MaterialScore sums signed piece values of a FEN's placement field.
func MaterialScore(fen string) (float64, error) {
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty snapshot", position.ErrInvalidPosition)
	}

	var score float64
	for _, r := range fields[0] {
		switch {
		case r == '/' || (r >= '1' && r <= '8'):
			continue
		}
		v, ok := pieceValues[r]
		if !ok {
			return 0, fmt.Errorf("%w: unexpected %q in placement %q", position.ErrInvalidPosition, r, fields[0])
		}
		score += v
	}
	return score, nil
}
