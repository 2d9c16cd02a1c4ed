package eval

import (
	"fmt"

	"github.com/thyrook/abeval/internal/data"
	"github.com/thyrook/abeval/internal/position"
)

// Learned scores positions with a model over encoded features.
type Learned struct {
	model    Model
	encoding data.Encoding
}

// NewLearned wraps a model. The model output is returned as is.
func NewLearned(model Model, encoding data.Encoding) (*Learned, error) {
	if model == nil {
		return nil, ErrModelUnavailable
	}
	if encoding.Size() == 0 {
		return nil, fmt.Errorf("unknown feature encoding %q", encoding)
	}
	if sized, ok := model.(interface{ InputSize() int }); ok && sized.InputSize() != encoding.Size() {
		return nil, fmt.Errorf("%w: model expects %d features, %s encoding has %d",
			ErrEvaluation, sized.InputSize(), encoding, encoding.Size())
	}
	return &Learned{model: model, encoding: encoding}, nil
}

// Evaluate implements Evaluator.
func (l *Learned) Evaluate(p position.Position) (float64, error) {
	if score, ok := Terminal(p); ok {
		return score, nil
	}

	features, err := data.EncodeFeatures(p.Snapshot(), l.encoding)
	if err != nil {
		return 0, err
	}
	if err := data.ValidateFeatures(features, l.encoding); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	score, err := l.model.Predict(features)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}
	return score, nil
}

// Encoding returns the feature layout fed to the model.
func (l *Learned) Encoding() data.Encoding {
	return l.encoding
}
