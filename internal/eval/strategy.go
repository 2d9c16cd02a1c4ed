package eval

import (
	"fmt"

	"github.com/thyrook/abeval/internal/data"
)

// Strategy names an evaluator implementation.
type Strategy string

const (
	StrategyMaterial Strategy = "material"
	StrategyLearned  Strategy = "learned"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMaterial, StrategyLearned:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Options selects and configures an evaluator.
type Options struct {
	Strategy Strategy
	Encoding data.Encoding
	// Model is required by the learned strategy.
	Model Model
}

// New builds the evaluator named by opts.Strategy.
func New(opts Options) (Evaluator, error) {
	switch opts.Strategy {
	case StrategyMaterial, "":
		return NewMaterial(), nil
	case StrategyLearned:
		if opts.Model == nil {
			return nil, fmt.Errorf("%w: learned strategy needs a model", ErrModelUnavailable)
		}
		enc := opts.Encoding
		if enc == "" {
			enc = data.EncodingOneHot
		}
		return NewLearned(opts.Model, enc)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
}
