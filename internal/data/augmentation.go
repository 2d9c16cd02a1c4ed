package data

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"
)

// AugmentationConfig controls data augmentation behavior
type AugmentationConfig struct {
	ColorInvertProb float64 // Probability of adding a color-inverted copy (0.0-1.0)
	Enabled         bool    // Master switch for augmentation
}

// DefaultAugmentationConfig returns sensible defaults
func DefaultAugmentationConfig() AugmentationConfig {
	return AugmentationConfig{
		ColorInvertProb: 0.25,
		Enabled:         true,
	}
}

// InvertColorsFEN swaps white and black and flips ranks. The resulting
// position is the same game seen from the other side, so its evaluation
// is the negation of the original's.
func InvertColorsFEN(fen string) (string, error) {
	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return "", fmt.Errorf("expected 6 FEN fields in %q", fen)
	}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != BoardSize {
		return "", fmt.Errorf("expected %d ranks in %q", BoardSize, fields[0])
	}
	flipped := make([]string, BoardSize)
	for i, rank := range ranks {
		flipped[BoardSize-1-i] = swapCase(rank)
	}

	turn := "w"
	if fields[1] == "w" {
		turn = "b"
	}

	castling := "-"
	if fields[2] != "-" {
		var b strings.Builder
		// Keep the canonical KQkq order after swapping.
		swapped := swapCase(fields[2])
		for _, r := range "KQkq" {
			if strings.ContainsRune(swapped, r) {
				b.WriteRune(r)
			}
		}
		castling = b.String()
	}

	enPassant := fields[3]
	if enPassant != "-" {
		if len(enPassant) != 2 {
			return "", fmt.Errorf("invalid en passant square %q", enPassant)
		}
		switch enPassant[1] {
		case '3':
			enPassant = enPassant[:1] + "6"
		case '6':
			enPassant = enPassant[:1] + "3"
		default:
			return "", fmt.Errorf("invalid en passant square %q", enPassant)
		}
	}

	return strings.Join([]string{
		strings.Join(flipped, "/"), turn, castling, enPassant, fields[4], fields[5],
	}, " "), nil
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsUpper(r) {
			return unicode.ToLower(r)
		}
		return unicode.ToUpper(r)
	}, s)
}

// InvertSample returns the color-inverted copy of a sample with its evaluation negated.
func InvertSample(sample *Sample) (*Sample, error) {
	fen, err := InvertColorsFEN(sample.FEN)
	if err != nil {
		return nil, err
	}
	return &Sample{
		FEN:    fen,
		Eval:   -sample.Eval,
		GameID: sample.GameID,
		Ply:    sample.Ply,
	}, nil
}

// AugmentBatch applies augmentation to a batch of samples
// Returns original samples plus augmented versions
func AugmentBatch(samples []*Sample, config AugmentationConfig, rng *rand.Rand) []*Sample {
	if !config.Enabled || config.ColorInvertProb <= 0 {
		return samples
	}

	augmented := make([]*Sample, 0, len(samples)*2)

	for _, sample := range samples {
		// Always include original
		augmented = append(augmented, sample)

		if config.ColorInvertProb < 1 && roll(rng) >= config.ColorInvertProb {
			continue
		}
		inverted, err := InvertSample(sample)
		if err != nil {
			continue
		}
		augmented = append(augmented, inverted)
	}

	return augmented
}

func roll(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}
