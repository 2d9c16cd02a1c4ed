package data

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// ErrNoEval is returned when a move comment carries no engine evaluation.
var ErrNoEval = errors.New("no eval annotation")

var evalTag = regexp.MustCompile(`\[%eval\s+([^\]\s]+)\s*\]`)

// PGNParser handles parsing of annotated PGN files
type PGNParser struct {
	filepath string
}

// NewPGNParser creates a new PGN parser
func NewPGNParser(filepath string) *PGNParser {
	return &PGNParser{
		filepath: filepath,
	}
}

// ParsePGN parses a PGN file and returns a list of games
func (p *PGNParser) ParsePGN() ([]*chess.Game, error) {
	file, err := os.Open(p.filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PGN file: %w", err)
	}
	defer file.Close()

	return ParsePGNReader(file)
}

// ParsePGNReader parses PGN from an io.Reader
func ParsePGNReader(reader io.Reader) ([]*chess.Game, error) {
	var games []*chess.Game

	scanner := chess.NewScanner(reader)
	for scanner.Scan() {
		game := scanner.Next()
		// Trailing blank lines come back as a game with no tags and no moves.
		if game == nil || (len(game.Moves()) == 0 && len(game.TagPairs()) == 0) {
			continue
		}
		games = append(games, game)
	}

	// EOF is expected at end of file, not an error
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error parsing PGN: %w", err)
	}

	return games, nil
}

// ParseEvalComment extracts the engine evaluation from a move comment such as
// "[%eval 0.17] [%clk 0:00:30]". Mate announcements ("#3", "#-2") map to
// +mateScore or -mateScore.
func ParseEvalComment(comment string, mateScore float64) (float64, error) {
	match := evalTag.FindStringSubmatch(comment)
	if match == nil {
		return 0, ErrNoEval
	}

	token := match[1]
	if strings.HasPrefix(token, "#") {
		if strings.HasPrefix(token, "#-") {
			return -mateScore, nil
		}
		return mateScore, nil
	}

	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid eval %q: %w", token, err)
	}
	return v, nil
}

// ExtractSamples replays a game and pairs the position after every annotated
// move with its evaluation. Moves without an eval comment are skipped.
func ExtractSamples(game *chess.Game, gameID string, mateScore float64) ([]*Sample, error) {
	if game == nil {
		return nil, fmt.Errorf("game is nil")
	}

	moves := game.Moves()
	positions := game.Positions()
	if len(positions) != len(moves)+1 {
		return nil, fmt.Errorf("game %s: %d positions for %d moves", gameID, len(positions), len(moves))
	}

	// Comments may carry a leading slot for text before the first move.
	comments := game.Comments()
	offset := 0
	if len(comments) == len(moves)+1 {
		offset = 1
	}

	var samples []*Sample
	for i := range moves {
		idx := i + offset
		if idx >= len(comments) {
			break
		}

		eval, err := ParseEvalComment(strings.Join(comments[idx], " "), mateScore)
		if errors.Is(err, ErrNoEval) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("game %s ply %d: %w", gameID, i+1, err)
		}

		samples = append(samples, &Sample{
			FEN:    positions[i+1].String(),
			Eval:   eval,
			GameID: gameID,
			Ply:    i + 1,
		})
	}

	return samples, nil
}

// ValidatePGN checks if a PGN file is valid without fully parsing it
func ValidatePGN(filepath string) error {
	file, err := os.Open(filepath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content := make([]byte, 1024)
	n, err := file.Read(content)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// Check for basic PGN markers
	contentStr := string(content[:n])
	if !strings.Contains(contentStr, "[Event") && !strings.Contains(contentStr, "1.") {
		return fmt.Errorf("file does not appear to be a valid PGN file")
	}

	return nil
}
