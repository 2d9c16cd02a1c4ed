package position

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Board is a Position backed by github.com/notnil/chess.
// Legal moves are generated once on construction, after which a Board is
// read-only and safe to share between goroutines.
type Board struct {
	pos       *chess.Position
	fen       string
	halfMoves int
	valid     []*chess.Move
	moves     []Move
}

// Start returns the standard initial position.
func Start() *Board {
	return newBoard(chess.NewGame().Position())
}

// Parse decodes a FEN snapshot.
func Parse(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	if len(strings.Fields(fen)) != 6 {
		return nil, fmt.Errorf("%w: expected 6 FEN fields in %q", ErrInvalidPosition, fen)
	}

	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	pos := chess.NewGame(opt).Position()

	if err := checkKings(pos.Board()); err != nil {
		return nil, err
	}

	return newBoard(pos), nil
}

// MustParse is Parse for fixed positions known to be valid.
func MustParse(fen string) *Board {
	b, err := Parse(fen)
	if err != nil {
		panic(err)
	}
	return b
}

func newBoard(pos *chess.Position) *Board {
	fen := pos.String()
	valid := pos.ValidMoves()

	moves := make([]Move, len(valid))
	for i, m := range valid {
		moves[i] = Move(m.String())
	}

	return &Board{
		pos:       pos,
		fen:       fen,
		halfMoves: halfMoveClock(fen),
		valid:     valid,
		moves:     moves,
	}
}

// checkKings rejects boards without exactly one king per side.
func checkKings(board *chess.Board) error {
	white, black := 0, 0
	for _, piece := range board.SquareMap() {
		switch piece {
		case chess.WhiteKing:
			white++
		case chess.BlackKing:
			black++
		}
	}
	if white != 1 || black != 1 {
		return fmt.Errorf("%w: found %d white and %d black kings", ErrInvalidPosition, white, black)
	}
	return nil
}

func halfMoveClock(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 5 {
		return 0
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return n
}

// LegalMoves returns a copy of the legal moves in generation order.
func (b *Board) LegalMoves() []Move {
	out := make([]Move, len(b.moves))
	copy(out, b.moves)
	return out
}

// Apply returns the position reached by m.
func (b *Board) Apply(m Move) (Position, error) {
	for i, legal := range b.moves {
		if legal == m {
			return newBoard(b.pos.Update(b.valid[i])), nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrIllegalMove, m, b.fen)
}

// Status classifies the position. Checkmate wins over every draw class;
// a clock of 100 half-moves or more is a fifty-move draw, and a clock of 99
// with a quiet move available is a claimable draw.
func (b *Board) Status() Status {
	if b.pos.Status() == chess.Checkmate {
		return Checkmate
	}
	if len(b.moves) == 0 {
		return Stalemate
	}
	if b.halfMoves >= 100 {
		return FiftyMove
	}
	if b.halfMoves == 99 && b.hasQuietMove() {
		return DrawClaimable
	}
	return Ongoing
}

// hasQuietMove reports whether some legal move keeps the half-move clock running.
func (b *Board) hasQuietMove() bool {
	board := b.pos.Board()
	for _, m := range b.valid {
		if m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant) {
			continue
		}
		if board.Piece(m.S1()).Type() == chess.Pawn {
			continue
		}
		return true
	}
	return false
}

// Turn returns the side to move.
func (b *Board) Turn() Color {
	if b.pos.Turn() == chess.Black {
		return Black
	}
	return White
}

// Snapshot returns the FEN.
func (b *Board) Snapshot() string {
	return b.fen
}

// HalfMoveClock returns the half-move clock from the snapshot.
func (b *Board) HalfMoveClock() int {
	return b.halfMoves
}

func (b *Board) String() string {
	return b.fen
}

// Draw renders the board as text, rank 8 first.
func (b *Board) Draw() string {
	return b.pos.Board().Draw()
}
