package position

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPosition is returned when a snapshot cannot be decoded into a board.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrIllegalMove is returned when a move is not legal in the position it is applied to.
	ErrIllegalMove = errors.New("illegal move")
)

// Color identifies a side.
type Color int

const (
	White Color = iota
	Black
)

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// ParseColor accepts "w", "white", "b" or "black".
func ParseColor(s string) (Color, error) {
	switch s {
	case "w", "W", "white", "White":
		return White, nil
	case "b", "B", "black", "Black":
		return Black, nil
	}
	return White, fmt.Errorf("unknown color %q", s)
}

// Status classifies a position for search purposes.
type Status int

const (
	Ongoing Status = iota
	Checkmate
	DrawClaimable
	FiftyMove
	Stalemate
)

func (s Status) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	case Checkmate:
		return "checkmate"
	case DrawClaimable:
		return "draw-claimable"
	case FiftyMove:
		return "fifty-move"
	case Stalemate:
		return "stalemate"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// IsDraw reports whether the status scores as a draw.
func (s Status) IsDraw() bool {
	return s == DrawClaimable || s == FiftyMove || s == Stalemate
}

// IsTerminal reports whether search must stop at this status.
func (s Status) IsTerminal() bool {
	return s == Checkmate || s.IsDraw()
}

// Move is a move in UCI notation, e.g. "e2e4" or "e7e8q".
type Move string

// NoMove is returned when no move can be made.
const NoMove Move = ""

func (m Move) String() string {
	return string(m)
}

// Position is the rules collaborator the search runs against.
// Implementations must be immutable: Apply returns a new value and leaves
// the receiver untouched, so sibling branches always see the parent state.
type Position interface {
	// LegalMoves returns the legal moves in a stable order.
	LegalMoves() []Move
	// Apply returns the position after m.
	Apply(m Move) (Position, error)
	Status() Status
	Turn() Color
	// Snapshot returns the FEN of the position.
	Snapshot() string
}
