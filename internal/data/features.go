package data

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"

	"github.com/thyrook/abeval/internal/position"
)

// Encoding selects the feature layout fed to the learned evaluator.
type Encoding string

const (
	// EncodingOneHot is 12 one-hot channels per square followed by the state fields.
	EncodingOneHot Encoding = "onehot"
	// EncodingOrdinal is one piece code per square followed by the state fields.
	EncodingOrdinal Encoding = "ordinal"
)

const (
	NumChannels = 12 // 6 piece types × 2 colors
	BoardSize   = 8
	NumSquares  = BoardSize * BoardSize

	// side to move, 4 castling flags, en-passant square, half-move clock, full-move number
	numStateFeatures = 8

	OneHotSize  = NumSquares*NumChannels + numStateFeatures
	OrdinalSize = NumSquares + numStateFeatures
)

// ParseEncoding validates an encoding name.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingOneHot, EncodingOrdinal:
		return Encoding(s), nil
	}
	return "", fmt.Errorf("unknown feature encoding %q", s)
}

// Size returns the length of the feature vector for the encoding.
func (e Encoding) Size() int {
	switch e {
	case EncodingOneHot:
		return OneHotSize
	case EncodingOrdinal:
		return OrdinalSize
	}
	return 0
}

// PieceToChannel maps a piece to its one-hot channel.
// Channels 0-5: black pawn, bishop, knight, rook, queen, king.
// Channels 6-11: the same order for white.
func PieceToChannel(piece chess.Piece) int {
	var baseChannel int
	switch piece.Type() {
	case chess.Pawn:
		baseChannel = 0
	case chess.Bishop:
		baseChannel = 1
	case chess.Knight:
		baseChannel = 2
	case chess.Rook:
		baseChannel = 3
	case chess.Queen:
		baseChannel = 4
	case chess.King:
		baseChannel = 5
	default:
		return -1
	}

	if piece.Color() == chess.White {
		baseChannel += 6
	}

	return baseChannel
}

// PieceOrdinal maps a piece to its ordinal code, 0 for an empty square.
// Black r,n,b,q,k,p are 1-6 and white R,N,B,Q,K,P are 7-12.
func PieceOrdinal(piece chess.Piece) float64 {
	var code float64
	switch piece.Type() {
	case chess.Rook:
		code = 1
	case chess.Knight:
		code = 2
	case chess.Bishop:
		code = 3
	case chess.Queen:
		code = 4
	case chess.King:
		code = 5
	case chess.Pawn:
		code = 6
	default:
		return 0
	}

	if piece.Color() == chess.White {
		code += 6
	}

	return code
}

// EncodeFeatures converts a FEN snapshot into a fixed-length feature vector.
// Squares are visited in FEN order: rank 8 to rank 1, file a to h.
func EncodeFeatures(fen string, enc Encoding) ([]float64, error) {
	size := enc.Size()
	if size == 0 {
		return nil, fmt.Errorf("unknown feature encoding %q", enc)
	}

	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: expected 6 FEN fields in %q", position.ErrInvalidPosition, fen)
	}

	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", position.ErrInvalidPosition, err)
	}
	pos := chess.NewGame(opt).Position()
	board := pos.Board()

	features := make([]float64, 0, size)

	for rank := 0; rank < BoardSize; rank++ {
		for file := 0; file < BoardSize; file++ {
			square := chess.Square((7-rank)*8 + file)
			piece := board.Piece(square)

			switch enc {
			case EncodingOneHot:
				var cells [NumChannels]float64
				if channel := PieceToChannel(piece); channel >= 0 {
					cells[channel] = 1.0
				}
				features = append(features, cells[:]...)
			case EncodingOrdinal:
				features = append(features, PieceOrdinal(piece))
			}
		}
	}

	halfMoves, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("%w: half-move clock %q", position.ErrInvalidPosition, fields[4])
	}
	fullMoves, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, fmt.Errorf("%w: full-move number %q", position.ErrInvalidPosition, fields[5])
	}

	features = append(features, boolFeature(pos.Turn() == chess.White))

	rights := pos.CastleRights()
	features = append(features,
		boolFeature(rights.CanCastle(chess.White, chess.KingSide)),
		boolFeature(rights.CanCastle(chess.White, chess.QueenSide)),
		boolFeature(rights.CanCastle(chess.Black, chess.KingSide)),
		boolFeature(rights.CanCastle(chess.Black, chess.QueenSide)),
	)

	enPassant := 0.0
	if sq := pos.EnPassantSquare(); sq != chess.NoSquare {
		enPassant = float64(sq)
	}
	features = append(features, enPassant, float64(halfMoves), float64(fullMoves))

	return features, nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// ValidateFeatures checks length and the one-hot invariant of a feature vector.
func ValidateFeatures(features []float64, enc Encoding) error {
	if len(features) != enc.Size() {
		return fmt.Errorf("invalid feature length: expected %d, got %d", enc.Size(), len(features))
	}

	if enc != EncodingOneHot {
		return nil
	}

	for sq := 0; sq < NumSquares; sq++ {
		pieceCount := 0
		for channel := 0; channel < NumChannels; channel++ {
			v := features[sq*NumChannels+channel]
			if v != 0.0 && v != 1.0 {
				return fmt.Errorf("invalid one-hot value at square %d channel %d: %f", sq, channel, v)
			}
			if v == 1.0 {
				pieceCount++
			}
		}
		if pieceCount > 1 {
			return fmt.Errorf("multiple pieces at square %d", sq)
		}
	}

	return nil
}
