package board

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// DebugChecks enables the consistency assertions on positions and moves.
// It is a development switch: violations panic through the logger.
var DebugChecks = false

// Color identifies a side. Black moves first.
type Color uint8

const (
	Black Color = iota
	White
	NoColor
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case Black:
		return "Black"
	case White:
		return "White"
	default:
		return "NoColor"
	}
}

// Disc is the content of one square seen from the side to move.
type Disc uint8

const (
	PlayerDisc Disc = iota
	OpponentDisc
	EmptyDisc
)

// Position is an Othello position from the point of view of the side to move.
// Player and Opponent never share a square.
type Position struct {
	Player   Bitboard
	Opponent Bitboard
}

// Starting discs for the side to move (Black) and the other side.
const (
	startPlayer   Bitboard = 0x0000000810000000 // E4, D5
	startOpponent Bitboard = 0x0000001008000000 // D4, E5
)

// NewPosition creates the starting position, Black to move.
func NewPosition() Position {
	return Position{Player: startPlayer, Opponent: startOpponent}
}

// Swap exchanges the two sides. This is the whole of a pass.
func (p *Position) Swap() {
	p.Player, p.Opponent = p.Opponent, p.Player
}

// Occupied returns the bitboard of all discs.
func (p Position) Occupied() Bitboard {
	return p.Player | p.Opponent
}

// Empties returns the bitboard of empty squares.
func (p Position) Empties() Bitboard {
	return ^(p.Player | p.Opponent)
}

// IsOccupied returns true if the square holds a disc.
func (p Position) IsOccupied(sq Square) bool {
	return (p.Player|p.Opponent)&SquareBB(sq) != 0
}

// SquareColor returns the disc on a square relative to the side to move.
func (p Position) SquareColor(sq Square) Disc {
	bb := SquareBB(sq)
	switch {
	case p.Player&bb != 0:
		return PlayerDisc
	case p.Opponent&bb != 0:
		return OpponentDisc
	default:
		return EmptyDisc
	}
}

// CountEmpties returns the number of empty squares.
func (p Position) CountEmpties() int {
	return p.Empties().PopCount()
}

// DiscCount returns the number of discs of the side to move.
func (p Position) DiscCount() int {
	return p.Player.PopCount()
}

// FinalScore returns the disc difference for the side to move, awarding the
// empty squares to the winner.
func (p Position) FinalScore() int {
	empties := p.CountEmpties()
	player := p.Player.PopCount()
	score := player - (64 - empties - player)
	if score > 0 {
		score += empties
	} else if score < 0 {
		score -= empties
	}
	return score
}

// quadrantID maps each square to its quadrant bit.
var quadrantID = [64]uint8{
	1, 1, 1, 1, 2, 2, 2, 2,
	1, 1, 1, 1, 2, 2, 2, 2,
	1, 1, 1, 1, 2, 2, 2, 2,
	1, 1, 1, 1, 2, 2, 2, 2,
	4, 4, 4, 4, 8, 8, 8, 8,
	4, 4, 4, 4, 8, 8, 8, 8,
	4, 4, 4, 4, 8, 8, 8, 8,
	4, 4, 4, 4, 8, 8, 8, 8,
}

// Parity returns a 4-bit mask with bit q set when quadrant q holds an odd
// number of empty squares.
func (p Position) Parity() uint8 {
	var parity uint8
	for empties := p.Empties(); empties != 0; {
		parity ^= quadrantID[empties.PopLSB()]
	}
	return parity
}

// Less orders positions by Player first, then Opponent.
func (p Position) Less(o Position) bool {
	if p.Player != o.Player {
		return p.Player < o.Player
	}
	return p.Opponent < o.Opponent
}

// Check validates the position when DebugChecks is enabled.
func (p Position) Check() {
	if !DebugChecks {
		return
	}
	if p.Player&p.Opponent != 0 {
		log.Panic().
			Uint64("player", uint64(p.Player)).
			Uint64("opponent", uint64(p.Opponent)).
			Msg("position-overlap")
	}
	if p.Occupied()&Center == 0 {
		log.Warn().Str("position", p.ToBoardString(Black)).Msg("position-empty-center")
	}
}

// String returns a visual representation of the position, the side to move
// shown as X.
func (p Position) String() string {
	var sb strings.Builder
	sb.WriteString("  a b c d e f g h\n")
	for rank := 0; rank < 8; rank++ {
		sb.WriteString(fmt.Sprintf("%d ", rank+1))
		for file := 0; file < 8; file++ {
			switch p.SquareColor(NewSquare(file, rank)) {
			case PlayerDisc:
				sb.WriteString("X ")
			case OpponentDisc:
				sb.WriteString("O ")
			default:
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(fmt.Sprintf("Empties: %d  Hash: %016x\n", p.CountEmpties(), p.Hash()))
	return sb.String()
}
