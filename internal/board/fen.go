package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// StartBoard is the flat notation of the starting position.
const StartBoard = "---------------------------OX------XO--------------------------- X"

// StartFEN is the FEN string for the starting position.
const StartFEN = "8/8/8/3pP3/3Pp3/8/8/8 b - - 0 1"

// fenSuffix fills the chess-only FEN fields, which Othello never uses.
const fenSuffix = " - - 0 1"

var (
	ErrBadBoard = errors.New("invalid board string")
	ErrBadFEN   = errors.New("invalid FEN")
)

// ParseBoard parses the flat notation: 64 square characters from A1 to H8
// ('X', 'B' or '*' for Black; 'O' or 'W' for White; '-' or '.' for empty)
// followed by the side to move. Unknown characters are skipped.
//
// On malformed input the returned color is NoColor and a warning is logged.
// The returned position always has the side to move as Player.
func ParseBoard(s string) (Position, Color, error) {
	var pos Position
	i, n := 0, 0
	for ; n < len(s) && i < 64; n++ {
		switch lower(s[n]) {
		case 'b', 'x', '*':
			pos.Player |= SquareBB(Square(i))
			i++
		case 'o', 'w':
			pos.Opponent |= SquareBB(Square(i))
			i++
		case '-', '.':
			i++
		}
	}

	if i == 64 {
		for ; n < len(s); n++ {
			switch lower(s[n]) {
			case 'b', 'x', '*':
				pos.Check()
				return pos, Black, nil
			case 'o', 'w':
				pos.Swap()
				pos.Check()
				return pos, White, nil
			}
		}
	}

	err := fmt.Errorf("%w: %q", ErrBadBoard, s)
	log.Warn().Str("input", s).Int("squares", i).Msg("board-parse-failed")
	return pos, NoColor, err
}

// ToBoardString returns the flat notation; side is the color of Player.
func (p Position) ToBoardString(side Color) string {
	black, white := p.Player, p.Opponent
	if side == White {
		black, white = white, black
	}

	var sb strings.Builder
	sb.Grow(66)
	for sq := A1; sq <= H8; sq++ {
		switch {
		case black.IsSet(sq):
			sb.WriteByte('X')
		case white.IsSet(sq):
			sb.WriteByte('O')
		default:
			sb.WriteByte('-')
		}
	}
	sb.WriteByte(' ')
	if side == White {
		sb.WriteByte('O')
	} else {
		sb.WriteByte('X')
	}
	return sb.String()
}

// ParseFEN parses the chess-style notation used for Othello positions:
// rows from 8 down to 1 separated by '/', 'p' for Black, 'P' for White,
// digits for runs of empty squares, then 'b' or 'w' for the side to move.
// Any castling, en passant and clock fields are ignored.
//
// On malformed input the returned color is NoColor and a warning is logged.
func ParseFEN(fen string) (Position, Color, error) {
	var pos Position

	fail := func(reason string) (Position, Color, error) {
		log.Warn().Str("input", fen).Str("reason", reason).Msg("fen-parse-failed")
		return pos, NoColor, fmt.Errorf("%w: %s", ErrBadFEN, reason)
	}

	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return fail(fmt.Sprintf("need at least 2 fields, got %d", len(parts)))
	}

	i, rowEnd := int(A8), 64
	for _, c := range parts[0] {
		switch {
		case c >= '1' && c <= '8':
			i += int(c - '0')
			if i > rowEnd {
				return fail("row overflow")
			}
		case c == '/':
			if i != rowEnd || i < 16 {
				return fail(fmt.Sprintf("incomplete row before square %d", i))
			}
			i -= 16
			rowEnd = i + 8
		case c == 'p' || c == 'P':
			if i >= rowEnd {
				return fail("row overflow")
			}
			if c == 'p' {
				pos.Player |= SquareBB(Square(i))
			} else {
				pos.Opponent |= SquareBB(Square(i))
			}
			i++
		default:
			return fail(fmt.Sprintf("invalid character %q", c))
		}
	}
	if i != rowEnd || rowEnd != 8 {
		return fail("piece placement does not cover 64 squares")
	}

	switch parts[1] {
	case "b":
		pos.Check()
		return pos, Black, nil
	case "w":
		pos.Swap()
		pos.Check()
		return pos, White, nil
	}
	return fail("invalid side to move: " + parts[1])
}

// ToFEN returns the FEN representation; side is the color of Player.
func (p Position) ToFEN(side Color) string {
	black, white := p.Player, p.Opponent
	if side == White {
		black, white = white, black
	}

	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			c := byte(0)
			if black.IsSet(sq) {
				c = 'p'
			} else if white.IsSet(sq) {
				c = 'P'
			}
			if c == 0 {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(c)
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	if side == White {
		sb.WriteString(" w")
	} else {
		sb.WriteString(" b")
	}
	sb.WriteString(fenSuffix)
	return sb.String()
}
