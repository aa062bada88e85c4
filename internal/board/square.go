// Package board implements the Othello position, move generation and
// stability analysis on two 64-bit masks.
package board

import (
	"fmt"
	"strings"
)

// Square represents a square on the board (0-63), or one of the two move
// sentinels Pass and NoSquare.
// A1=0, H1=7, A8=56, H8=63; files run a-h left to right, rows 1-8 top to bottom.
type Square uint8

// Square constants for all 64 squares.
const (
	A1 Square = iota
	B1
	C1
	D1
	E1
	F1
	G1
	H1
	A2
	B2
	C2
	D2
	E2
	F2
	G2
	H2
	A3
	B3
	C3
	D3
	E3
	F3
	G3
	H3
	A4
	B4
	C4
	D4
	E4
	F4
	G4
	H4
	A5
	B5
	C5
	D5
	E5
	F5
	G5
	H5
	A6
	B6
	C6
	D6
	E6
	F6
	G6
	H6
	A7
	B7
	C7
	D7
	E7
	F7
	G7
	H7
	A8
	B8
	C8
	D8
	E8
	F8
	G8
	H8
	Pass     Square = 64
	NoSquare Square = 65
)

// File returns the file (column) of the square (0-7, where 0=a, 7=h).
func (sq Square) File() int {
	return int(sq) & 7
}

// Rank returns the row of the square (0-7, where 0=1, 7=8).
func (sq Square) Rank() int {
	return int(sq) >> 3
}

// String returns the coordinate of the square (e.g., "f5"), "PS" for a pass
// and "--" for no move.
func (sq Square) String() string {
	switch {
	case sq == Pass:
		return "PS"
	case sq >= NoSquare:
		return "--"
	}
	return fmt.Sprintf("%c%c", 'a'+sq.File(), '1'+sq.Rank())
}

// NewSquare creates a square from file and rank (0-indexed).
func NewSquare(file, rank int) Square {
	return Square(rank*8 + file)
}

// ParseSquare parses a coordinate (e.g., "f5" or "F5") into a Square.
// "ps" and "pa" parse as Pass.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("invalid square: %s", s)
	}
	switch strings.ToLower(s) {
	case "ps", "pa":
		return Pass, nil
	case "--":
		return NoSquare, nil
	}

	file := int(lower(s[0]) - 'a')
	rank := int(s[1] - '1')

	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare, fmt.Errorf("invalid square: %s", s)
	}

	return NewSquare(file, rank), nil
}

// ParseMoves parses a concatenated move sequence such as "f5d6c3".
func ParseMoves(s string) ([]Square, error) {
	s = strings.Join(strings.Fields(s), "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("invalid move sequence: %s", s)
	}
	moves := make([]Square, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		sq, err := ParseSquare(s[i : i+2])
		if err != nil {
			return nil, err
		}
		moves = append(moves, sq)
	}
	return moves, nil
}

// IsValid returns true if the square is a board square (0-63).
func (sq Square) IsValid() bool {
	return sq < Pass
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
