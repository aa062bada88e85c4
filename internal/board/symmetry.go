package board

import "math/bits"

// Symmetry indices combine three generators: bit 0 mirrors files (a<->h),
// bit 1 mirrors rows (1<->8), bit 2 transposes along the A1-H8 diagonal.
// Index 0 is the identity.
const NumSymmetries = 8

// MirrorHorizontal mirrors the bitboard across the vertical axis (a<->h).
func (b Bitboard) MirrorHorizontal() Bitboard {
	b = (b>>1)&0x5555555555555555 | (b&0x5555555555555555)<<1
	b = (b>>2)&0x3333333333333333 | (b&0x3333333333333333)<<2
	b = (b>>4)&0x0F0F0F0F0F0F0F0F | (b&0x0F0F0F0F0F0F0F0F)<<4
	return b
}

// MirrorVertical mirrors the bitboard across the horizontal axis (1<->8).
func (b Bitboard) MirrorVertical() Bitboard {
	return Bitboard(bits.ReverseBytes64(uint64(b)))
}

// Transpose flips the bitboard along the A1-H8 diagonal.
func (b Bitboard) Transpose() Bitboard {
	t := 0x0F0F0F0F00000000 & (b ^ b<<28)
	b ^= t ^ t>>28
	t = 0x3333000033330000 & (b ^ b<<14)
	b ^= t ^ t>>14
	t = 0x5500550055005500 & (b ^ b<<7)
	b ^= t ^ t>>7
	return b
}

// Symmetry applies symmetry s (0-7) to the bitboard.
func (b Bitboard) Symmetry(s int) Bitboard {
	if s&1 != 0 {
		b = b.MirrorHorizontal()
	}
	if s&2 != 0 {
		b = b.MirrorVertical()
	}
	if s&4 != 0 {
		b = b.Transpose()
	}
	return b
}

// Symmetry maps a square through symmetry s. Pass and NoSquare are unchanged.
func (sq Square) Symmetry(s int) Square {
	if !sq.IsValid() {
		return sq
	}
	file, rank := sq.File(), sq.Rank()
	if s&1 != 0 {
		file = 7 - file
	}
	if s&2 != 0 {
		rank = 7 - rank
	}
	if s&4 != 0 {
		file, rank = rank, file
	}
	return NewSquare(file, rank)
}

// Symmetry returns the image of the position under symmetry s.
func (p Position) Symmetry(s int) Position {
	return Position{Player: p.Player.Symmetry(s), Opponent: p.Opponent.Symmetry(s)}
}

// Unique returns the least of the eight symmetric images of the position
// (ordered by Player, then Opponent) and the index of the symmetry that
// produced it. Ties keep the lowest index, so a canonical position maps to
// itself with index 0.
func (p Position) Unique() (Position, int) {
	unique, sym := p, 0
	for s := 1; s < NumSymmetries; s++ {
		if image := p.Symmetry(s); image.Less(unique) {
			unique, sym = image, s
		}
	}
	unique.Check()
	return unique, sym
}
