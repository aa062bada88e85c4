package board

import (
	"math/bits"

	"github.com/rs/zerolog/log"
)

// FlipKernel computes the discs flipped by a move. Every kernel returns the
// same mask for the same input; they differ only in speed.
type FlipKernel interface {
	Name() string
	Flip(x Square, P, O Bitboard) Bitboard
}

// Flip returns the opponent discs that change side when P plays on x.
// x must be empty; Pass and NoSquare flip nothing.
func Flip(x Square, P, O Bitboard) Bitboard {
	if !x.IsValid() {
		return 0
	}
	if DebugChecks && (P | O).IsSet(x) {
		log.Panic().Str("square", x.String()).Msg("flip-occupied-square")
	}
	return flipper.Flip(x, P, O)
}

// Ray directions as (file, rank) steps. The first four move toward higher
// square indices, the last four toward lower ones.
var rayDirs = [8][2]int{
	{1, 0}, {0, 1}, {-1, 1}, {1, 1},
	{-1, 0}, {0, -1}, {1, -1}, {-1, -1},
}

// rays[x][d] holds the squares strictly beyond x in direction d, up to the edge.
var rays [64][8]Bitboard

func initRays() {
	for sq := A1; sq <= H8; sq++ {
		for d, dir := range rayDirs {
			var ray Bitboard
			f, r := sq.File()+dir[0], sq.Rank()+dir[1]
			for f >= 0 && f < 8 && r >= 0 && r < 8 {
				ray |= SquareBB(NewSquare(f, r))
				f, r = f+dir[0], r+dir[1]
			}
			rays[sq][d] = ray
		}
	}
}

// carryKernel locates the outflanking disc with integer arithmetic.
//
// Toward higher indices: every square outside the ray and every opponent disc
// on it is set to one, then the first ray square is added. The carry ripples
// through the opponent run and stops on the first square that is not an
// opponent disc; masking with P keeps it only if it is an outflanking disc.
//
// Toward lower indices: the first non-opponent square is the most significant
// bit of the ray without opponent discs, found with a leading-zero count.
type carryKernel struct{}

func (carryKernel) Name() string { return KernelCarry }

func (carryKernel) Flip(x Square, P, O Bitboard) Bitboard {
	r := &rays[x]
	var flipped Bitboard

	for d := 0; d < 4; d++ {
		mask := r[d]
		outflank := ((O | ^mask) + (mask & -mask)) & P & mask
		if outflank != 0 {
			flipped |= (outflank - 1) & mask
		}
	}

	for d := 4; d < 8; d++ {
		mask := r[d]
		stop := mask &^ O
		if stop == 0 {
			continue
		}
		outflank := Bitboard(1) << (63 - bits.LeadingZeros64(uint64(stop))) & P
		if outflank != 0 {
			flipped |= mask &^ (outflank<<1 - 1)
		}
	}

	return flipped
}
