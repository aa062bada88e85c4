package board

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	edgeStability     [256][256]uint8
	edgeStabilityOnce sync.Once
)

// InitStability builds the edge stability table. Calling it is optional:
// the stability functions build the table on first use. It is safe to call
// from several goroutines.
func InitStability() {
	edgeStabilityOnce.Do(buildEdgeStability)
}

func buildEdgeStability() {
	start := time.Now()
	for P := 0; P < 256; P++ {
		mP := int(mirrorByte(uint8(P)))
		for O := 0; O < 256; O++ {
			if P&O != 0 {
				continue
			}
			mO := int(mirrorByte(uint8(O)))
			if mP < P || (mP == P && mO < O) {
				edgeStability[P][O] = mirrorByte(edgeStability[mP][mO])
				continue
			}
			edgeStability[P][O] = uint8(findEdgeStable(P, O, P))
		}
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("edge-stability-built")
}

func mirrorByte(b uint8) uint8 {
	b = b>>4 | b<<4
	b = (b>>2)&0x33 | (b&0x33)<<2
	b = (b>>1)&0x55 | (b&0x55)<<1
	return b
}

// findEdgeStable returns the squares of stable that survive every sequence of
// moves on the edge line, either side moving on any empty square. A move on
// the edge need not be legal on the line alone, since the flip may come from
// the interior of the board.
func findEdgeStable(P, O, stable int) int {
	E := ^(P | O) & 0xFF

	stable &= P
	if stable == 0 || E == 0 {
		return stable
	}

	for x := 0; x < 8; x++ {
		bit := 1 << x
		if E&bit == 0 {
			continue
		}

		p, o := playEdge(P|bit, O, x)
		if stable = findEdgeStable(p, o, stable); stable == 0 {
			return 0
		}

		o, p = playEdge(O|bit, P, x)
		if stable = findEdgeStable(p, o, stable); stable == 0 {
			return 0
		}
	}
	return stable
}

// playEdge flips the runs of o outflanked from x on an 8-square line. p must
// already hold x.
func playEdge(p, o, x int) (int, int) {
	if x > 1 {
		y := x - 1
		for y > 0 && o&(1<<y) != 0 {
			y--
		}
		if p&(1<<y) != 0 {
			for y = x - 1; y > 0 && o&(1<<y) != 0; y-- {
				o ^= 1 << y
				p ^= 1 << y
			}
		}
	}
	if x < 6 {
		y := x + 1
		for y < 8 && o&(1<<y) != 0 {
			y++
		}
		if y < 8 && p&(1<<y) != 0 {
			for y = x + 1; y < 8 && o&(1<<y) != 0; y++ {
				o ^= 1 << y
				p ^= 1 << y
			}
		}
	}
	return p, o
}

// GetStableEdge returns the exactly stable discs of P on the four edges,
// considering only threats along each edge.
func GetStableEdge(P, O Bitboard) Bitboard {
	InitStability()
	return Bitboard(edgeStability[P&0xFF][O&0xFF]) |
		Bitboard(edgeStability[P>>56][O>>56])<<56 |
		unpackFile[edgeStability[packFile(P, 0)][packFile(O, 0)]] |
		unpackFile[edgeStability[packFile(P, 7)][packFile(O, 7)]]<<7
}

// GetEdgeStability returns the number of edge-stable discs of P.
func GetEdgeStability(P, O Bitboard) int {
	return GetStableEdge(P, O).PopCount()
}

// FullLines holds, per direction, the squares whose line in that direction
// has no empty square: horizontal, vertical, a8-h1 diagonal, a1-h8 diagonal.
type FullLines [4]Bitboard

// GetFullLines computes the full lines of an occupancy mask.
func GetFullLines(disc Bitboard) FullLines {
	var full FullLines

	h := disc
	h &= h >> 1
	h &= h >> 2
	h &= h >> 4
	full[0] = (h & FileA) * 0xFF

	v := disc
	v &= v >> 8
	v &= v >> 16
	v &= v >> 32
	full[1] = (v & Rank1) * FileA

	l7, r7 := disc, disc
	l7 &= 0xFF01010101010101 | l7>>7
	r7 &= 0x80808080808080FF | r7<<7
	l7 &= 0xFFFF030303030303 | l7>>14
	r7 &= 0xC0C0C0C0C0C0FFFF | r7<<14
	l7 &= 0xFFFFFFFF0F0F0F0F | l7>>28
	r7 &= 0xF0F0F0F0FFFFFFFF | r7<<28
	full[2] = l7 & r7

	l9, r9 := disc, disc
	l9 &= 0xFF80808080808080 | l9>>9
	r9 &= 0x01010101010101FF | r9<<9
	l9 &= 0xFFFFC0C0C0C0C0C0 | l9>>18
	r9 &= 0x030303030303FFFF | r9<<18
	l9 &= 0xFFFFFFFFF0F0F0F0 | l9>>36
	r9 &= 0x0F0F0F0FFFFFFFFF | r9<<36
	full[3] = l9 & r9

	return full
}

// GetStability returns a lower bound on the number of stable discs of P.
func GetStability(P, O Bitboard) int {
	return StabilityWithFull(P, O, GetFullLines(P|O))
}

// GetStabilityFull is GetStability that also returns the full lines, for
// callers that reuse them.
func GetStabilityFull(P, O Bitboard) (int, FullLines) {
	full := GetFullLines(P | O)
	return StabilityWithFull(P, O, full), full
}

// StabilityWithFull computes the stability bound from precomputed full lines.
func StabilityWithFull(P, O Bitboard, full FullLines) int {
	return StableDiscsWithFull(P, O, full).PopCount()
}

// GetStableDiscs returns the discs of P counted by GetStability.
func GetStableDiscs(P, O Bitboard) Bitboard {
	return StableDiscsWithFull(P, O, GetFullLines(P|O))
}

// StableDiscsWithFull returns the stable discs of P from precomputed full
// lines.
//
// The edge discs come from the edge table; an interior disc is stable when,
// in each of the four directions, its line is full or it touches a stable
// disc of its own colour. The set grows until it stops changing.
func StableDiscsWithFull(P, O Bitboard, full FullLines) Bitboard {
	stable := GetStableEdge(P, O)
	stable |= full[0] & full[1] & full[2] & full[3] & P & Central
	if stable == 0 {
		return 0
	}

	for {
		old := stable
		h := stable>>1 | stable<<1 | full[0]
		v := stable>>8 | stable<<8 | full[1]
		d7 := stable>>7 | stable<<7 | full[2]
		d9 := stable>>9 | stable<<9 | full[3]
		stable |= h & v & d7 & d9 & P & Central
		if stable == old {
			return stable
		}
	}
}

// cornerStable[c<<2|a<<1|b] counts the stable discs of one corner region,
// c being the corner and a, b its two edge neighbours.
var cornerStable = [8]uint8{0, 0, 0, 0, 1, 2, 2, 3}

// cornerRegions lists each corner with its two edge neighbours.
var cornerRegions = [4][3]Square{
	{A1, B1, A2},
	{H1, G1, H2},
	{A8, B8, A7},
	{H8, G8, H7},
}

// GetCornerStability returns the number of stable discs of P in the corner
// regions: an owned corner and the owned edge squares next to it.
func GetCornerStability(P Bitboard) int {
	n := 0
	for _, r := range cornerRegions {
		idx := uint(P>>uint(r[0]))&1<<2 | uint(P>>uint(r[1]))&1<<1 | uint(P>>uint(r[2]))&1
		n += int(cornerStable[idx])
	}
	return n
}

// Stability returns the stability bound for the side to move.
func (p Position) Stability() int {
	return GetStability(p.Player, p.Opponent)
}

// EdgeStability returns the edge-stable disc count for the side to move.
func (p Position) EdgeStability() int {
	return GetEdgeStability(p.Player, p.Opponent)
}

// CornerStability returns the corner stability of the side to move.
func (p Position) CornerStability() int {
	return GetCornerStability(p.Player)
}

// FullLines returns the full lines of the position.
func (p Position) FullLines() FullLines {
	return GetFullLines(p.Player | p.Opponent)
}

// PotentialMobility returns the weighted potential mobility of the side to move.
func (p Position) PotentialMobility() int {
	return GetPotentialMobility(p.Player, p.Opponent)
}
