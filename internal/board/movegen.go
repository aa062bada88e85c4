package board

// Direction masks for the opponent runs. Horizontal and diagonal runs must
// not touch files A and H, or the shift wraps onto the next row.
const (
	runMask = Inner
	potH    = Inner
	potV    = Bitboard(0x00FFFFFFFFFFFF00)
	potD    = Bitboard(0x007E7E7E7E7E7E00)
	dirH    = 1
	dirV    = 8
	dirD7   = 7
	dirD9   = 9
)

// MoveMaskKernel computes the set of legal destination squares.
type MoveMaskKernel interface {
	Name() string
	Moves(P, O Bitboard) Bitboard
}

// koggeStoneMask fills both ways of a direction at once, doubling the
// propagation distance after the first two steps.
type koggeStoneMask struct{}

func (koggeStoneMask) Name() string { return MaskKoggeStone }

func (koggeStoneMask) Moves(P, O Bitboard) Bitboard {
	OM := O & runMask
	moves := koggeStoneDir(P, OM, dirH) |
		koggeStoneDir(P, O, dirV) |
		koggeStoneDir(P, OM, dirD7) |
		koggeStoneDir(P, OM, dirD9)
	return moves &^ (P | O)
}

func koggeStoneDir(P, mask Bitboard, dir uint) Bitboard {
	dir2 := dir + dir

	flipL := mask & (P << dir)
	flipR := mask & (P >> dir)
	flipL |= mask & (flipL << dir)
	flipR |= mask & (flipR >> dir)
	maskL := mask & (mask << dir)
	maskR := maskL >> dir
	flipL |= maskL & (flipL << dir2)
	flipR |= maskR & (flipR >> dir2)
	flipL |= maskL & (flipL << dir2)
	flipR |= maskR & (flipR >> dir2)

	return flipL<<dir | flipR>>dir
}

// sequentialMask extends each run one square per step, six steps being the
// longest opponent run on an 8-wide line.
type sequentialMask struct{}

func (sequentialMask) Name() string { return MaskSequential }

func (sequentialMask) Moves(P, O Bitboard) Bitboard {
	OM := O & runMask
	moves := sequentialDir(P, OM, dirH) |
		sequentialDir(P, O, dirV) |
		sequentialDir(P, OM, dirD7) |
		sequentialDir(P, OM, dirD9)
	return moves &^ (P | O)
}

func sequentialDir(P, mask Bitboard, dir uint) Bitboard {
	flipL := mask & (P << dir)
	flipR := mask & (P >> dir)
	for i := 0; i < 5; i++ {
		flipL |= mask & (flipL << dir)
		flipR |= mask & (flipR >> dir)
	}
	return flipL<<dir | flipR>>dir
}

// GetMoves returns the legal destination squares for P against O.
func GetMoves(P, O Bitboard) Bitboard {
	return moveMask.Moves(P, O)
}

// CanMove reports whether P has at least one legal move. It stops at the
// first direction that yields a move.
func CanMove(P, O Bitboard) bool {
	E := ^(P | O)
	OM := O & runMask
	return koggeStoneDir(P, OM, dirH)&E != 0 ||
		koggeStoneDir(P, O, dirV)&E != 0 ||
		koggeStoneDir(P, OM, dirD7)&E != 0 ||
		koggeStoneDir(P, OM, dirD9)&E != 0
}

// GetMobility returns the number of legal moves.
func GetMobility(P, O Bitboard) int {
	return GetMoves(P, O).PopCount()
}

// GetWeightedMobility returns the number of legal moves, corners counted twice.
func GetWeightedMobility(P, O Bitboard) int {
	return GetMoves(P, O).WeightedCount()
}

func potentialDir(O Bitboard, dir uint) Bitboard {
	return O<<dir | O>>dir
}

// GetPotentialMoves returns the empty squares next to an opponent disc that
// could be outflanked in that direction. It is a superset of GetMoves.
func GetPotentialMoves(P, O Bitboard) Bitboard {
	return (potentialDir(O&potH, dirH) |
		potentialDir(O&potV, dirV) |
		potentialDir(O&potD, dirD7) |
		potentialDir(O&potD, dirD9)) &^ (P | O)
}

// GetPotentialMobility returns the weighted count of potential moves.
func GetPotentialMobility(P, O Bitboard) int {
	return GetPotentialMoves(P, O).WeightedCount()
}

// Moves returns the legal destination squares of the side to move.
func (p Position) Moves() Bitboard {
	return GetMoves(p.Player, p.Opponent)
}

// CanMove reports whether the side to move has a legal square.
func (p Position) CanMove() bool {
	return CanMove(p.Player, p.Opponent)
}

// Mobility returns the number of legal moves of the side to move.
func (p Position) Mobility() int {
	return GetMobility(p.Player, p.Opponent)
}

// MustPass reports whether the side to move has no square but the opponent has.
func (p Position) MustPass() bool {
	return !CanMove(p.Player, p.Opponent) && CanMove(p.Opponent, p.Player)
}

// IsGameOver reports whether neither side can move.
func (p Position) IsGameOver() bool {
	return !CanMove(p.Player, p.Opponent) && !CanMove(p.Opponent, p.Player)
}

// Flip returns the discs flipped by playing x.
func (p Position) Flip(x Square) Bitboard {
	return Flip(x, p.Player, p.Opponent)
}

// GenerateMoves generates all legal moves, or a single pass when the side to
// move is blocked and the game is not over.
func (p Position) GenerateMoves() *MoveList {
	ml := NewMoveList()
	p.FillMoves(ml)
	return ml
}

// FillMoves is GenerateMoves into a caller-owned list.
func (p Position) FillMoves(ml *MoveList) {
	ml.Clear()
	moves := GetMoves(p.Player, p.Opponent)
	if moves == 0 {
		if CanMove(p.Opponent, p.Player) {
			ml.Add(PassMove)
		}
		return
	}
	for moves != 0 {
		x := moves.PopLSB()
		ml.Add(Move{Square: x, Flipped: flipper.Flip(x, p.Player, p.Opponent)})
	}
}
