package board

import "github.com/rs/zerolog/log"

// MaxMoves bounds the number of legal moves in any position, pass included.
const MaxMoves = 34

// Move is a destination square together with the discs it flips. A Move is
// only meaningful for the position it was generated from.
type Move struct {
	Square  Square
	Flipped Bitboard
}

// PassMove is the only legal move when the side to move has no square.
var PassMove = Move{Square: Pass}

// NoMove represents an invalid or absent move.
var NoMove = Move{Square: NoSquare}

// IsPass returns true if the move is a pass.
func (m Move) IsPass() bool {
	return m.Square == Pass
}

// String returns the coordinate of the move (e.g., "f5", "PS").
func (m Move) String() string {
	return m.Square.String()
}

// Update plays the move: the mover's discs gain the square and the flipped
// discs, then the sides swap.
func (p *Position) Update(m Move) {
	if DebugChecks {
		checkMove(*p, m)
	}
	p.Player ^= m.Flipped | SquareBB(m.Square)
	p.Opponent ^= m.Flipped
	p.Swap()
}

// Restore undoes Update with the same move.
func (p *Position) Restore(m Move) {
	p.Swap()
	p.Player ^= m.Flipped | SquareBB(m.Square)
	p.Opponent ^= m.Flipped
}

// Pass hands the move to the opponent.
func (p *Position) Pass() {
	p.Swap()
}

// Next returns the position after playing x, without modifying p, and the
// discs flipped. Playing Pass returns the swapped position.
func (p Position) Next(x Square) (Position, Bitboard) {
	flipped := Flip(x, p.Player, p.Opponent)
	return Position{
		Player:   p.Opponent ^ flipped,
		Opponent: p.Player ^ (flipped | SquareBB(x)),
	}, flipped
}

// Play applies x if it is legal and reports whether it was. Pass is legal
// only when the side to move has no other move.
func (p *Position) Play(x Square) bool {
	moves := GetMoves(p.Player, p.Opponent)
	if x == Pass {
		if moves != 0 {
			return false
		}
		p.Pass()
		return true
	}
	if !moves.IsSet(x) {
		return false
	}
	p.Update(Move{Square: x, Flipped: Flip(x, p.Player, p.Opponent)})
	return true
}

func checkMove(p Position, m Move) {
	p.Check()
	if m.IsPass() {
		if m.Flipped != 0 || CanMove(p.Player, p.Opponent) {
			log.Panic().Str("position", p.ToBoardString(Black)).Msg("move-illegal-pass")
		}
		return
	}
	if !m.Square.IsValid() || p.IsOccupied(m.Square) || m.Flipped&^p.Opponent != 0 {
		log.Panic().
			Str("position", p.ToBoardString(Black)).
			Str("move", m.String()).
			Uint64("flipped", uint64(m.Flipped)).
			Msg("move-illegal")
	}
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [MaxMoves]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Find returns the move for square x and whether it is in the list.
func (ml *MoveList) Find(x Square) (Move, bool) {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i].Square == x {
			return ml.moves[i], true
		}
	}
	return NoMove, false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}
