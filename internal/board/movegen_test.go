package board

import (
	"math/rand"
	"testing"
)

// randomPositions plays random games from the start position and collects
// every position reached, including those where a pass is forced.
func randomPositions(n int, seed int64) []Position {
	rng := rand.New(rand.NewSource(seed))
	positions := make([]Position, 0, n)
	ml := NewMoveList()

	for len(positions) < n {
		pos := NewPosition()
		for len(positions) < n {
			positions = append(positions, pos)
			pos.FillMoves(ml)
			if ml.Len() == 0 {
				break
			}
			pos.Update(ml.Get(rng.Intn(ml.Len())))
		}
	}
	return positions
}

// randomMasks returns disjoint random masks, not necessarily reachable.
func randomMasks(rng *rand.Rand) (Bitboard, Bitboard) {
	P := Bitboard(rng.Uint64())
	O := Bitboard(rng.Uint64()) &^ P
	return P, O
}

func TestStartPositionMoves(t *testing.T) {
	pos := NewPosition()

	want := SquareBB(D3) | SquareBB(C4) | SquareBB(F5) | SquareBB(E6)
	if got := pos.Moves(); got != want {
		t.Errorf("start moves = %v, want %v", got.Squares(), want.Squares())
	}
	if got := pos.Mobility(); got != 4 {
		t.Errorf("start mobility = %d, want 4", got)
	}
	if !pos.CanMove() || pos.MustPass() || pos.IsGameOver() {
		t.Error("start position should have moves and not be over")
	}
}

func TestStartPositionFlips(t *testing.T) {
	pos := NewPosition()

	tests := []struct {
		move    Square
		flipped Square
	}{
		{D3, D4},
		{C4, D4},
		{F5, E5},
		{E6, E5},
	}

	for _, tc := range tests {
		t.Run(tc.move.String(), func(t *testing.T) {
			flipped := pos.Flip(tc.move)
			if flipped.PopCount() != 1 || !flipped.IsSet(tc.flipped) {
				t.Errorf("flip(%s) = %v, want [%s]", tc.move, flipped.Squares(), tc.flipped)
			}

			next, f := pos.Next(tc.move)
			if f != flipped {
				t.Errorf("Next(%s) flipped %v, want %v", tc.move, f, flipped)
			}
			// Black now has 4 discs and is the opponent.
			if next.Opponent.PopCount() != 4 || next.Player.PopCount() != 1 {
				t.Errorf("after %s: player=%d opponent=%d discs", tc.move,
					next.Player.PopCount(), next.Opponent.PopCount())
			}
		})
	}
}

func TestFlipKernelEquivalence(t *testing.T) {
	kernels := FlipKernels()
	if len(kernels) < 2 {
		t.Fatalf("expected at least two flip kernels, got %d", len(kernels))
	}

	check := func(P, O Bitboard) {
		for empties := ^(P | O); empties != 0; {
			x := empties.PopLSB()
			want := kernels[0].Flip(x, P, O)
			for _, k := range kernels[1:] {
				if got := k.Flip(x, P, O); got != want {
					t.Fatalf("%s flip(%s) = %#x, %s = %#x\nP=%#x O=%#x",
						k.Name(), x, uint64(got), kernels[0].Name(), uint64(want), uint64(P), uint64(O))
				}
			}
		}
	}

	for _, pos := range randomPositions(5000, 1) {
		check(pos.Player, pos.Opponent)
		check(pos.Opponent, pos.Player)
	}

	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20000; i++ {
		check(randomMasks(rng))
	}
}

func TestMoveMaskKernelEquivalence(t *testing.T) {
	kernels := MoveMaskKernels()
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 20000; i++ {
		P, O := randomMasks(rng)
		want := kernels[0].Moves(P, O)
		for _, k := range kernels[1:] {
			if got := k.Moves(P, O); got != want {
				t.Fatalf("%s moves = %#x, %s = %#x (P=%#x O=%#x)",
					k.Name(), uint64(got), kernels[0].Name(), uint64(want), uint64(P), uint64(O))
			}
		}
	}
}

func TestMovesMatchFlips(t *testing.T) {
	check := func(P, O Bitboard) {
		moves := GetMoves(P, O)
		for empties := ^(P | O); empties != 0; {
			x := empties.PopLSB()
			legal := Flip(x, P, O) != 0
			if legal != moves.IsSet(x) {
				t.Fatalf("square %s: in moves=%v, flip non-empty=%v (P=%#x O=%#x)",
					x, moves.IsSet(x), legal, uint64(P), uint64(O))
			}
		}
		if CanMove(P, O) != (moves != 0) {
			t.Fatalf("CanMove = %v with moves %#x", CanMove(P, O), uint64(moves))
		}
		if pot := GetPotentialMoves(P, O); moves&^pot != 0 {
			t.Fatalf("moves %#x not within potential moves %#x", uint64(moves), uint64(pot))
		}
	}

	for _, pos := range randomPositions(5000, 4) {
		check(pos.Player, pos.Opponent)
	}
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 20000; i++ {
		check(randomMasks(rng))
	}
}

func TestUpdateRestoreRoundTrip(t *testing.T) {
	ml := NewMoveList()
	for _, pos := range randomPositions(3000, 6) {
		pos.FillMoves(ml)
		for _, m := range ml.Slice() {
			p := pos
			p.Update(m)
			if p.Player&p.Opponent != 0 {
				t.Fatalf("overlap after %s from\n%s", m, pos)
			}
			p.Restore(m)
			if p != pos {
				t.Fatalf("restore after %s gave\n%s\nwant\n%s", m, p, pos)
			}
		}
	}
}

func TestMustPass(t *testing.T) {
	// Row 1: O O X . . . . . with X to move.
	pos := Position{
		Player:   SquareBB(C1),
		Opponent: SquareBB(A1) | SquareBB(B1),
	}

	if !pos.MustPass() {
		t.Fatalf("expected a forced pass in\n%s", pos)
	}
	if pos.IsGameOver() {
		t.Fatal("forced pass reported as game over")
	}

	ml := pos.GenerateMoves()
	if ml.Len() != 1 || !ml.Get(0).IsPass() {
		t.Fatalf("moves = %v, want a single pass", ml.Slice())
	}

	if pos.Play(D1) {
		t.Error("Play accepted an illegal square")
	}
	if !pos.Play(Pass) {
		t.Fatal("Play rejected a forced pass")
	}
	if pos.Moves() == 0 {
		t.Error("side to move after the pass has no moves")
	}
	if !pos.Moves().IsSet(D1) {
		t.Errorf("moves after pass = %v, want d1 among them", pos.Moves().Squares())
	}
	if pos.Play(Pass) {
		t.Error("Play accepted a pass with moves available")
	}
}

func TestGameOver(t *testing.T) {
	pos := Position{Player: Universe &^ SquareBB(H8), Opponent: SquareBB(H8)}
	if !pos.IsGameOver() {
		t.Error("full board position should be over")
	}
	if pos.GenerateMoves().Len() != 0 {
		t.Error("game over position generated moves")
	}
	if got := pos.FinalScore(); got != 62 {
		t.Errorf("FinalScore = %d, want 62", got)
	}
}

func TestWeightedMobility(t *testing.T) {
	// Player on C1 with an opponent on B1 gives A1, a corner.
	P, O := SquareBB(C1), SquareBB(B1)
	if got := GetMobility(P, O); got != 1 {
		t.Fatalf("mobility = %d, want 1", got)
	}
	if got := GetWeightedMobility(P, O); got != 2 {
		t.Errorf("weighted mobility = %d, want 2", got)
	}
}

func TestMoveList(t *testing.T) {
	pos := NewPosition()
	ml := pos.GenerateMoves()
	if ml.Len() != 4 {
		t.Fatalf("Len = %d, want 4", ml.Len())
	}
	m, ok := ml.Find(F5)
	if !ok || m.Flipped != SquareBB(E5) {
		t.Errorf("Find(f5) = %v %v", m, ok)
	}
	if _, ok := ml.Find(A1); ok {
		t.Error("Find(a1) found an illegal move")
	}
	if ml.Get(0).Square != D3 || ml.Get(3).Square != E6 {
		t.Errorf("Get(0), Get(3) = %s, %s, want d3, e6", ml.Get(0).Square, ml.Get(3).Square)
	}
}

func BenchmarkGetMoves(b *testing.B) {
	positions := randomPositions(1024, 7)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := positions[i&1023]
		GetMoves(p.Player, p.Opponent)
	}
}

func benchmarkFlip(b *testing.B, k FlipKernel) {
	positions := randomPositions(1024, 8)
	moves := make([]Square, len(positions))
	for i, p := range positions {
		moves[i] = p.Moves().LSB()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i & 1023
		if moves[j].IsValid() {
			k.Flip(moves[j], positions[j].Player, positions[j].Opponent)
		}
	}
}

func BenchmarkFlipCarry(b *testing.B)        { benchmarkFlip(b, carryKernel{}) }
func BenchmarkFlipKindergarten(b *testing.B) { benchmarkFlip(b, kindergartenKernel{}) }
