package engine

import (
	"bytes"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/hailam/reversi/internal/board"
)

// positionsAfter returns the positions reached by each first move.
func positionsAfter(moves ...board.Square) []board.Position {
	start := board.NewPosition()
	out := make([]board.Position, len(moves))
	for i, m := range moves {
		out[i], _ = start.Next(m)
	}
	return out
}

func exact(depth, score int, move board.Square) Result {
	return Result{Depth: depth, Alpha: ScoreMin, Beta: ScoreMax, Score: score, Move: move}
}

func TestStoreProbe(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 10, Ways: 4, LockBits: 4})
	pos := board.NewPosition()

	_, ok := tt.Probe(pos, pos.Hash())
	is.True(!ok) // empty table

	tt.Store(pos, pos.Hash(), Result{Depth: 7, Selectivity: 2, Cost: 3, Alpha: -10, Beta: 10, Score: 4, Move: board.F5})
	d, ok := tt.Probe(pos, pos.Hash())
	is.True(ok)
	is.Equal(d.Depth, uint8(7))
	is.Equal(d.Selectivity, uint8(2))
	is.Equal(d.Cost, uint8(3))
	is.Equal(d.Date, uint8(1))
	is.Equal(d.Lower, int8(4))
	is.Equal(d.Upper, int8(4))
	is.Equal(d.Move, [2]board.Square{board.F5, board.NoSquare})

	st := tt.Stats()
	is.Equal(st.Probes, uint64(2))
	is.Equal(st.Hits, uint64(1))
	is.Equal(st.Stores, uint64(1))
}

func TestStoreBounds(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 8, Ways: 2, LockBits: 2})
	ps := positionsAfter(board.D3, board.C4)

	// Fail low: only an upper bound, and no best move.
	tt.Store(ps[0], ps[0].Hash(), Result{Depth: 5, Alpha: 0, Beta: 10, Score: -6, Move: board.C3})
	d, ok := tt.Probe(ps[0], ps[0].Hash())
	is.True(ok)
	is.Equal(d.Lower, int8(-ScoreInf))
	is.Equal(d.Upper, int8(-6))
	is.Equal(d.Move[0], board.NoSquare)

	// Fail high: only a lower bound.
	tt.Store(ps[1], ps[1].Hash(), Result{Depth: 5, Alpha: 0, Beta: 10, Score: 12, Move: board.C3})
	d, ok = tt.Probe(ps[1], ps[1].Hash())
	is.True(ok)
	is.Equal(d.Lower, int8(12))
	is.Equal(d.Upper, int8(ScoreInf))
	is.Equal(d.Move[0], board.C3)
}

func TestStoreMerge(t *testing.T) {
	pos := board.NewPosition()
	h := pos.Hash()

	t.Run("same depth tightens", func(t *testing.T) {
		is := is.New(t)
		tt := New(Config{HashBits: 8, Ways: 2})
		tt.Store(pos, h, Result{Depth: 6, Alpha: -64, Beta: 10, Score: 10, Move: board.D3})
		tt.Store(pos, h, Result{Depth: 6, Alpha: 20, Beta: 64, Score: 20, Move: board.C4})

		d, ok := tt.Probe(pos, h)
		is.True(ok)
		is.Equal(d.Lower, int8(10))
		is.Equal(d.Upper, int8(20))
		is.Equal(d.Move, [2]board.Square{board.D3, board.NoSquare}) // fail low keeps the move
	})

	t.Run("deeper replaces", func(t *testing.T) {
		is := is.New(t)
		tt := New(Config{HashBits: 8, Ways: 2})
		tt.Store(pos, h, exact(6, 10, board.D3))
		tt.Store(pos, h, exact(9, -2, board.C4))

		d, _ := tt.Probe(pos, h)
		is.Equal(d.Depth, uint8(9))
		is.Equal(d.Lower, int8(-2))
		is.Equal(d.Upper, int8(-2))
		is.Equal(d.Move, [2]board.Square{board.C4, board.D3})
	})

	t.Run("shallower keeps bounds", func(t *testing.T) {
		is := is.New(t)
		tt := New(Config{HashBits: 8, Ways: 2})
		tt.Store(pos, h, exact(9, 10, board.D3))
		tt.NewSearch()
		tt.Store(pos, h, exact(3, -30, board.F5))

		d, _ := tt.Probe(pos, h)
		is.Equal(d.Depth, uint8(9))
		is.Equal(d.Lower, int8(10))
		is.Equal(d.Upper, int8(10))
		is.Equal(d.Date, uint8(2))
		is.Equal(d.Move, [2]board.Square{board.F5, board.D3})
	})

	t.Run("inconsistent bounds reset", func(t *testing.T) {
		is := is.New(t)
		tt := New(Config{HashBits: 8, Ways: 2})
		tt.Store(pos, h, Result{Depth: 6, Alpha: 0, Beta: 30, Score: 30, Move: board.NoSquare})
		tt.Store(pos, h, Result{Depth: 6, Alpha: 10, Beta: 64, Score: 10, Move: board.NoSquare})

		d, _ := tt.Probe(pos, h)
		is.Equal(d.Lower, int8(-ScoreInf))
		is.Equal(d.Upper, int8(10))
	})
}

// TestReplacement stores three positions into a single two-way bucket.
func TestReplacement(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 1, Ways: 2, LockBits: 0})
	is.Equal(tt.Buckets(), 1)
	is.Equal(tt.Ways(), 2)
	is.Equal(tt.Locks(), 1)

	ps := positionsAfter(board.D3, board.C4, board.F5, board.E6)
	a, b, c, d := ps[0], ps[1], ps[2], ps[3]

	tt.Store(a, a.Hash(), exact(5, 0, board.NoSquare))
	tt.Store(b, b.Hash(), exact(10, 0, board.NoSquare))
	tt.Store(c, c.Hash(), exact(8, 0, board.NoSquare))

	_, ok := tt.Probe(a, a.Hash())
	is.True(!ok) // shallowest entry evicted
	_, ok = tt.Probe(b, b.Hash())
	is.True(ok)
	_, ok = tt.Probe(c, c.Hash())
	is.True(ok)

	// Both ways are deeper entries of the current search.
	tt.Store(d, d.Hash(), exact(3, 0, board.NoSquare))
	_, ok = tt.Probe(d, d.Hash())
	is.True(!ok)
	is.Equal(tt.Stats().Skips, uint64(1))

	// Once the search is over the old entries are fair game.
	tt.NewSearch()
	tt.Store(d, d.Hash(), exact(3, 0, board.NoSquare))
	_, ok = tt.Probe(d, d.Hash())
	is.True(ok)
	_, ok = tt.Probe(b, b.Hash())
	is.True(ok)
	_, ok = tt.Probe(c, c.Hash())
	is.True(!ok)
}

func TestReplacementSparesDeeperWays(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 1, Ways: 2, LockBits: 0})
	ps := positionsAfter(board.D3, board.C4, board.F5)
	a, b, c := ps[0], ps[1], ps[2]

	// a is deep but cheap, so it ranks below b.
	tt.Store(a, a.Hash(), Result{Depth: 10, Cost: 0, Alpha: ScoreMin, Beta: ScoreMax, Move: board.NoSquare})
	tt.Store(b, b.Hash(), Result{Depth: 2, Cost: 9, Alpha: ScoreMin, Beta: ScoreMax, Move: board.NoSquare})
	tt.Store(c, c.Hash(), Result{Depth: 5, Alpha: ScoreMin, Beta: ScoreMax, Move: board.NoSquare})

	_, ok := tt.Probe(c, c.Hash())
	is.True(ok) // c replaces the shallower b
	_, ok = tt.Probe(a, a.Hash())
	is.True(ok) // the deeper a is kept
	_, ok = tt.Probe(b, b.Hash())
	is.True(!ok)
	is.Equal(tt.Stats().Skips, uint64(0))
}

func TestForceStore(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 1, Ways: 2, LockBits: 0})
	ps := positionsAfter(board.D3, board.C4, board.F5)

	tt.Store(ps[0], ps[0].Hash(), exact(20, 0, board.NoSquare))
	tt.Store(ps[1], ps[1].Hash(), exact(20, 0, board.NoSquare))
	tt.ForceStore(ps[2], ps[2].Hash(), exact(1, 64, board.NoSquare))

	d, ok := tt.Probe(ps[2], ps[2].Hash())
	is.True(ok)
	is.Equal(d.Lower, int8(64))

	// Forcing over an existing entry discards its deeper data.
	tt.ForceStore(ps[2], ps[2].Hash(), exact(0, -64, board.NoSquare))
	d, _ = tt.Probe(ps[2], ps[2].Hash())
	is.Equal(d.Depth, uint8(0))
	is.Equal(d.Upper, int8(-64))
}

func TestExcludeMove(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 8, Ways: 2})
	pos := board.NewPosition()
	h := pos.Hash()

	tt.Store(pos, h, exact(4, 2, board.D3))
	tt.Store(pos, h, exact(4, 2, board.C4))
	d, _ := tt.Probe(pos, h)
	is.Equal(d.Move, [2]board.Square{board.C4, board.D3})

	tt.ExcludeMove(pos, h, board.C4)
	d, _ = tt.Probe(pos, h)
	is.Equal(d.Move, [2]board.Square{board.D3, board.NoSquare})
	is.Equal(d.Lower, int8(2)) // bounds untouched
	is.Equal(d.Upper, int8(2))

	tt.ExcludeMove(pos, h, board.F5) // not stored, no effect
	tt.ExcludeMove(pos, h, board.D3)
	d, _ = tt.Probe(pos, h)
	is.Equal(d.Move, [2]board.Square{board.NoSquare, board.NoSquare})
}

func TestTrustHash(t *testing.T) {
	is := is.New(t)
	ps := positionsAfter(board.D3, board.C4)
	const h = 0xDEADBEEF

	strict := New(Config{HashBits: 8, Ways: 2})
	strict.Store(ps[0], h, exact(4, 0, board.NoSquare))
	_, ok := strict.Probe(ps[1], h)
	is.True(!ok) // same key, different position

	trusting := New(Config{HashBits: 8, Ways: 2, TrustHash: true})
	trusting.Store(ps[0], h, exact(4, 0, board.NoSquare))
	_, ok = trusting.Probe(ps[1], h)
	is.True(ok)
}

func TestClearAndNewSearch(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 10, Ways: 4, LockBits: 3})
	pos := board.NewPosition()

	tt.Store(pos, pos.Hash(), exact(4, 0, board.NoSquare))
	tt.NewSearch()
	is.Equal(tt.Date(), uint8(2))

	tt.Clear()
	is.Equal(tt.Date(), uint8(1))
	is.Equal(tt.Stats(), Stats{})
	_, ok := tt.Probe(pos, pos.Hash())
	is.True(!ok)

	// The date wraps by clearing the table.
	tt.Store(pos, pos.Hash(), exact(4, 0, board.NoSquare))
	for tt.Date() < maxDate {
		tt.NewSearch()
	}
	_, ok = tt.Probe(pos, pos.Hash())
	is.True(ok)
	tt.NewSearch()
	is.Equal(tt.Date(), uint8(1))
	_, ok = tt.Probe(pos, pos.Hash())
	is.True(!ok)
}

func TestResize(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 6, Ways: 2, LockBits: 8})
	is.Equal(tt.Buckets(), 32)
	is.Equal(tt.Locks(), 32) // capped to the bucket count

	pos := board.NewPosition()
	tt.Store(pos, pos.Hash(), exact(4, 0, board.NoSquare))

	tt.Resize(Config{HashBits: 12, Ways: 4, LockBits: 4})
	is.Equal(tt.Size(), 4096)
	is.Equal(tt.Buckets(), 1024)
	is.Equal(tt.Locks(), 16)
	_, ok := tt.Probe(pos, pos.Hash())
	is.True(!ok)
}

func TestNormalize(t *testing.T) {
	is := is.New(t)
	c := Config{HashBits: 0, Ways: 20, LockBits: -3}.Normalize()
	is.Equal(c.HashBits, MinHashBits)
	is.Equal(c.Ways, MaxWays)
	is.Equal(c.LockBits, 0)

	c = DefaultConfig().Normalize()
	is.Equal(c, DefaultConfig())
}

func fillTable(tt *Table, n int, seed int64) []board.Position {
	rng := rand.New(rand.NewSource(seed))
	var stored []board.Position
	for len(stored) < n {
		pos := board.NewPosition()
		for !pos.IsGameOver() && len(stored) < n {
			ml := pos.GenerateMoves()
			pos.Update(ml.Get(rng.Intn(ml.Len())))
			score := int(pos.Hash()%64) - 32
			tt.ForceStore(pos, pos.Hash(), exact(pos.CountEmpties(), score, pos.Moves().LSB()))
			stored = append(stored, pos)
		}
	}
	return stored
}

func TestCopy(t *testing.T) {
	is := is.New(t)
	src := New(Config{HashBits: 12, Ways: 4, LockBits: 4})
	stored := fillTable(src, 500, 1)
	src.NewSearch()

	dst := New(Config{HashBits: 12, Ways: 4, LockBits: 2})
	is.NoErr(src.Copy(dst))
	is.Equal(dst.Date(), src.Date())

	for _, pos := range stored {
		want, ok := src.Probe(pos, pos.Hash())
		if !ok {
			continue
		}
		got, ok := dst.Probe(pos, pos.Hash())
		is.True(ok)
		is.Equal(got, want)
	}

	other := New(Config{HashBits: 12, Ways: 2})
	err := src.Copy(other)
	is.True(errors.Is(err, ErrShapeMismatch))
}

func TestCopyBothWays(t *testing.T) {
	a := New(Config{HashBits: 12, Ways: 4, LockBits: 0})
	b := New(Config{HashBits: 12, Ways: 4, LockBits: 0})
	fillTable(a, 300, 3)
	fillTable(b, 300, 4)

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); a.Copy(b) }()
			go func() { defer wg.Done(); b.Copy(a) }()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("crossed copies did not finish")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	is := is.New(t)
	src := New(Config{HashBits: 12, Ways: 4, LockBits: 4})
	stored := fillTable(src, 300, 2)

	var buf bytes.Buffer
	n, err := src.WriteTo(&buf)
	is.NoErr(err)
	is.Equal(n, int64(buf.Len()))

	hdr, err := ReadSnapshotHeader(bytes.NewReader(buf.Bytes()))
	is.NoErr(err)
	is.Equal(hdr.Ways, 4)
	is.Equal(hdr.Date, uint8(1))

	// A larger table of another shape holds every entry.
	dst := New(Config{HashBits: 18, Ways: 4, LockBits: 6})
	m, err := dst.ReadFrom(bytes.NewReader(buf.Bytes()))
	is.NoErr(err)
	is.Equal(m, n)

	for _, pos := range stored {
		want, ok := src.Probe(pos, pos.Hash())
		if !ok {
			continue
		}
		got, ok := dst.Probe(pos, pos.Hash())
		is.True(ok)
		is.Equal(got, want)
	}
}

func TestSnapshotCorrupt(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 8, Ways: 2})

	_, err := tt.ReadFrom(bytes.NewReader([]byte("NOPE0000000000000")))
	is.True(errors.Is(err, ErrBadSnapshot))

	var buf bytes.Buffer
	fillTable(tt, 10, 3)
	_, err = tt.WriteTo(&buf)
	is.NoErr(err)
	_, err = New(Config{HashBits: 8, Ways: 2}).ReadFrom(bytes.NewReader(buf.Bytes()[:buf.Len()-5]))
	is.True(err != nil) // truncated
}

func TestHashFull(t *testing.T) {
	is := is.New(t)
	tt := New(Config{HashBits: 10, Ways: 4})
	is.Equal(tt.HashFull(), 0)

	fillTable(tt, 5000, 4)
	is.True(tt.HashFull() > 0)

	tt.NewSearch()
	is.Equal(tt.HashFull(), 0) // nothing written in the new search
}

// TestConcurrentAccess hammers a small table from several goroutines. Run
// with -race.
func TestConcurrentAccess(t *testing.T) {
	tt := New(Config{HashBits: 8, Ways: 2, LockBits: 2})

	var positions []board.Position
	rng := rand.New(rand.NewSource(5))
	for len(positions) < 2000 {
		pos := board.NewPosition()
		for !pos.IsGameOver() {
			ml := pos.GenerateMoves()
			pos.Update(ml.Get(rng.Intn(ml.Len())))
			positions = append(positions, pos)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(positions); i += 3 {
				pos := positions[i]
				h := pos.Hash()
				want := int(h%64) - 32
				tt.Store(pos, h, exact(i%20, want, board.NoSquare))
				if d, ok := tt.Probe(pos, h); ok && (d.Lower != int8(want) || d.Upper != int8(want)) {
					select {
					case errs <- "torn entry":
					default:
					}
					return
				}
				if w == 0 && i%100 == 0 {
					tt.HashFull()
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func BenchmarkHashStore(b *testing.B) {
	tt := New(DefaultConfig())
	ps := positionsAfter(board.D3, board.C4, board.F5, board.E6)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := ps[i&3]
		tt.Store(p, p.Hash(), exact(i&31, 0, board.D3))
	}
}
