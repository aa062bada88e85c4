package engine

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/reversi/internal/board"
)

// Score bounds stored in an entry. Disc differences lie in [-64, 64].
const (
	ScoreMin = -64
	ScoreMax = 64
	ScoreInf = 127
)

// maxDate is the last date before NewSearch wraps around.
const maxDate = 255

// ErrShapeMismatch is returned by Copy when the tables differ in bucket count
// or associativity.
var ErrShapeMismatch = errors.New("transposition table shape mismatch")

// Data is the payload of a table entry.
type Data struct {
	Depth       uint8
	Selectivity uint8
	Cost        uint8
	Date        uint8 // 0 for an empty entry
	Lower       int8
	Upper       int8
	Move        [2]board.Square
}

// emptyData is the payload of a cleared entry.
var emptyData = Data{
	Lower: -ScoreInf,
	Upper: ScoreInf,
	Move:  [2]board.Square{board.NoSquare, board.NoSquare},
}

// Entry is one way of a bucket.
type Entry struct {
	Key      uint64
	Position board.Position
	Data     Data
}

// Result is what a search reports for a position. The score is compared
// with the alpha-beta window to derive the bounds: a score below beta is an
// upper bound, a score above alpha a lower bound.
type Result struct {
	Depth       int
	Selectivity int
	Cost        int
	Alpha       int
	Beta        int
	Score       int
	Move        board.Square
}

// Stats holds table counters.
type Stats struct {
	Probes uint64
	Hits   uint64
	Stores uint64
	Skips  uint64 // stores dropped to protect a deeper current entry
}

// Table is an N-way associative transposition table. Buckets are split into
// contiguous ranges, each guarded by one lock, so the lock array stays much
// smaller than the bucket array.
type Table struct {
	cfg        Config
	entries    []Entry
	locks      []sync.RWMutex
	ways       int
	bucketBits int
	bucketMask uint64
	lockShift  uint
	date       atomic.Uint32

	probes atomic.Uint64
	hits   atomic.Uint64
	stores atomic.Uint64
	skips  atomic.Uint64
}

// New allocates a cleared table. A capacity beyond MaxHashBits is fatal.
func New(cfg Config) *Table {
	t := &Table{}
	t.allocate(cfg)
	return t
}

func (t *Table) allocate(cfg Config) {
	cfg = cfg.Normalize()
	if cfg.HashBits > MaxHashBits {
		log.Fatal().Int("hashbits", cfg.HashBits).Int("max", MaxHashBits).Msg("hash-table-too-large")
	}

	t.cfg = cfg
	t.ways = cfg.Ways
	t.bucketBits = cfg.bucketBits()
	buckets := uint64(1) << uint(t.bucketBits)
	t.bucketMask = buckets - 1
	t.lockShift = uint(t.bucketBits - cfg.LockBits)
	t.entries = make([]Entry, buckets*uint64(t.ways))
	t.locks = make([]sync.RWMutex, 1<<uint(cfg.LockBits))

	for i := range t.entries {
		t.entries[i].Data = emptyData
	}
	t.date.Store(1)

	log.Debug().
		Uint64("buckets", buckets).
		Int("ways", t.ways).
		Int("locks", len(t.locks)).
		Bool("trust-hash", cfg.TrustHash).
		Msg("hash-table-allocated")
}

// Config returns the normalized configuration of the table.
func (t *Table) Config() Config { return t.cfg }

// Size returns the number of entries in the table.
func (t *Table) Size() int { return len(t.entries) }

// Buckets returns the number of buckets.
func (t *Table) Buckets() int { return int(t.bucketMask + 1) }

// Ways returns the associativity.
func (t *Table) Ways() int { return t.ways }

// Locks returns the number of lock shards.
func (t *Table) Locks() int { return len(t.locks) }

// Date returns the current date.
func (t *Table) Date() uint8 { return uint8(t.date.Load()) }

func (t *Table) bucket(hash uint64) (first int, lock *sync.RWMutex) {
	b := hash & t.bucketMask
	return int(b) * t.ways, &t.locks[b>>t.lockShift]
}

func (t *Table) matches(e *Entry, pos board.Position, hash uint64) bool {
	if e.Data.Date == 0 || e.Key != hash {
		return false
	}
	return t.cfg.TrustHash || e.Position == pos
}

// Probe returns the data stored for pos, hash being pos.Hash().
func (t *Table) Probe(pos board.Position, hash uint64) (Data, bool) {
	t.probes.Add(1)
	first, lock := t.bucket(hash)

	lock.RLock()
	defer lock.RUnlock()
	for i := first; i < first+t.ways; i++ {
		if e := &t.entries[i]; t.matches(e, pos, hash) {
			t.hits.Add(1)
			return e.Data, true
		}
	}
	return Data{}, false
}

// Store merges r into the entry for pos, or writes a new entry over the least
// valuable way of the bucket. A way holding a deeper result of the current
// search is never overwritten; when every way does, the store is dropped.
func (t *Table) Store(pos board.Position, hash uint64, r Result) {
	t.store(pos, hash, r, false)
}

// ForceStore is Store without replacement protection: the result always
// lands in the table, replacing any previous data for pos.
func (t *Table) ForceStore(pos board.Position, hash uint64, r Result) {
	t.store(pos, hash, r, true)
}

func (t *Table) store(pos board.Position, hash uint64, r Result, force bool) {
	date := uint8(t.date.Load())
	first, lock := t.bucket(hash)

	lock.Lock()
	defer lock.Unlock()

	for i := first; i < first+t.ways; i++ {
		e := &t.entries[i]
		if !t.matches(e, pos, hash) {
			continue
		}
		if force {
			e.Data.reset(date, r)
		} else {
			e.Data.merge(date, r)
		}
		t.stores.Add(1)
		return
	}

	// The victim is the lowest ranked way among those not holding a deeper
	// result of the current search.
	var victim *Entry
	for i := first; i < first+t.ways; i++ {
		e := &t.entries[i]
		if !force && e.Data.Date == date && int(e.Data.Depth) > r.Depth {
			continue
		}
		if victim == nil || e.Data.rank() < victim.Data.rank() {
			victim = e
		}
	}
	if victim == nil {
		t.skips.Add(1)
		return
	}

	victim.Key = hash
	victim.Position = pos
	victim.Data.reset(date, r)
	t.stores.Add(1)
}

// ExcludeMove removes move from the best moves stored for pos. The bounds
// are left untouched.
func (t *Table) ExcludeMove(pos board.Position, hash uint64, move board.Square) {
	first, lock := t.bucket(hash)

	lock.Lock()
	defer lock.Unlock()
	for i := first; i < first+t.ways; i++ {
		e := &t.entries[i]
		if !t.matches(e, pos, hash) {
			continue
		}
		switch move {
		case e.Data.Move[0]:
			e.Data.Move[0] = e.Data.Move[1]
			e.Data.Move[1] = board.NoSquare
		case e.Data.Move[1]:
			e.Data.Move[1] = board.NoSquare
		}
		return
	}
}

// rank orders entries by how much they are worth keeping: date first, then
// cost, selectivity and depth. Empty entries have date 0 and rank lowest.
func (d *Data) rank() uint32 {
	return uint32(d.Date)<<24 | uint32(d.Cost)<<16 | uint32(d.Selectivity)<<8 | uint32(d.Depth)
}

func (d *Data) pushMove(r Result) {
	if r.Move == board.NoSquare || !(r.Score > r.Alpha || r.Score == ScoreMin) {
		return
	}
	if d.Move[0] != r.Move {
		d.Move[1] = d.Move[0]
		d.Move[0] = r.Move
	}
}

// reset replaces the data with r alone.
func (d *Data) reset(date uint8, r Result) {
	d.Upper, d.Lower = ScoreInf, -ScoreInf
	if r.Score < r.Beta {
		d.Upper = int8(r.Score)
	}
	if r.Score > r.Alpha {
		d.Lower = int8(r.Score)
	}
	d.Move = [2]board.Square{board.NoSquare, board.NoSquare}
	d.pushMove(r)
	d.Depth = clampUint8(r.Depth)
	d.Selectivity = clampUint8(r.Selectivity)
	d.Cost = clampUint8(r.Cost)
	d.Date = date
}

// merge folds r into data stored for the same position.
func (d *Data) merge(date uint8, r Result) {
	depth, sel := clampUint8(r.Depth), clampUint8(r.Selectivity)

	switch {
	case depth == d.Depth && sel == d.Selectivity:
		if r.Score < r.Beta && int8(r.Score) < d.Upper {
			d.Upper = int8(r.Score)
		}
		if r.Score > r.Alpha && int8(r.Score) > d.Lower {
			d.Lower = int8(r.Score)
		}
		if c := clampUint8(r.Cost); c > d.Cost {
			d.Cost = c
		}
	case depth > d.Depth || (depth == d.Depth && sel > d.Selectivity):
		d.Upper, d.Lower = ScoreInf, -ScoreInf
		if r.Score < r.Beta {
			d.Upper = int8(r.Score)
		}
		if r.Score > r.Alpha {
			d.Lower = int8(r.Score)
		}
		d.Depth, d.Selectivity = depth, sel
		d.Cost = clampUint8(r.Cost)
	}
	d.pushMove(r)
	d.Date = date

	if d.Lower > d.Upper {
		d.reset(date, r)
	}
}

func clampUint8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// NewSearch starts a new date. When the date wraps the table is cleared.
func (t *Table) NewSearch() {
	for {
		d := t.date.Load()
		if d >= maxDate {
			t.Clear()
			return
		}
		if t.date.CompareAndSwap(d, d+1) {
			return
		}
	}
}

// forEachShard runs f in parallel over the entry range [lo, hi) guarded by
// each lock shard. f takes the lock itself.
func (t *Table) forEachShard(f func(shard int, lo, hi int) error) error {
	perLock := len(t.entries) / len(t.locks)
	g := errgroup.Group{}
	g.SetLimit(runtime.GOMAXPROCS(0))
	for s := range t.locks {
		s := s
		g.Go(func() error {
			return f(s, s*perLock, (s+1)*perLock)
		})
	}
	return g.Wait()
}

// Clear empties every entry, resets the date and the counters. The
// allocation is kept.
func (t *Table) Clear() {
	_ = t.forEachShard(func(s, lo, hi int) error {
		t.locks[s].Lock()
		defer t.locks[s].Unlock()
		for i := lo; i < hi; i++ {
			t.entries[i] = Entry{Data: emptyData}
		}
		return nil
	})
	t.date.Store(1)
	t.probes.Store(0)
	t.hits.Store(0)
	t.stores.Store(0)
	t.skips.Store(0)
}

// Resize reallocates the table with a new shape. It must not run
// concurrently with any other table operation.
func (t *Table) Resize(cfg Config) {
	t.allocate(cfg)
	t.probes.Store(0)
	t.hits.Store(0)
	t.stores.Store(0)
	t.skips.Store(0)
}

// Copy copies every live entry of t into dst, which must have the same
// bucket count and associativity. Entries of dst that are empty in t are
// left alone. The date of dst becomes the date of t.
func (t *Table) Copy(dst *Table) error {
	if dst == t {
		return nil
	}
	if dst.Buckets() != t.Buckets() || dst.ways != t.ways {
		return fmt.Errorf("copy %dx%d table into %dx%d: %w",
			t.Buckets(), t.ways, dst.Buckets(), dst.ways, ErrShapeMismatch)
	}

	// Each shard is read into a buffer first, so no source lock is held
	// while a destination lock is taken.
	err := t.forEachShard(func(s, lo, hi int) error {
		buf := make([]Entry, hi-lo)
		t.locks[s].RLock()
		copy(buf, t.entries[lo:hi])
		t.locks[s].RUnlock()

		for k, e := range buf {
			if e.Data.Date == 0 {
				continue
			}
			i := lo + k
			lock := &dst.locks[uint64(i/t.ways)>>dst.lockShift]
			lock.Lock()
			dst.entries[i] = e
			lock.Unlock()
		}
		return nil
	})
	dst.date.Store(t.date.Load())
	return err
}

// Stats returns a snapshot of the table counters.
func (t *Table) Stats() Stats {
	return Stats{
		Probes: t.probes.Load(),
		Hits:   t.hits.Load(),
		Stores: t.stores.Load(),
		Skips:  t.skips.Load(),
	}
}

// HitRate returns the probe hit rate as a percentage.
func (t *Table) HitRate() float64 {
	probes := t.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(t.hits.Load()) / float64(probes) * 100
}

// HashFull returns the permille of entries written during the current
// search, sampled over the first thousand entries.
func (t *Table) HashFull() int {
	sample := 1000
	if sample > len(t.entries) {
		sample = len(t.entries)
	}

	date := uint8(t.date.Load())
	used := 0
	for i := 0; i < sample; {
		b := uint64(i / t.ways)
		lock := &t.locks[b>>t.lockShift]
		lock.RLock()
		for end := min(int(b+1)*t.ways, sample); i < end; i++ {
			if t.entries[i].Data.Date == date {
				used++
			}
		}
		lock.RUnlock()
	}
	return used * 1000 / sample
}
