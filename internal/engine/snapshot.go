package engine

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hailam/reversi/internal/board"
)

// Snapshot layout, little endian:
//
//	magic "RVTT" | version u16 | ways u8 | bucket bits u8 | date u8 | count u64
//	count entries of 32 bytes: key, player, opponent (u64 each), then depth,
//	selectivity, cost, date, lower, upper, move 0, move 1 (one byte each).
const (
	snapshotMagic   = "RVTT"
	snapshotVersion = 1
	headerSize      = 4 + 2 + 3 + 8
	entrySize       = 32
)

// ErrBadSnapshot is returned by ReadFrom for data that is not a table
// snapshot.
var ErrBadSnapshot = errors.New("invalid transposition table snapshot")

// SnapshotHeader describes a serialized table.
type SnapshotHeader struct {
	Ways       int
	BucketBits int
	Date       uint8
	Count      uint64
}

// liveEntries collects the non-empty entries, one shard at a time.
func (t *Table) liveEntries() []Entry {
	var live []Entry
	perLock := len(t.entries) / len(t.locks)
	for s := range t.locks {
		t.locks[s].RLock()
		for _, e := range t.entries[s*perLock : (s+1)*perLock] {
			if e.Data.Date != 0 {
				live = append(live, e)
			}
		}
		t.locks[s].RUnlock()
	}
	return live
}

// WriteTo writes the live entries of the table in the snapshot format.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	live := t.liveEntries()
	bw := bufio.NewWriter(w)

	var hdr [headerSize]byte
	copy(hdr[:4], snapshotMagic)
	binary.LittleEndian.PutUint16(hdr[4:], snapshotVersion)
	hdr[6] = uint8(t.ways)
	hdr[7] = uint8(t.bucketBits)
	hdr[8] = t.Date()
	binary.LittleEndian.PutUint64(hdr[9:], uint64(len(live)))

	n, err := bw.Write(hdr[:])
	written := int64(n)
	if err != nil {
		return written, fmt.Errorf("write snapshot header: %w", err)
	}

	var buf [entrySize]byte
	for _, e := range live {
		encodeEntry(buf[:], &e)
		n, err = bw.Write(buf[:])
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write snapshot entry: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flush snapshot: %w", err)
	}
	return written, nil
}

// ReadFrom loads a snapshot written by WriteTo. The snapshot may come from a
// table of another shape: each entry is placed in its bucket of t, evicting
// the least valuable way. The date of t becomes the snapshot date.
func (t *Table) ReadFrom(r io.Reader) (int64, error) {
	br := bufio.NewReader(r)

	var hdr [headerSize]byte
	n, err := io.ReadFull(br, hdr[:])
	read := int64(n)
	if err != nil {
		return read, fmt.Errorf("read snapshot header: %w", err)
	}
	h, err := decodeHeader(hdr[:])
	if err != nil {
		return read, err
	}

	var buf [entrySize]byte
	for i := uint64(0); i < h.Count; i++ {
		n, err = io.ReadFull(br, buf[:])
		read += int64(n)
		if err != nil {
			return read, fmt.Errorf("read snapshot entry %d of %d: %w", i, h.Count, err)
		}
		var e Entry
		decodeEntry(buf[:], &e)
		if e.Data.Date == 0 || e.Position.Player&e.Position.Opponent != 0 {
			return read, fmt.Errorf("%w: corrupt entry %d", ErrBadSnapshot, i)
		}
		t.insert(e)
	}
	t.date.Store(uint32(h.Date))
	return read, nil
}

// ReadSnapshotHeader reads and validates the header at the start of r.
func ReadSnapshotHeader(r io.Reader) (SnapshotHeader, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return SnapshotHeader{}, fmt.Errorf("read snapshot header: %w", err)
	}
	return decodeHeader(hdr[:])
}

func decodeHeader(hdr []byte) (SnapshotHeader, error) {
	if string(hdr[:4]) != snapshotMagic {
		return SnapshotHeader{}, fmt.Errorf("%w: bad magic %q", ErrBadSnapshot, hdr[:4])
	}
	if v := binary.LittleEndian.Uint16(hdr[4:]); v != snapshotVersion {
		return SnapshotHeader{}, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, v)
	}
	h := SnapshotHeader{
		Ways:       int(hdr[6]),
		BucketBits: int(hdr[7]),
		Date:       hdr[8],
		Count:      binary.LittleEndian.Uint64(hdr[9:]),
	}
	if h.Ways < 1 || h.Ways > MaxWays || h.Date == 0 {
		return SnapshotHeader{}, fmt.Errorf("%w: ways=%d date=%d", ErrBadSnapshot, h.Ways, h.Date)
	}
	return h, nil
}

// insert places e in its bucket unconditionally.
func (t *Table) insert(e Entry) {
	first, lock := t.bucket(e.Key)
	lock.Lock()
	defer lock.Unlock()

	victim := &t.entries[first]
	for i := first; i < first+t.ways; i++ {
		c := &t.entries[i]
		if c.Data.Date != 0 && c.Key == e.Key && c.Position == e.Position {
			victim = c
			break
		}
		if c.Data.rank() < victim.Data.rank() {
			victim = c
		}
	}
	*victim = e
}

func encodeEntry(buf []byte, e *Entry) {
	binary.LittleEndian.PutUint64(buf[0:], e.Key)
	binary.LittleEndian.PutUint64(buf[8:], uint64(e.Position.Player))
	binary.LittleEndian.PutUint64(buf[16:], uint64(e.Position.Opponent))
	d := &e.Data
	buf[24] = d.Depth
	buf[25] = d.Selectivity
	buf[26] = d.Cost
	buf[27] = d.Date
	buf[28] = uint8(d.Lower)
	buf[29] = uint8(d.Upper)
	buf[30] = uint8(d.Move[0])
	buf[31] = uint8(d.Move[1])
}

func decodeEntry(buf []byte, e *Entry) {
	e.Key = binary.LittleEndian.Uint64(buf[0:])
	e.Position.Player = board.Bitboard(binary.LittleEndian.Uint64(buf[8:]))
	e.Position.Opponent = board.Bitboard(binary.LittleEndian.Uint64(buf[16:]))
	d := &e.Data
	d.Depth = buf[24]
	d.Selectivity = buf[25]
	d.Cost = buf[26]
	d.Date = buf[27]
	d.Lower = int8(buf[28])
	d.Upper = int8(buf[29])
	d.Move[0] = board.Square(buf[30])
	d.Move[1] = board.Square(buf[31])
}
