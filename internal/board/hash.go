package board

import (
	"encoding/binary"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// crc32c64 folds one 64-bit word into a raw CRC-32C accumulator (no pre or
// post inversion, little-endian byte order), the same value the SSE4.2
// crc32 instruction produces.
func crc32c64(crc uint32, v Bitboard) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return ^crc32.Update(^crc, castagnoli, buf[:])
}

// Hash returns the 64-bit content hash of the position: a CRC-32C fold of
// Player seeded with zero in the high half, continued over Opponent in the
// low half.
func (p Position) Hash() uint64 {
	crc := crc32c64(0, p.Player)
	return uint64(crc)<<32 | uint64(crc32c64(crc, p.Opponent))
}
