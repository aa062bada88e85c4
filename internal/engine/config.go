package engine

// Limits of the transposition table shape.
const (
	MinHashBits = 1
	MaxHashBits = 32
	MaxWays     = 8
	MaxLockBits = 16
)

// Config describes the shape of a transposition table.
type Config struct {
	// HashBits is the base-2 logarithm of the requested entry count.
	HashBits int
	// Ways is the number of entries per bucket.
	Ways int
	// LockBits is the base-2 logarithm of the number of lock shards. It is
	// capped to the bucket count, so several buckets share one lock.
	LockBits int
	// TrustHash makes Probe accept an entry on a 64-bit key match without
	// comparing the stored position.
	TrustHash bool
}

// DefaultConfig returns a table of about one million entries.
func DefaultConfig() Config {
	return Config{
		HashBits: 20,
		Ways:     4,
		LockBits: 8,
	}
}

// Normalize clamps the configuration to supported values. HashBits above
// MaxHashBits is left as is so that New can report it.
func (c Config) Normalize() Config {
	if c.Ways < 1 {
		c.Ways = 1
	}
	if c.Ways > MaxWays {
		c.Ways = MaxWays
	}
	if c.HashBits < MinHashBits {
		c.HashBits = MinHashBits
	}
	if c.LockBits < 0 {
		c.LockBits = 0
	}
	if c.LockBits > MaxLockBits {
		c.LockBits = MaxLockBits
	}
	if bb := c.bucketBits(); c.LockBits > bb {
		c.LockBits = bb
	}
	return c
}

// bucketBits returns the base-2 logarithm of the bucket count: the requested
// entries divided by the ways, rounded down to a power of two, at least one
// bucket.
func (c Config) bucketBits() int {
	n := roundDownToPowerOf2(uint64(1) << uint(c.HashBits) / uint64(c.Ways))
	bits := 0
	for n > 1 {
		n >>= 1
		bits++
	}
	return bits
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}
