package board

// Kindergarten flip: each of the four lines through x is packed into one
// byte, the outflanking discs are found with an 8-bit lookup and the flipped
// run is read back from a second lookup and unpacked onto the board.

const (
	// packFileMagic gathers file A into the top byte, rank k landing on bit k.
	packFileMagic = 0x0102040810204080
	// packDiagMagic folds a diagonal into the top byte, one bit per file.
	packDiagMagic = 0x0101010101010101
)

var (
	// outflankLine[pos][o] is the candidate outflank squares for a move at
	// pos when the six inner squares of the line hold opponent pattern o.
	outflankLine [8][64]uint8
	// flippedLine[pos][outflank] is the squares strictly between pos and
	// each outflanking square.
	flippedLine [8][256]uint8
	// unpackFile spreads a packed byte back onto file A.
	unpackFile [256]Bitboard

	diag9Mask [64]Bitboard // a1-h8 direction
	diag7Mask [64]Bitboard // h1-a8 direction
)

func initKindergarten() {
	for pos := 0; pos < 8; pos++ {
		for o6 := 0; o6 < 64; o6++ {
			o := uint8(o6 << 1)
			var outflank uint8

			j := pos + 1
			for j < 8 && o&(1<<j) != 0 {
				j++
			}
			if j > pos+1 && j < 8 {
				outflank |= 1 << j
			}

			j = pos - 1
			for j >= 0 && o&(1<<j) != 0 {
				j--
			}
			if j < pos-1 && j >= 0 {
				outflank |= 1 << j
			}

			outflankLine[pos][o6] = outflank
		}

		for outflank := 0; outflank < 256; outflank++ {
			var flipped uint8
			for j := 0; j < 8; j++ {
				if outflank&(1<<j) == 0 {
					continue
				}
				if j > pos {
					for k := pos + 1; k < j; k++ {
						flipped |= 1 << k
					}
				} else if j < pos {
					for k := j + 1; k < pos; k++ {
						flipped |= 1 << k
					}
				}
			}
			flippedLine[pos][outflank] = flipped
		}
	}

	for b := 0; b < 256; b++ {
		var file Bitboard
		for k := 0; k < 8; k++ {
			if b&(1<<k) != 0 {
				file |= SquareBB(NewSquare(0, k))
			}
		}
		unpackFile[b] = file
	}

	for sq := A1; sq <= H8; sq++ {
		diag9Mask[sq] = rays[sq][3] | rays[sq][7] | SquareBB(sq)
		diag7Mask[sq] = rays[sq][2] | rays[sq][6] | SquareBB(sq)
	}
}

func packFile(b Bitboard, file int) uint8 {
	return uint8((((b >> uint(file)) & FileA) * packFileMagic) >> 56)
}

func packDiag(b Bitboard) uint8 {
	return uint8((b * packDiagMagic) >> 56)
}

func flipLine(pos int, o, p uint8) uint8 {
	outflank := outflankLine[pos][(o>>1)&0x3F] & p
	return flippedLine[pos][outflank]
}

type kindergartenKernel struct{}

func (kindergartenKernel) Name() string { return KernelKindergarten }

func (kindergartenKernel) Flip(x Square, P, O Bitboard) Bitboard {
	file, rank := x.File(), x.Rank()
	var flipped Bitboard

	shift := uint(rank) * 8
	f := flipLine(file, uint8(O>>shift), uint8(P>>shift))
	flipped |= Bitboard(f) << shift

	f = flipLine(rank, packFile(O, file), packFile(P, file))
	flipped |= unpackFile[f] << uint(file)

	m := diag9Mask[x]
	f = flipLine(file, packDiag(O&m), packDiag(P&m))
	flipped |= (Bitboard(f) * packDiagMagic) & m

	m = diag7Mask[x]
	f = flipLine(file, packDiag(O&m), packDiag(P&m))
	flipped |= (Bitboard(f) * packDiagMagic) & m

	return flipped
}
