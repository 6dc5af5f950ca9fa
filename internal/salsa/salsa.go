// Package salsa implements the bit-exact Salsa20 round machinery the
// experiment kernel drives: a 16-word state, the state-wide arithmetic
// operations, the four-rotation ARX micro-step, and the odd/even round
// orderings.
//
// The package intentionally exposes the round function at the granularity
// of individual ARX micro-steps (rather than only whole rounds) because the
// differential-linear trick in package trial needs to interleave and
// partially invert them.
package salsa

import "github.com/dlcrypto/salsapnb/internal/bits"

// State is a 16-word Salsa state, indexed 0..15 and interpreted as a 4x4
// matrix. All arithmetic on the words is modulo 2^32.
type State [16]uint32

// Key is a 256-bit Salsa key as eight 32-bit words. A 128-bit key is
// represented by replicating its four words into positions 4..7, matching
// InsertKey's expectation that K always has eight words.
type Key [8]uint32

// Constants are the four Salsa "expand 32-byte k" nothing-up-my-sleeve
// words written into state positions 0, 5, 10, and 15.
var Constants = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

// Copy sets *dst to *src.
func Copy(dst, src *State) {
	*dst = *src
}

// Add sets dst[i] = a[i] + b[i] (mod 2^32) for all i.
func Add(dst, a, b *State) {
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

// Sub sets dst[i] = a[i] - b[i] (mod 2^32) for all i.
func Sub(dst, a, b *State) {
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
}

// Xor sets dst[i] = a[i] ^ b[i] for all i.
func Xor(dst, a, b *State) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}

// InitIVConst writes the Salsa constants to positions 0, 5, 10, 15 and the
// given IV fill (random or fixed) to positions 6..9.
func InitIVConst(s *State, iv [4]uint32) {
	s[0], s[5], s[10], s[15] = Constants[0], Constants[1], Constants[2], Constants[3]
	s[6], s[7], s[8], s[9] = iv[0], iv[1], iv[2], iv[3]
}

// InsertKey writes K[0..3] into s[1..4] and K[4..7] into s[11..14],
// overwriting only the key positions and leaving constants and IV intact.
func InsertKey(s *State, k *Key) {
	s[1], s[2], s[3], s[4] = k[0], k[1], k[2], k[3]
	s[11], s[12], s[13], s[14] = k[4], k[5], k[6], k[7]
}

// Ordering selects which of the two quartet tables an ARX step operates on:
// Odd selects the four column quartets, Even selects the four row quartets.
type Ordering uint8

const (
	Odd Ordering = iota
	Even
)

// oddQuartets are the four column quartets (a, b, c, d) used by odd rounds.
var oddQuartets = [4][4]int{
	{0, 4, 8, 12},
	{5, 9, 13, 1},
	{10, 14, 2, 6},
	{15, 3, 7, 11},
}

// evenQuartets are the four row quartets (a, b, c, d) used by even rounds.
var evenQuartets = [4][4]int{
	{0, 1, 2, 3},
	{5, 6, 7, 4},
	{10, 11, 8, 9},
	{15, 12, 13, 14},
}

func quartets(ord Ordering) *[4][4]int {
	if ord == Odd {
		return &oddQuartets
	}
	return &evenQuartets
}

// RoundForIndex reports the ordering full_round uses for the given
// (1-based) round index: odd rounds use the column quartets, even rounds
// use the row quartets.
func RoundForIndex(roundIndex int) Ordering {
	if roundIndex%2 != 0 {
		return Odd
	}
	return Even
}

// ArxStep applies one of the four sequential ARX micro-assignments,
// selected by its rotation amount r (7, 9, 13, or 18), to every quartet of
// the given ordering. It panics if r is not one of those four values.
func ArxStep(s *State, r int, ord Ordering) {
	qs := quartets(ord)
	switch r {
	case 7:
		for _, q := range qs {
			a, b, d := q[0], q[1], q[3]
			s[b] ^= bits.RotateLeft32(s[a]+s[d], 7)
		}
	case 9:
		for _, q := range qs {
			a, b, c := q[0], q[1], q[2]
			s[c] ^= bits.RotateLeft32(s[b]+s[a], 9)
		}
	case 13:
		for _, q := range qs {
			b, c, d := q[1], q[2], q[3]
			s[d] ^= bits.RotateLeft32(s[c]+s[b], 13)
		}
	case 18:
		for _, q := range qs {
			a, c, d := q[0], q[2], q[3]
			s[a] ^= bits.RotateLeft32(s[d]+s[c], 18)
		}
	default:
		panic("salsa: ArxStep: rotation amount must be one of 7, 9, 13, 18")
	}
}

// UArxStep is the distinguished, non-XOR-inverting variant of the r=18 ARX
// micro-step used only in the "last round modified" tail (see the trial
// package). When nonInverting is true, it overwrites a with the rotated
// operand rather than XORing it in, matching the intended Aumasson-style
// semantics; when false, it is a literal no-op, matching the historical
// empty macro body this behavior is modeled on.
func UArxStep(s *State, ord Ordering, nonInverting bool) {
	if !nonInverting {
		return
	}
	qs := quartets(ord)
	for _, q := range qs {
		a, c, d := q[0], q[2], q[3]
		s[a] = bits.RotateLeft32(s[d]+s[c], 18)
	}
}

// HalfRound1 applies the first two ARX micro-steps (rotations 7, 9) of a
// full round.
func HalfRound1(s *State, ord Ordering) {
	ArxStep(s, 7, ord)
	ArxStep(s, 9, ord)
}

// HalfRound2 applies the last two ARX micro-steps (rotations 13, 18) of a
// full round.
func HalfRound2(s *State, ord Ordering) {
	ArxStep(s, 13, ord)
	ArxStep(s, 18, ord)
}

// BackwardHalfRound1 inverts HalfRound1: the two ARX micro-steps (rotations
// 7, 9) applied in the opposite order, for the same reason BackwardFullRound
// inverts FullRound by reversing all four.
func BackwardHalfRound1(s *State, ord Ordering) {
	ArxStep(s, 9, ord)
	ArxStep(s, 7, ord)
}

// BackwardHalfRound2 inverts HalfRound2: the two ARX micro-steps (rotations
// 13, 18) applied in the opposite order.
func BackwardHalfRound2(s *State, ord Ordering) {
	ArxStep(s, 18, ord)
	ArxStep(s, 13, ord)
}

// FullRound applies one full Salsa round: half_round_1 then half_round_2,
// with the ordering chosen by the parity of roundIndex (odd rounds use the
// column quartets, even rounds use the row quartets).
func FullRound(s *State, roundIndex int) {
	ord := RoundForIndex(roundIndex)
	HalfRound1(s, ord)
	HalfRound2(s, ord)
}

// BackwardFullRound inverts FullRound. Because each ARX micro-step is a
// single XOR-assignment of one word, and the four micro-steps of a round
// touch b, c, d, a in that order, the round's inverse is exactly the same
// four micro-steps applied in the opposite order (18, 13, 9, 7): when each
// undo runs, its two operand words hold the same values they held when its
// forward counterpart ran (either untouched since, or already restored by
// an earlier undo), so it XORs in the identical rotated sum.
func BackwardFullRound(s *State, roundIndex int) {
	ord := RoundForIndex(roundIndex)
	ArxStep(s, 18, ord)
	ArxStep(s, 13, ord)
	ArxStep(s, 9, ord)
	ArxStep(s, 7, ord)
}
