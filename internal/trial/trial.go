// Package trial implements one Monte-Carlo experiment of the
// differential-linear PNB distinguisher: draw a random key and IV, run the
// forward Salsa pipeline on a state and its ID-perturbed twin, sample a
// forward parity, reconstruct the round output for a single-bit-flipped
// key via the (X + X^R - K) trick, run the corresponding partial backward
// pipeline, sample a backward parity, and report whether the two parities
// agree.
//
// A Kernel holds no state beyond its configuration; all ten scratch
// states used by a trial are local to Run and never escape it.
package trial

import (
	"math/rand/v2"

	"github.com/dlcrypto/salsapnb/config"
	"github.com/dlcrypto/salsapnb/internal/salsa"
)

// Kernel is the immutable, read-only configuration a worker goroutine
// shares across all of its trials for one (key_word, key_bit) target.
type Kernel struct {
	Cipher config.CipherConfig
	Diff   config.DiffConfig

	// KeyWord and KeyBit identify the target key bit under test.
	KeyWord int
	KeyBit  int
}

// Run executes one trial and reports 1 if the forward and backward
// parities agree, 0 otherwise.
func (k Kernel) Run(rng *rand.Rand) uint64 {
	fwdRoundedRf := k.Diff.FwdRounds.Floor()
	fwdFractional := k.Diff.FwdRounds.Fractional()
	totalRoundedR := k.Cipher.TotalRounds.Floor()
	totalFractional := k.Cipher.TotalRounds.Fractional()

	// Step 1: X, K.
	var x salsa.State
	salsa.InitIVConst(&x, randomIV(rng))
	key := randomKey(rng, k.Cipher.KeySize)
	salsa.InsertKey(&x, &key)

	// Step 2: X_R := copy(X); X' := copy(X).
	var xr, xp salsa.State
	salsa.Copy(&xr, &x)
	salsa.Copy(&xp, &x)

	// Step 3: inject ID into X'; X'_R := copy(X').
	for _, bp := range k.Diff.ID {
		xp[bp.Word] ^= 1 << uint(bp.Bit)
	}
	var xpr salsa.State
	salsa.Copy(&xpr, &xp)

	// Step 4: forward to the distinguisher point.
	for i := 1; i <= fwdRoundedRf; i++ {
		salsa.FullRound(&x, i)
		salsa.FullRound(&xp, i)
	}
	var fwdFracOrd salsa.Ordering
	if fwdFractional {
		fwdFracOrd = fractionalOrdering(fwdRoundedRf)
		salsa.HalfRound1(&x, fwdFracOrd)
		salsa.HalfRound1(&xp, fwdFracOrd)
	}

	// Step 5: sample forward parity.
	var d salsa.State
	salsa.Xor(&d, &x, &xp)
	fwdParity := parityOf(&d, k.Diff.Mask)

	// Step 6: forward to total rounds, plus the unconditional tail.
	if fwdFractional {
		salsa.HalfRound2(&x, fwdFracOrd)
		salsa.HalfRound2(&xp, fwdFracOrd)
	}
	fwdPostRound := fwdRoundedRf + 1
	if fwdFractional {
		fwdPostRound = fwdRoundedRf + 2
	}
	for i := fwdPostRound; i <= totalRoundedR; i++ {
		salsa.FullRound(&x, i)
		salsa.FullRound(&xp, i)
	}
	var totalFracOrd salsa.Ordering
	if totalFractional {
		totalFracOrd = fractionalOrdering(totalRoundedR)
		salsa.HalfRound1(&x, totalFracOrd)
		salsa.HalfRound1(&xp, totalFracOrd)
	}
	salsa.HalfRound1(&x, salsa.Even)
	salsa.HalfRound1(&xp, salsa.Even)
	salsa.ArxStep(&x, 13, salsa.Even)
	salsa.ArxStep(&xp, 13, salsa.Even)
	salsa.UArxStep(&x, salsa.Even, k.Cipher.NonInvertingTail)
	salsa.UArxStep(&xp, salsa.Even, k.Cipher.NonInvertingTail)

	// Step 7: the sum trick.
	var sum, sump salsa.State
	salsa.Add(&sum, &x, &xr)
	salsa.Add(&sump, &xp, &xpr)

	// Step 8: flip the target key bit.
	key[k.KeyWord] ^= 1 << uint(k.KeyBit)
	if k.Cipher.KeySize == 128 {
		key[k.KeyWord+4] ^= 1 << uint(k.KeyBit)
	}

	// Step 9: rebuild the keyed reference states.
	salsa.InsertKey(&xr, &key)
	salsa.InsertKey(&xpr, &key)

	// Step 10.
	var m, mp salsa.State
	salsa.Sub(&m, &sum, &xr)
	salsa.Sub(&mp, &sump, &xpr)

	// Step 11: partial backward.
	salsa.UArxStep(&m, salsa.Even, k.Cipher.NonInvertingTail)
	salsa.UArxStep(&mp, salsa.Even, k.Cipher.NonInvertingTail)
	salsa.ArxStep(&m, 13, salsa.Even)
	salsa.ArxStep(&mp, 13, salsa.Even)
	salsa.BackwardHalfRound1(&m, salsa.Even)
	salsa.BackwardHalfRound1(&mp, salsa.Even)
	if totalFractional {
		salsa.BackwardHalfRound1(&m, totalFracOrd)
		salsa.BackwardHalfRound1(&mp, totalFracOrd)
	}
	bwdRound := fwdRoundedRf
	if fwdFractional {
		bwdRound = fwdRoundedRf + 1
	}
	for i := totalRoundedR; i > bwdRound; i-- {
		salsa.BackwardFullRound(&m, i)
		salsa.BackwardFullRound(&mp, i)
	}
	if fwdFractional {
		salsa.BackwardHalfRound2(&m, fwdFracOrd)
		salsa.BackwardHalfRound2(&mp, fwdFracOrd)
	}

	// Step 12: sample backward parity.
	var dp salsa.State
	salsa.Xor(&dp, &m, &mp)
	bwdParity := parityOf(&dp, k.Diff.Mask)

	// Step 13.
	if fwdParity == bwdParity {
		return 1
	}
	return 0
}

// fractionalOrdering returns the ordering the (floorVal+1)-th full round
// would use, matching FullRound's odd/even-by-index rule. It is the
// ordering a fractional half-round appended after floorVal whole rounds
// must use to continue the round sequence coherently.
func fractionalOrdering(floorVal int) salsa.Ordering {
	return salsa.RoundForIndex(floorVal + 1)
}

func parityOf(s *salsa.State, mask []config.BitPos) uint32 {
	var p uint32
	for _, bp := range mask {
		p ^= (s[bp.Word] >> uint(bp.Bit)) & 1
	}
	return p
}

func randomIV(rng *rand.Rand) [4]uint32 {
	var iv [4]uint32
	for i := range iv {
		iv[i] = rng.Uint32()
	}
	return iv
}

func randomKey(rng *rand.Rand, keySize int) salsa.Key {
	var k salsa.Key
	if keySize == 128 {
		for i := 0; i < 4; i++ {
			k[i] = rng.Uint32()
			k[i+4] = k[i]
		}
		return k
	}
	for i := range k {
		k[i] = rng.Uint32()
	}
	return k
}
