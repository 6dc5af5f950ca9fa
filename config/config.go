// Package config defines the immutable configuration values threaded
// through the coordinator and the experiment kernel: cipher parameters,
// the differential-linear descriptor, sampling parameters, and the PNB
// classification threshold. Rather than process-wide singletons, every
// value here is constructed once (by a CLI entry point or a test) and
// never mutated after construction; workers receive a read-only reference.
package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sort"
)

// DefaultThreshold is used when a caller supplies an out-of-range or
// unparseable neutrality threshold.
const DefaultThreshold = 0.35

// DefaultTrialsPerWorker is the number of Monte-Carlo trials (S) each
// worker runs per (key_word, key_bit) pair when not overridden.
const DefaultTrialsPerWorker = 1 << 18

// RoundGranularity is the smallest fraction of a round a cipher
// configuration may specify. A round count is valid only if it is an exact
// multiple of 1/granularity.
type RoundGranularity int

const (
	Full    RoundGranularity = 1
	Half    RoundGranularity = 2
	Quarter RoundGranularity = 4
)

// Rounds is a (possibly fractional) round count, restricted by contract to
// multiples of one half.
type Rounds float64

// Floor returns the integer part of r.
func (r Rounds) Floor() int {
	return int(math.Floor(float64(r)))
}

// Fractional reports whether r has a non-zero fractional part.
func (r Rounds) Fractional() bool {
	return float64(r) != math.Trunc(float64(r))
}

// Valid reports whether r is an exact multiple of 1/g.
func (r Rounds) Valid(g RoundGranularity) bool {
	scaled := float64(r) * float64(g)
	return math.Abs(scaled-math.Round(scaled)) < 1e-9
}

// BitPos identifies a single bit of a state word: word index in [0, 16) for
// state descriptors, or [0, key word count) for key-bit indices, and bit
// index in [0, 32).
type BitPos struct {
	Word int
	Bit  int
}

// CipherConfig describes the reduced-round Salsa20 variant under attack.
type CipherConfig struct {
	// Name, Mode, and Comment are descriptive only; they do not affect
	// classification and exist for the report banner (e.g. "salsa",
	// "PNBsearch", "last round modified").
	Name    string
	Mode    string
	Comment string

	// KeySize is 128 or 256.
	KeySize int

	// TotalRounds is R: total rounds the cipher runs.
	TotalRounds Rounds

	// NonInvertingTail selects between the two readings of the shipped
	// reference's empty UEVENARX_18 macro body: true implements the
	// intended non-inverting overwrite semantics used by the "last round
	// modified" 7.5-round configuration; false reproduces the literal
	// historical no-op. See DESIGN.md for the rationale.
	NonInvertingTail bool
}

// KeyWordCount returns the number of independent key words: 8 for a
// 256-bit key, 4 for a 128-bit key (whose words are replicated to fill an
// 8-word key schedule).
func (c CipherConfig) KeyWordCount() int {
	if c.KeySize == 128 {
		return 4
	}
	return 8
}

// KeyBitCount returns the number of independently classifiable key bits:
// 256 or 128.
func (c CipherConfig) KeyBitCount() int {
	return c.KeyWordCount() * 32
}

// Validate reports a configuration error (refuse to start) for a key size
// outside {128, 256} or a total round count that is not a valid multiple
// of the half-round granularity the engine requires.
func (c CipherConfig) Validate() error {
	if c.KeySize != 128 && c.KeySize != 256 {
		return fmt.Errorf("config: key size must be 128 or 256, got %d", c.KeySize)
	}
	if !c.TotalRounds.Valid(Half) {
		return fmt.Errorf("config: total rounds %v is not a multiple of 1/2", float64(c.TotalRounds))
	}
	return nil
}

// DiffConfig is the differential-linear distinguisher's fixed
// configuration: the round at which the forward parity is sampled, the
// input difference injected into the initial state, and the linear output
// mask used to compute a one-bit parity.
type DiffConfig struct {
	// FwdRounds is R_f: the round depth at which the forward parity is
	// sampled. Must be <= the cipher's TotalRounds.
	FwdRounds Rounds

	// ID is the input difference: bits toggled in the initial state before
	// the forward pipeline runs.
	ID []BitPos

	// Mask is the linear output mask: bits XORed together to form the
	// one-bit parity sampled from a state.
	Mask []BitPos
}

// Validate reports an error if FwdRounds exceeds total, is not a valid
// half-round multiple, or ID/Mask reference an out-of-range word or bit.
func (d DiffConfig) Validate(cipher CipherConfig) error {
	if float64(d.FwdRounds) > float64(cipher.TotalRounds) {
		return fmt.Errorf("config: distinguishing round %v exceeds total rounds %v",
			float64(d.FwdRounds), float64(cipher.TotalRounds))
	}
	if !d.FwdRounds.Valid(Half) {
		return fmt.Errorf("config: distinguishing round %v is not a multiple of 1/2", float64(d.FwdRounds))
	}
	if err := validateDescriptor(d.ID, "input difference"); err != nil {
		return err
	}
	if err := validateDescriptor(d.Mask, "output mask"); err != nil {
		return err
	}
	return nil
}

func validateDescriptor(bp []BitPos, label string) error {
	for _, p := range bp {
		if p.Word < 0 || p.Word >= 16 {
			return fmt.Errorf("config: %s word %d out of range [0, 16)", label, p.Word)
		}
		if p.Bit < 0 || p.Bit >= 32 {
			return fmt.Errorf("config: %s bit %d out of range [0, 32)", label, p.Bit)
		}
	}
	return nil
}

// SamplesConfig controls the size of each Monte-Carlo batch.
type SamplesConfig struct {
	// Workers is W: the number of parallel worker tasks fanned out per
	// (key_word, key_bit) pair.
	Workers int

	// TrialsPerWorker is S: the number of independent trials each worker
	// runs.
	TrialsPerWorker uint64

	// Deterministic, when true, seeds every worker's PRNG from Seed, the
	// target key word and bit, and its worker index instead of a
	// nondeterministic system source. It
	// exists for reproducible tests and is never used in production runs.
	Deterministic bool
	Seed          uint64
}

// DefaultSamplesConfig returns a SamplesConfig with W defaulting to
// max(1, hardware_parallelism - 1) and S defaulting to 2^18.
func DefaultSamplesConfig() SamplesConfig {
	w := runtime.GOMAXPROCS(0) - 1
	if w < 1 {
		w = 1
	}
	return SamplesConfig{
		Workers:         w,
		TrialsPerWorker: DefaultTrialsPerWorker,
	}
}

// TrialsPerBatch returns Workers * TrialsPerWorker, the total number of
// trials run for one (key_word, key_bit) pair.
func (s SamplesConfig) TrialsPerBatch() uint64 {
	return uint64(s.Workers) * s.TrialsPerWorker
}

// TotalSamples returns the number of trials a full search over keyBitCount
// key bits will run: TrialsPerBatch * keyBitCount, saturating at
// math.MaxUint64 rather than wrapping if the product overflows a uint64.
// Saturating in uint64 reports the same "effectively unbounded" answer for
// the reporting-only figure this is, without pulling in math/big for a
// value nothing downstream ever computes with.
func (s SamplesConfig) TotalSamples(keyBitCount int) uint64 {
	batch := s.TrialsPerBatch()
	n := uint64(keyBitCount) //nolint:gosec // keyBitCount is 128 or 256
	if n == 0 || batch == 0 {
		return 0
	}
	if batch > math.MaxUint64/n {
		return math.MaxUint64
	}
	return batch * n
}

// Validate reports an error if Workers or TrialsPerWorker is non-positive.
func (s SamplesConfig) Validate() error {
	if s.Workers < 1 {
		return errors.New("config: workers must be >= 1")
	}
	if s.TrialsPerWorker < 1 {
		return errors.New("config: trials per worker must be >= 1")
	}
	return nil
}

// PNBConfig is the neutrality threshold and the set of key-bit indices to
// skip entirely.
type PNBConfig struct {
	// Threshold is tau: a bit is a PNB iff |bias| >= Threshold and
	// |bias| > 0.
	Threshold float64

	// Skip is the sorted set of global key-bit indices to omit from the
	// search entirely.
	Skip []int
}

// NormalizeThreshold replaces an out-of-range or NaN threshold with
// DefaultThreshold and reports whether it did so: an out-of-range
// threshold warns and falls back to 0.35 rather than refusing to start. A
// threshold argument that does not parse as a number never reaches this
// function; the command rejects it and exits with an error.
func NormalizeThreshold(t float64) (value float64, usedDefault bool) {
	if math.IsNaN(t) || t < 0.0 || t > 1.0 {
		return DefaultThreshold, true
	}
	return t, false
}

// SkipSet returns a sorted, deduplicated copy of p.Skip suitable for
// binary-search membership tests.
func (p PNBConfig) SkipSet() []int {
	out := slices.Clone(p.Skip)
	sort.Ints(out)
	return slices.Compact(out)
}

// Skipped reports whether idx is present in the sorted skip set produced
// by SkipSet.
func Skipped(sorted []int, idx int) bool {
	_, found := slices.BinarySearch(sorted, idx)
	return found
}
