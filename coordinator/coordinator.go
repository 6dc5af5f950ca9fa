// Package coordinator drives the full PNB search: for every key bit not on
// the skip list, it fans a batch of trials out across worker goroutines,
// accumulates the match count, and classifies the bit as a probabilistic
// neutral bit or not against the configured threshold.
package coordinator

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/dlcrypto/salsapnb/config"
	"github.com/dlcrypto/salsapnb/internal/trial"
)

// BiasEntry pairs a global key-bit index with its measured bias.
type BiasEntry struct {
	Index uint16
	Bias  float64
}

// Results is the raw output of a full search, before aggregation: the PNB
// and non-PNB entries in discovery order, one keyword's worth at a time.
type Results struct {
	PNBs    []BiasEntry
	NonPNBs []BiasEntry
}

// Search runs the PNB search over every key bit of cipher not present in
// pnb.Skip, reporting progress (one increment per key bit evaluated;
// skipped bits do not increment it) on progress if non-nil. It returns an
// error if cipher, diff, or samples fail validation, or ctx's error (with
// the results gathered so far) if ctx is done before the search finishes.
func Search(ctx context.Context, cipher config.CipherConfig, diff config.DiffConfig, samples config.SamplesConfig, pnb config.PNBConfig, progress *atomic.Uint64) (Results, error) {
	if err := cipher.Validate(); err != nil {
		return Results{}, err
	}
	if err := diff.Validate(cipher); err != nil {
		return Results{}, err
	}
	if err := samples.Validate(); err != nil {
		return Results{}, err
	}

	skip := pnb.SkipSet()
	threshold, _ := config.NormalizeThreshold(pnb.Threshold)

	var results Results
	results.PNBs = make([]BiasEntry, 0, 256)
	results.NonPNBs = make([]BiasEntry, 0, 256)

	wordSize := 32
	keyWords := cipher.KeyWordCount()

	for word := 0; word < keyWords; word++ {
		for bit := 0; bit < wordSize; bit++ {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			default:
			}

			idx := uint16(word*wordSize + bit) //nolint:gosec // word,bit both < 256

			if config.Skipped(skip, int(idx)) {
				continue
			}

			matches := runBatch(cipher, diff, samples, word, bit)
			bias := 2*float64(matches)/float64(samples.TrialsPerBatch()) - 1

			entry := BiasEntry{Index: idx, Bias: bias}
			if bias != 0 && absf(bias) >= threshold {
				results.PNBs = append(results.PNBs, entry)
			} else {
				results.NonPNBs = append(results.NonPNBs, entry)
			}

			if progress != nil {
				progress.Add(1)
			}
		}
	}

	return results, nil
}

// TotalWork reports the number of (key_word, key_bit) evaluations Search
// will perform for the given cipher and skip set, for progress reporting.
func TotalWork(cipher config.CipherConfig, pnb config.PNBConfig) uint64 {
	total := cipher.KeyBitCount()
	skipped := 0
	for _, idx := range pnb.SkipSet() {
		if idx >= 0 && idx < total {
			skipped++
		}
	}
	return uint64(total - skipped) //nolint:gosec // bounded by key size
}

// runBatch fans samples.Workers goroutines out over samples.TrialsPerWorker
// trials each, all targeting the same (key_word, key_bit), and returns the
// summed match count.
func runBatch(cipher config.CipherConfig, diff config.DiffConfig, samples config.SamplesConfig, keyWord, keyBit int) uint64 {
	kernel := trial.Kernel{
		Cipher:  cipher,
		Diff:    diff,
		KeyWord: keyWord,
		KeyBit:  keyBit,
	}

	partials := make([]uint64, samples.Workers)
	var wg sync.WaitGroup
	for w := range samples.Workers {
		wg.Go(func() {
			rng, err := workerRNG(samples, keyWord, keyBit, w)
			if err != nil {
				// A PRNG the worker can't trust must not be allowed to run:
				// treat its whole batch as zero matches rather than count
				// trials drawn from a predictable, biased stream.
				slog.Default().Error("worker PRNG seed failed, contributing zero matches",
					"key_word", keyWord, "key_bit", keyBit, "worker", w, "err", err)
				return
			}
			var sum uint64
			for t := uint64(0); t < samples.TrialsPerWorker; t++ {
				sum += kernel.Run(rng)
			}
			partials[w] = sum
		})
	}
	wg.Wait()

	var total uint64
	for _, p := range partials {
		total += p
	}
	return total
}

// workerRNG returns the PRNG a single worker goroutine should seed its
// trials from. In deterministic mode the seed is a pure function of
// (base seed, key_word, key_bit, worker index) so repeated searches with
// the same seed reproduce identical bias estimates; otherwise each worker
// draws two fresh seed words from crypto/rand, giving each worker an
// unpredictable, independent, non-cryptographic stream. A non-nil error
// means the OS entropy source is unavailable; the caller must not run
// trials against any fallback seed, since that would count a predictable,
// biased stream into the aggregate as if it were real sampling.
func workerRNG(samples config.SamplesConfig, keyWord, keyBit, worker int) (*rand.Rand, error) {
	if samples.Deterministic {
		mix := samples.Seed ^ uint64(keyWord)<<40 ^ uint64(keyBit)<<24 ^ uint64(worker) //nolint:gosec
		return rand.New(rand.NewPCG(mix, mix^0x9e3779b97f4a7c15)), nil
	}

	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))), nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
