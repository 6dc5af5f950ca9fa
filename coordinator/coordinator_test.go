package coordinator_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/dlcrypto/salsapnb/config"
	"github.com/dlcrypto/salsapnb/coordinator"
)

func testCipher() config.CipherConfig {
	return config.CipherConfig{Name: "salsa", KeySize: 256, TotalRounds: 4, NonInvertingTail: false}
}

func TestSearchClassifiesZeroDifferenceAsAllPNB(t *testing.T) {
	// A zero ID makes every trial match deterministically (bias = 1 for
	// every key bit), so every bit that isn't skipped should land in PNBs.
	cipher := testCipher()
	diff := config.DiffConfig{FwdRounds: 2, Mask: []config.BitPos{{Word: 4, Bit: 7}}}
	samples := config.SamplesConfig{Workers: 2, TrialsPerWorker: 8, Deterministic: true, Seed: 1}
	pnb := config.PNBConfig{Threshold: 0.35}

	var progress atomic.Uint64
	results, err := coordinator.Search(context.Background(), cipher, diff, samples, pnb, &progress)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results.NonPNBs) != 0 {
		t.Errorf("expected no non-PNBs with a zero input difference, got %d", len(results.NonPNBs))
	}
	if got, want := len(results.PNBs), cipher.KeyBitCount(); got != want {
		t.Errorf("PNB count = %d, want %d", got, want)
	}
	if got, want := progress.Load(), uint64(cipher.KeyBitCount()); got != want {
		t.Errorf("progress = %d, want %d", got, want)
	}
}

func TestSearchHonorsSkipList(t *testing.T) {
	cipher := testCipher()
	diff := config.DiffConfig{FwdRounds: 2, Mask: []config.BitPos{{Word: 4, Bit: 7}}}
	samples := config.SamplesConfig{Workers: 1, TrialsPerWorker: 4, Deterministic: true, Seed: 2}
	pnb := config.PNBConfig{Threshold: 0.35, Skip: []int{0, 1, 2}}

	results, err := coordinator.Search(context.Background(), cipher, diff, samples, pnb, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	total := len(results.PNBs) + len(results.NonPNBs)
	if want := cipher.KeyBitCount() - 3; total != want {
		t.Errorf("classified %d bits, want %d (256 - 3 skipped)", total, want)
	}
	for _, e := range append(append([]coordinator.BiasEntry{}, results.PNBs...), results.NonPNBs...) {
		if e.Index < 3 {
			t.Errorf("skipped bit %d was classified", e.Index)
		}
	}
}

func TestSearchRejectsInvalidConfig(t *testing.T) {
	cipher := config.CipherConfig{KeySize: 192, TotalRounds: 4}
	_, err := coordinator.Search(context.Background(), cipher, config.DiffConfig{}, config.DefaultSamplesConfig(), config.PNBConfig{}, nil)
	if err == nil {
		t.Error("Search() with an invalid key size should return an error")
	}
}

func TestSearchDeterministicSeedIsReproducible(t *testing.T) {
	cipher := testCipher()
	diff := config.DiffConfig{
		FwdRounds: 2,
		ID:        []config.BitPos{{Word: 7, Bit: 31}},
		Mask:      []config.BitPos{{Word: 4, Bit: 7}},
	}
	samples := config.SamplesConfig{Workers: 2, TrialsPerWorker: 32, Deterministic: true, Seed: 42}
	pnb := config.PNBConfig{Threshold: 0.35}

	r1, err := coordinator.Search(context.Background(), cipher, diff, samples, pnb, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	r2, err := coordinator.Search(context.Background(), cipher, diff, samples, pnb, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(r1.PNBs) != len(r2.PNBs) || len(r1.NonPNBs) != len(r2.NonPNBs) {
		t.Fatalf("deterministic seed produced different classifications across runs")
	}
	for i := range r1.PNBs {
		if r1.PNBs[i] != r2.PNBs[i] {
			t.Errorf("PNB[%d] = %+v, want %+v", i, r2.PNBs[i], r1.PNBs[i])
		}
	}
}

func TestSearchRespectsContextCancellation(t *testing.T) {
	cipher := testCipher()
	diff := config.DiffConfig{FwdRounds: 2, Mask: []config.BitPos{{Word: 4, Bit: 7}}}
	samples := config.SamplesConfig{Workers: 1, TrialsPerWorker: 1, Deterministic: true, Seed: 3}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coordinator.Search(ctx, cipher, diff, samples, config.PNBConfig{}, nil)
	if err == nil {
		t.Error("Search() with an already-cancelled context should return an error")
	}
}

func TestTotalWorkSubtractsSkipCount(t *testing.T) {
	cipher := testCipher()
	pnb := config.PNBConfig{Skip: []int{1, 2, 3}}
	if got, want := coordinator.TotalWork(cipher, pnb), uint64(cipher.KeyBitCount()-3); got != want {
		t.Errorf("TotalWork() = %d, want %d", got, want)
	}
}
