// Command pnbsearch runs a differential-linear PNB search against a
// reduced-round Salsa20 configuration and prints (and optionally logs) the
// resulting PNB / non-PNB classification.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dlcrypto/salsapnb/aggregate"
	"github.com/dlcrypto/salsapnb/config"
	"github.com/dlcrypto/salsapnb/coordinator"
	"github.com/dlcrypto/salsapnb/internal/report"
)

func main() {
	log := slog.New(slog.Default().Handler())

	threshold := flag.Float64("threshold", config.DefaultThreshold, "neutrality threshold tau in [0,1]")
	keySize := flag.Int("keysize", 256, "key size in bits: 128 or 256")
	totalRounds := flag.Float64("rounds", 7, "total cipher rounds R")
	fwdRounds := flag.Float64("fwdrounds", 5, "distinguishing round R_f (forward parity sample point)")
	nonInverting := flag.Bool("last-round-modified", true, "use the non-inverting last-round-modified tail")
	id := flag.String("id", "7:31", "input difference as word:bit[,word:bit...]")
	mask := flag.String("mask", "4:7", "output mask as word:bit[,word:bit...]")
	workers := flag.Int("workers", 0, "worker goroutines per key bit (0 = GOMAXPROCS-1)")
	trials := flag.Uint64("trials", config.DefaultTrialsPerWorker, "trials per worker per key bit")
	skip := flag.String("skip", "", "comma-separated global key-bit indices to skip")
	logFile := flag.Bool("log", false, "write a report file in addition to stdout")
	segments := flag.Bool("seg", false, "include per-keyword segment and P/S map sections")
	deterministic := flag.Bool("deterministic", false, "seed workers deterministically from -seed (testing only)")
	seed := flag.Uint64("seed", 0, "seed used when -deterministic is set")
	outDir := flag.String("outdir", "logs_pnb", "directory for -log report files")
	flag.Parse()

	// Accept the original tool's positional calling convention,
	// "pnbsearch <threshold> [log] [seg]", alongside the named flags above.
	posThreshold, posLog, posSeg, err := parsePositionalArgs(flag.Args())
	if err != nil {
		log.Error("invalid positional arguments", "err", err)
		os.Exit(1)
	}
	thresholdVal := *threshold
	if posThreshold != nil {
		thresholdVal = *posThreshold
	}
	logEnabled := *logFile || posLog
	segEnabled := *segments || posSeg

	cipher := config.CipherConfig{
		Name:             "salsa",
		Mode:             "PNBsearch",
		Comment:          "last round modified",
		KeySize:          *keySize,
		TotalRounds:      config.Rounds(*totalRounds),
		NonInvertingTail: *nonInverting,
	}
	if err := cipher.Validate(); err != nil {
		log.Error("invalid cipher configuration", "err", err)
		os.Exit(1)
	}

	idBits, err := parseBits(*id)
	if err != nil {
		log.Error("invalid -id", "err", err)
		os.Exit(1)
	}
	maskBits, err := parseBits(*mask)
	if err != nil {
		log.Error("invalid -mask", "err", err)
		os.Exit(1)
	}
	diff := config.DiffConfig{
		FwdRounds: config.Rounds(*fwdRounds),
		ID:        idBits,
		Mask:      maskBits,
	}
	if err := diff.Validate(cipher); err != nil {
		log.Error("invalid differential-linear descriptor", "err", err)
		os.Exit(1)
	}

	samples := config.DefaultSamplesConfig()
	samples.TrialsPerWorker = *trials
	if *workers > 0 {
		samples.Workers = *workers
	}
	samples.Deterministic = *deterministic
	samples.Seed = *seed
	if err := samples.Validate(); err != nil {
		log.Error("invalid sample configuration", "err", err)
		os.Exit(1)
	}

	skipIdx, err := parseInts(*skip)
	if err != nil {
		log.Error("invalid -skip", "err", err)
		os.Exit(1)
	}
	normalizedThreshold, usedDefault := config.NormalizeThreshold(thresholdVal)
	if usedDefault {
		log.Warn("neutrality threshold out of range, using default", "default", config.DefaultThreshold)
	}
	pnb := config.PNBConfig{Threshold: normalizedThreshold, Skip: skipIdx}

	fmt.Print(report.Banner(cipher, diff, samples, pnb))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var progress atomic.Uint64
	total := coordinator.TotalWork(cipher, pnb)
	done := make(chan struct{})
	go reportProgress(&progress, total, done)

	start := time.Now()
	results, err := coordinator.Search(ctx, cipher, diff, samples, pnb, &progress)
	close(done)
	if err != nil {
		log.Error("search failed", "err", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	summary := aggregate.Build(results, cipher)
	fmt.Print(report.Render(cipher, summary, report.Options{ShowSegments: segEnabled}))

	log.Info("search complete",
		"elapsed", elapsed,
		"pnb_count", len(summary.IndexSorted),
		"nonpnb_count", len(summary.NonPNBIndexSorted),
	)

	if logEnabled {
		// The log file always carries the full report (segments, P/S map,
		// -log2 table) regardless of -seg, which only controls whether
		// those sections also print to the console.
		// A failed write is logged but does not change the exit status: the
		// classification itself completed.
		fileReport := report.Banner(cipher, diff, samples, pnb) +
			report.Render(cipher, summary, report.Options{ShowSegments: true})
		path := report.LogFilename(*outDir, cipher, diff, pnb.Threshold)
		if err := report.WriteFile(path, []byte(fileReport)); err != nil {
			log.Error("failed to write report", "err", err)
		} else {
			log.Info("report written", "path", path)
		}
	}
}

// reportProgress logs a periodic progress line until done is closed, in
// place of a terminal spinner, so a non-interactive run still surfaces
// how far along a long search is.
func reportProgress(progress *atomic.Uint64, total uint64, done <-chan struct{}) {
	if total == 0 {
		return
	}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	log := slog.New(slog.Default().Handler())
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			cur := progress.Load()
			pct := 100 * float64(cur) / float64(total)
			log.Info("searching", "done", cur, "total", total, "percent", fmt.Sprintf("%.1f", pct))
		}
	}
}

// parsePositionalArgs parses the original tool's calling convention,
// "<threshold> [log] [seg]", from the non-flag arguments left after
// flag.Parse. threshold is nil if no positional arguments were given.
func parsePositionalArgs(args []string) (threshold *float64, logEnabled, segEnabled bool, err error) {
	if len(args) == 0 {
		return nil, false, false, nil
	}

	t, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, false, false, fmt.Errorf("positional threshold %q: %w", args[0], err)
	}

	for _, tok := range args[1:] {
		switch tok {
		case "log", "1":
			logEnabled = true
		case "seg":
			segEnabled = true
		default:
			return nil, false, false, fmt.Errorf("unrecognized positional argument %q", tok)
		}
	}
	return &t, logEnabled, segEnabled, nil
}

// parseBits parses a "word:bit,word:bit,..." descriptor into BitPos values.
func parseBits(s string) ([]config.BitPos, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]config.BitPos, 0, len(parts))
	for _, p := range parts {
		wb := strings.SplitN(strings.TrimSpace(p), ":", 2)
		if len(wb) != 2 {
			return nil, fmt.Errorf("bit descriptor %q must be word:bit", p)
		}
		word, err := strconv.Atoi(wb[0])
		if err != nil {
			return nil, fmt.Errorf("bit descriptor %q: %w", p, err)
		}
		bit, err := strconv.Atoi(wb[1])
		if err != nil {
			return nil, fmt.Errorf("bit descriptor %q: %w", p, err)
		}
		out = append(out, config.BitPos{Word: word, Bit: bit})
	}
	return out, nil
}

// parseInts parses a comma-separated list of integers, ignoring blank
// entries so a trailing comma or empty flag value is harmless.
func parseInts(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
