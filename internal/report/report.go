// Package report renders a completed PNB search into a plain-text report
// suitable for a log file, and provides an atomic file-write helper and a
// runtime capability banner.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/dlcrypto/salsapnb/aggregate"
	"github.com/dlcrypto/salsapnb/config"
)

// AVX2Available reports whether the host CPU supports AVX2, which the
// generic scalar Salsa core in package salsa does not exploit today but
// which the report banner surfaces for anyone deciding whether a future
// SIMD backend is worth writing, following the common pattern of a single
// package-level capability flag read once at startup.
var AVX2Available = cpu.X86.HasAVX2 //nolint:gochecknoglobals // read-only, checked once

// Banner renders the fixed-width configuration summary printed before a
// search starts: cipher, differential-linear descriptor, sample sizes, and
// detected host capabilities.
func Banner(cipher config.CipherConfig, diff config.DiffConfig, samples config.SamplesConfig, pnb config.PNBConfig) string {
	var b strings.Builder
	field := func(label string, value any) {
		fmt.Fprintf(&b, "%-35s : %v\n", label, value)
	}

	b.WriteString(strings.Repeat("-", 73) + "\n")
	field("Cipher", cipher.Name)
	if cipher.Comment != "" {
		field("Comment", cipher.Comment)
	}
	field("Key size", cipher.KeySize)
	field("Total rounds", float64(cipher.TotalRounds))
	field("Forward (distinguishing) round", float64(diff.FwdRounds))
	field("Input difference", formatBits(diff.ID))
	field("Output mask", formatBits(diff.Mask))
	field("Workers", samples.Workers)
	field("Trials per worker", samples.TrialsPerWorker)
	field("Trials per key bit", samples.TrialsPerBatch())
	field("Total trials (full search)", samples.TotalSamples(cipher.KeyBitCount()))
	field("Neutrality threshold", pnb.Threshold)
	field("Skipped key bits", len(pnb.SkipSet()))
	field("AVX2 available", AVX2Available)
	field("Go toolchain", runtime.Version())
	field("GOARCH/GOOS", runtime.GOARCH+"/"+runtime.GOOS)
	b.WriteString(strings.Repeat("-", 73) + "\n")
	return b.String()
}

func formatBits(bp []config.BitPos) string {
	if len(bp) == 0 {
		return "(none)"
	}
	parts := make([]string, len(bp))
	for i, p := range bp {
		parts[i] = fmt.Sprintf("word %d bit %d", p.Word, p.Bit)
	}
	return strings.Join(parts, ", ")
}

// Options selects which optional sections Render includes.
type Options struct {
	// ShowSegments includes the per-keyword PNB/non-PNB segment sections,
	// the per-keyword bias table, the P/S map, and the -log2(|bias|) table.
	ShowSegments bool
}

// Render produces the full textual report for a completed search: counts,
// the PNB and non-PNB index lists, and (when requested) the per-keyword
// segment breakdown, per-keyword bias table, P/S map, and -log2(|bias|)
// table.
func Render(cipher config.CipherConfig, summary aggregate.Summary, opts Options) string {
	var b strings.Builder

	countPNB, countNonPNB := len(summary.IndexSorted), len(summary.NonPNBIndexSorted)

	b.WriteString(strings.Repeat("-", 73) + "\n")
	fmt.Fprintf(&b, "%-35s : %d\n", "PNB count", countPNB)
	fmt.Fprintf(&b, "%-35s : %d\n", "non-PNB count", countNonPNB)
	b.WriteString(strings.Repeat("-", 73) + "\n\n")

	fmt.Fprintf(&b, "%d PNBs in set (sorted by index)\n", countPNB)
	writeBracedList(&b, summary.IndexSorted)
	b.WriteString("\n")

	fmt.Fprintf(&b, "%d PNBs in set (sorted by decreasing order of bias)\n", countPNB)
	writeBracedList(&b, summary.BiasSorted)
	b.WriteString("\n")

	fmt.Fprintf(&b, "%d non-PNBs in set (sorted by index)\n", countNonPNB)
	writeBracedList(&b, summary.NonPNBIndexSorted)
	b.WriteString("\n")

	if !opts.ShowSegments {
		return b.String()
	}

	wordSize := 32
	b.WriteString(strings.Repeat("-", 78) + "\n")
	b.WriteString("Per-keyword PNB segments:\n")
	for _, line := range aggregate.Segments(summary.IndexSorted, wordSize) {
		b.WriteString(line + "\n")
	}

	b.WriteString(strings.Repeat("-", 78) + "\n")
	b.WriteString("Per-keyword non-PNB segments:\n")
	for _, line := range aggregate.Segments(summary.NonPNBIndexSorted, wordSize) {
		b.WriteString(line + "\n")
	}

	b.WriteString(strings.Repeat("-", 78) + "\n")
	b.WriteString("Per-keyword bias (bit 0 first):\n")
	for start := 0; start < len(summary.BiasPerBit); start += wordSize {
		end := min(start+wordSize, len(summary.BiasPerBit))
		fmt.Fprintf(&b, "Keyword %d : ", start/wordSize)
		writeFloatList(&b, summary.BiasPerBit[start:end])
	}

	b.WriteString(strings.Repeat("-", 78) + "\n")
	fmt.Fprintf(&b, "Per-keyword P/S map (bit %d .. 0):\n", wordSize-1)
	for _, line := range aggregate.PSMap(summary.IndexSorted, summary.NonPNBIndexSorted, cipher.KeyBitCount(), wordSize) {
		b.WriteString(line + "\n")
	}

	b.WriteString(strings.Repeat("-", 78) + "\n")
	fmt.Fprintf(&b, "Biases as -log2(|bias|) for ALL key bits (0 to %d)\n", cipher.KeyBitCount()-1)
	b.WriteString("Note: value = -log2(|bias|); larger value = weaker bias.\n")
	writeFloatList(&b, aggregate.NegLog2Biases(summary.BiasPerBit))

	return b.String()
}

func writeBracedList[T any](b *strings.Builder, v []T) {
	b.WriteString("{")
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%v", x)
	}
	b.WriteString("}\n")
}

func writeFloatList(b *strings.Builder, v []float64) {
	b.WriteString("{")
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%.2f", x)
	}
	b.WriteString("}\n")
}

// LogFilename constructs a descriptive log filename from the cipher and
// differential-linear descriptor, following the reference
// implementation's makeLogFilename convention.
func LogFilename(dir string, cipher config.CipherConfig, diff config.DiffConfig, threshold float64) string {
	maskStr := "nomask"
	if len(diff.Mask) > 0 {
		maskStr = fmt.Sprintf("mask%dw%db", len(diff.Mask), diff.Mask[0].Word)
	}
	name := fmt.Sprintf("%s_r%.1f_rf%.1f_thr%.2f_%s_%s.log",
		strings.ToLower(cipher.Name), float64(cipher.TotalRounds), float64(diff.FwdRounds),
		threshold, maskStr, time.Now().UTC().Format("20060102T150405Z"))
	return filepath.Join(dir, name)
}

// WriteFile writes data to path atomically: it writes to a temporary file
// in the same directory, then renames it into place, so a reader never
// observes a partially written report.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("report: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best-effort cleanup if rename fails

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("report: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("report: rename into place: %w", err)
	}
	return nil
}
