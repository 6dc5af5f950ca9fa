package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dlcrypto/salsapnb/aggregate"
	"github.com/dlcrypto/salsapnb/config"
	"github.com/dlcrypto/salsapnb/internal/report"
)

func testCipher() config.CipherConfig {
	return config.CipherConfig{Name: "salsa", KeySize: 256, TotalRounds: 4}
}

func TestBannerIncludesConfigValues(t *testing.T) {
	cipher := testCipher()
	diff := config.DiffConfig{FwdRounds: 2, Mask: []config.BitPos{{Word: 4, Bit: 7}}}
	samples := config.SamplesConfig{Workers: 4, TrialsPerWorker: 1 << 10}
	pnb := config.PNBConfig{Threshold: 0.35}

	out := report.Banner(cipher, diff, samples, pnb)

	for _, want := range []string{"salsa", "256", "0.35", "Go toolchain"} {
		if !strings.Contains(out, want) {
			t.Errorf("Banner() missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBasicCounts(t *testing.T) {
	summary := aggregate.Summary{
		IndexSorted:       []uint16{1, 5},
		BiasSorted:        []uint16{5, 1},
		NonPNBIndexSorted: []uint16{2},
		BiasPerBit:        make([]float64, 256),
	}
	out := report.Render(testCipher(), summary, report.Options{})
	if !strings.Contains(out, "PNB count") {
		t.Errorf("Render() missing PNB count line:\n%s", out)
	}
	if !strings.Contains(out, "{1, 5}") {
		t.Errorf("Render() missing index-sorted braced list:\n%s", out)
	}
	if !strings.Contains(out, "{5, 1}") {
		t.Errorf("Render() missing bias-sorted braced list:\n%s", out)
	}
}

func TestRenderWithSegments(t *testing.T) {
	summary := aggregate.Summary{
		IndexSorted:       []uint16{28, 29, 30, 31},
		NonPNBIndexSorted: []uint16{0},
		BiasPerBit:        make([]float64, 256),
	}
	out := report.Render(testCipher(), summary, report.Options{ShowSegments: true})
	if !strings.Contains(out, "[31:28]") {
		t.Errorf("Render() with segments missing compressed range:\n%s", out)
	}
	if !strings.Contains(out, "P/S map") {
		t.Errorf("Render() with segments missing P/S map section:\n%s", out)
	}
}

func TestWriteFileIsAtomicAndReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.log")

	if err := report.WriteFile(path, []byte("hello")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("ReadFile() = %q, want %q", got, "hello")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".report-") {
			t.Errorf("temp file %q was not cleaned up", e.Name())
		}
	}
}

func TestLogFilenameIncludesCipherAndRounds(t *testing.T) {
	cipher := testCipher()
	diff := config.DiffConfig{FwdRounds: 2, Mask: []config.BitPos{{Word: 4, Bit: 7}}}
	name := report.LogFilename(t.TempDir(), cipher, diff, 0.35)
	if !strings.Contains(name, "salsa") {
		t.Errorf("LogFilename() = %q, want it to contain the cipher name", name)
	}
	if !strings.HasSuffix(name, ".log") {
		t.Errorf("LogFilename() = %q, want a .log suffix", name)
	}
}
