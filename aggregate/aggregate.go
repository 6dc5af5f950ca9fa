// Package aggregate turns a coordinator.Results into the sorted index
// lists, per-keyword bit segments, P/S map, and -log2(|bias|) table the
// report renderer prints.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dlcrypto/salsapnb/config"
	"github.com/dlcrypto/salsapnb/coordinator"
)

// Summary is the fully sorted, deduplicated view of a search's results.
type Summary struct {
	// IndexSorted and BiasSorted are the PNB set's global bit indices, the
	// first ascending by index, the second descending by |bias|.
	IndexSorted []uint16
	BiasSorted  []uint16

	// NonPNBIndexSorted is the non-PNB set's global bit indices, ascending.
	NonPNBIndexSorted []uint16

	// BiasPerBit holds the measured bias for every key bit (0 for bits
	// that were skipped and never evaluated).
	BiasPerBit []float64
}

// Build sorts and deduplicates a coordinator.Results by index. Entries
// sharing an index collapse to one; which of them is kept is not defined.
func Build(r coordinator.Results, cipher config.CipherConfig) Summary {
	pnbs := dedupByIndex(r.PNBs)
	nonpnbs := dedupByIndex(r.NonPNBs)

	s := Summary{
		IndexSorted:       indicesOf(pnbs),
		BiasSorted:        biasSortedIndices(pnbs),
		NonPNBIndexSorted: indicesOf(nonpnbs),
		BiasPerBit:        make([]float64, cipher.KeyBitCount()),
	}
	for _, e := range pnbs {
		s.BiasPerBit[e.Index] = e.Bias
	}
	for _, e := range nonpnbs {
		s.BiasPerBit[e.Index] = e.Bias
	}
	return s
}

func dedupByIndex(entries []coordinator.BiasEntry) []coordinator.BiasEntry {
	sorted := append([]coordinator.BiasEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	out := sorted[:0]
	for i, e := range sorted {
		if i == 0 || e.Index != out[len(out)-1].Index {
			out = append(out, e)
		}
	}
	return out
}

func indicesOf(entries []coordinator.BiasEntry) []uint16 {
	out := make([]uint16, len(entries))
	for i, e := range entries {
		out[i] = e.Index
	}
	return out
}

func biasSortedIndices(entries []coordinator.BiasEntry) []uint16 {
	sorted := append([]coordinator.BiasEntry(nil), entries...)
	// entries arrives index-ascending (from dedupByIndex); a stable sort
	// keeps that as the tie-break order for equal |bias|, per the
	// sort-by-index-then-by-bias tie-break rule.
	sort.SliceStable(sorted, func(i, j int) bool { return math.Abs(sorted[i].Bias) > math.Abs(sorted[j].Bias) })
	return indicesOf(sorted)
}

// Segments renders one line per keyword of the form
// "Keyword 4 (128-159) : [31:28], [22], [20:16], [3:1]", compressing
// consecutive descending bit indices into ranges.
func Segments(sortedByIndex []uint16, wordSizeBits int) []string {
	if len(sortedByIndex) == 0 {
		return nil
	}

	maxIdx := int(sortedByIndex[len(sortedByIndex)-1])
	numWords := maxIdx/wordSizeBits + 1

	var lines []string
	for w := 0; w < numWords; w++ {
		var bitsInWord []int
		for _, idx := range sortedByIndex {
			if int(idx)/wordSizeBits == w {
				bitsInWord = append(bitsInWord, int(idx)%wordSizeBits)
			}
		}
		if len(bitsInWord) == 0 {
			continue
		}
		sort.Sort(sort.Reverse(sort.IntSlice(bitsInWord)))

		start, end := w*wordSizeBits, (w+1)*wordSizeBits-1
		label := fmt.Sprintf("Keyword %d (%d-%d)", w, start, end)
		lines = append(lines, fmt.Sprintf("%-22s : %s", label, compressSegments(bitsInWord)))
	}
	return lines
}

// compressSegments takes bit indices in strictly descending order and joins
// runs of consecutive values into "[hi:lo]" (or "[bit]" for singletons).
func compressSegments(descending []int) string {
	if len(descending) == 0 {
		return ""
	}

	var parts []string
	segStart, segEnd := descending[0], descending[0]
	flush := func(start, end int) {
		if start == end {
			parts = append(parts, fmt.Sprintf("[%d]", start))
		} else {
			parts = append(parts, fmt.Sprintf("[%d:%d]", start, end))
		}
	}
	for _, b := range descending[1:] {
		if b == segEnd-1 {
			segEnd = b
			continue
		}
		flush(segStart, segEnd)
		segStart, segEnd = b, b
	}
	flush(segStart, segEnd)
	return strings.Join(parts, ", ")
}

// PSMap renders one line per keyword of 'p' (PNB), 's' (non-PNB), or '.'
// (skipped/unclassified) characters, most significant bit first.
func PSMap(pnbSortedByIndex, nonPNBSortedByIndex []uint16, keyBits, wordSizeBits int) []string {
	flags := make([]byte, keyBits)
	for i := range flags {
		flags[i] = '.'
	}
	for _, idx := range nonPNBSortedByIndex {
		if int(idx) < keyBits {
			flags[idx] = 's'
		}
	}
	for _, idx := range pnbSortedByIndex {
		if int(idx) < keyBits {
			flags[idx] = 'p'
		}
	}

	numWords := (keyBits + wordSizeBits - 1) / wordSizeBits
	lines := make([]string, 0, numWords)
	for w := 0; w < numWords; w++ {
		start := w * wordSizeBits
		if start >= keyBits {
			break
		}
		end := start + wordSizeBits - 1
		if end >= keyBits {
			end = keyBits - 1
		}

		line := make([]byte, 0, end-start+1)
		for b := end; b >= start; b-- {
			line = append(line, flags[b])
		}

		label := fmt.Sprintf("Keyword %d (%d-%d)", w, start, end)
		lines = append(lines, fmt.Sprintf("%-22s : %s", label, line))
	}
	return lines
}

// NegLog2Biases converts every entry of biasPerBit into -log2(|bias|):
// +Inf for a bias of exactly zero (infinite uncertainty), 0 for a perfect
// +-1 bias, and the usual value otherwise.
func NegLog2Biases(biasPerBit []float64) []float64 {
	out := make([]float64, len(biasPerBit))
	for i, b := range biasPerBit {
		ab := math.Abs(b)
		switch ab {
		case 0.0:
			out[i] = math.Inf(1)
		case 1.0:
			out[i] = 0.0
		default:
			out[i] = -math.Log2(ab)
		}
	}
	return out
}
