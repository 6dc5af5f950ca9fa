package main

import (
	"testing"

	fuzz "github.com/trailofbits/go-fuzz-utils"
)

// FuzzParseBits checks that parseBits never panics on arbitrary
// "word:bit,..." text, and that every BitPos it returns on success can be
// read.
func FuzzParseBits(f *testing.F) {
	f.Add("7:31, 4:7")
	f.Add("")
	f.Add("7")
	f.Add("x:y")
	f.Fuzz(func(t *testing.T, s string) {
		bits, err := parseBits(s)
		if err != nil {
			return
		}
		for _, b := range bits {
			_ = b.Word
			_ = b.Bit
		}
	})
}

// FuzzParsePositionalArgs feeds random byte strings through go-fuzz-utils
// to build positional-argument slices of varying length and content,
// checking that parsePositionalArgs never panics, that an empty slice
// succeeds with no threshold and both switches off, and that any other
// slice it accepts yields a non-nil threshold.
func FuzzParsePositionalArgs(f *testing.F) {
	f.Add([]byte("0.4\x00log\x00seg"))
	f.Add([]byte{})
	f.Add([]byte("bogus"))
	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}

		n, err := tp.GetByte()
		if err != nil {
			t.Skip(err)
		}
		count := int(n % 4)

		args := make([]string, 0, count)
		for i := 0; i < count; i++ {
			tok, err := tp.GetString()
			if err != nil {
				t.Skip(err)
			}
			args = append(args, tok)
		}

		threshold, logEnabled, segEnabled, err := parsePositionalArgs(args)
		if err != nil {
			return
		}
		if len(args) == 0 {
			if threshold != nil || logEnabled || segEnabled {
				t.Fatalf("parsePositionalArgs(nil) succeeded with non-zero result: %v %v %v", threshold, logEnabled, segEnabled)
			}
			return
		}
		if threshold == nil {
			t.Fatalf("parsePositionalArgs(%v) returned nil threshold with no error", args)
		}
	})
}
