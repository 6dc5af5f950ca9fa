package config_test

import (
	"testing"

	"github.com/dlcrypto/salsapnb/config"
	fuzz "github.com/trailofbits/go-fuzz-utils"
)

// FuzzDiffConfigValidate feeds random (word, bit) pairs and round values
// into DiffConfig.Validate, checking that it never panics and that it
// rejects everything Validate's own bounds checks say it should.
func FuzzDiffConfigValidate(f *testing.F) {
	f.Add([]byte{7, 31, 4, 7, 0, 4})
	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}

		cipher := config.CipherConfig{KeySize: 256, TotalRounds: 4}

		idWord, err := tp.GetByte()
		if err != nil {
			t.Skip(err)
		}
		idBit, err := tp.GetByte()
		if err != nil {
			t.Skip(err)
		}
		maskWord, err := tp.GetByte()
		if err != nil {
			t.Skip(err)
		}
		maskBit, err := tp.GetByte()
		if err != nil {
			t.Skip(err)
		}
		fwdRounds, err := tp.GetByte()
		if err != nil {
			t.Skip(err)
		}

		d := config.DiffConfig{
			FwdRounds: config.Rounds(fwdRounds) / 2,
			ID:        []config.BitPos{{Word: int(idWord), Bit: int(idBit)}},
			Mask:      []config.BitPos{{Word: int(maskWord), Bit: int(maskBit)}},
		}

		err = d.Validate(cipher)

		outOfRange := idWord >= 16 || idBit >= 32 || maskWord >= 16 || maskBit >= 32 ||
			float64(d.FwdRounds) > float64(cipher.TotalRounds)
		if outOfRange && err == nil {
			t.Fatalf("Validate() accepted out-of-range descriptor %+v", d)
		}
		if !outOfRange && err != nil {
			t.Fatalf("Validate() rejected in-range descriptor %+v: %v", d, err)
		}
	})
}

// FuzzNormalizeThreshold checks that NormalizeThreshold always returns a
// value in [0, 1] and only reports usedDefault for genuinely out-of-range
// or NaN input.
func FuzzNormalizeThreshold(f *testing.F) {
	f.Add(0.35)
	f.Add(-1.0)
	f.Add(2.0)
	f.Fuzz(func(t *testing.T, raw float64) {
		v, usedDefault := config.NormalizeThreshold(raw)
		if v < 0.0 || v > 1.0 {
			t.Fatalf("NormalizeThreshold(%v) = %v, out of [0,1]", raw, v)
		}
		inRange := raw >= 0.0 && raw <= 1.0
		if inRange && usedDefault {
			t.Fatalf("NormalizeThreshold(%v) defaulted an in-range value", raw)
		}
		if !inRange && !usedDefault {
			t.Fatalf("NormalizeThreshold(%v) did not default an out-of-range value", raw)
		}
	})
}
