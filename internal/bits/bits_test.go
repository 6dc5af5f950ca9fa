package bits_test

import (
	"testing"

	"github.com/dlcrypto/salsapnb/internal/bits"
)

func TestRotateLeft32RoundTrip(t *testing.T) {
	for n := 0; n <= 32; n++ {
		w := uint32(0x9e3779b9)
		if got := bits.RotateLeft32(bits.RotateLeft32(w, n), 32-n); got != w {
			t.Errorf("RotateLeft32(RotateLeft32(w, %d), %d) = %#x, want %#x", n, 32-n, got, w)
		}
	}
}

func TestToggleBitIsInvolution(t *testing.T) {
	w := uint32(0xdeadbeef)
	for b := 0; b < 32; b++ {
		if got := bits.ToggleBit(bits.ToggleBit(w, b), b); got != w {
			t.Errorf("ToggleBit(ToggleBit(w, %d), %d) = %#x, want %#x", b, b, got, w)
		}
	}
}

func TestBit(t *testing.T) {
	w := uint32(0b1010)
	if bits.Bit(w, 1) != 1 {
		t.Error("bit 1 of 0b1010 should be 1")
	}
	if bits.Bit(w, 0) != 0 {
		t.Error("bit 0 of 0b1010 should be 0")
	}
}

func TestSetUnsetBit(t *testing.T) {
	w := uint32(0)
	w = bits.SetBit(w, 5)
	if bits.Bit(w, 5) != 1 {
		t.Error("SetBit(0, 5) should set bit 5")
	}
	w = bits.UnsetBit(w, 5)
	if bits.Bit(w, 5) != 0 {
		t.Error("UnsetBit should clear bit 5")
	}
}
