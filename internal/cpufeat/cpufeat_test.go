package cpufeat

import (
	"math/rand"
	"testing"
)

// Every kernel variant must produce byte-identical output for identical
// input. This is a required property, not an assumption.
func TestMFMExtractKernelsEquivalent(t *testing.T) {
	rng := rand.New(rand.NewSource(0x4489))
	for _, size := range []int{0, 1, 3, 4, 5, 7, 64, 513} {
		words := make([]uint16, size)
		for i := range words {
			words[i] = uint16(rng.Intn(1 << 16))
		}
		want := make([]byte, size)
		got := make([]byte, size)
		mfmExtractScalar(words, want)
		mfmExtractWide(words, got)
		for i := range want {
			if want[i] != got[i] {
				t.Fatalf("size %d: kernel divergence at %d: scalar %#x wide %#x (word %#x)",
					size, i, want[i], got[i], words[i])
			}
		}
	}
}

func TestGCRExpandKernelsEquivalent(t *testing.T) {
	codes := make([]uint16, 1024)
	for i := range codes {
		codes[i] = uint16(i)
	}
	want := make([]byte, len(codes))
	got := make([]byte, len(codes))
	gcrExpandScalar(codes, want)
	gcrExpandTable(codes, got)
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("pair %#x: scalar %#x table %#x", i, want[i], got[i])
		}
	}
}

func TestMFMExtractKnownWords(t *testing.T) {
	// 0x44A9 is MFM-encoded 0xA1 with the standard clock; 0x4489 is the sync
	// variant with a missing clock bit. Both carry the same data bits.
	words := []uint16{0x44A9, 0x4489, 0x5555, 0xAAAA}
	out := make([]byte, len(words))
	mfmExtractScalar(words, out)
	if out[0] != 0xA1 || out[1] != 0xA1 {
		t.Fatalf("A1 decode: got %#x %#x", out[0], out[1])
	}
	if out[2] != 0xFF {
		t.Fatalf("all-data word: got %#x", out[2])
	}
	if out[3] != 0x00 {
		t.Fatalf("all-clock word: got %#x", out[3])
	}
}

func TestSelectFallsBackToScalar(t *testing.T) {
	k := Select(Features{})
	if k.Name() != "scalar" {
		t.Fatalf("empty feature set selected %q", k.Name())
	}
	k = Select(Features{AVX2: true})
	if k.Name() != "avx2" {
		t.Fatalf("AVX2 feature set selected %q", k.Name())
	}
}

func TestDetectIsStable(t *testing.T) {
	a := Detect()
	b := Detect()
	if a != b {
		t.Fatalf("detection not cached: %+v vs %+v", a, b)
	}
}
