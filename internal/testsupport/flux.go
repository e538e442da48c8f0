// Package testsupport synthesizes flux captures for tests: MFM bit encoding,
// flux delta generation at arbitrary clock rates, and controlled corruption.
package testsupport

import "math/rand"

// SyncA1 is the IBM MFM record separator: 0xA1 with a missing clock bit.
const SyncA1 = 0x4489

// MFMEncodeBits expands data bytes to interleaved clock/data bits using the
// standard MFM rule: clock = NOT(previous data bit OR current data bit).
// lastBit seeds the rule for the first cell.
func MFMEncodeBits(data []byte, lastBit byte) []byte {
	bits := make([]byte, 0, len(data)*16)
	prev := lastBit & 1
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			d := byte(b>>uint(i)) & 1
			var clock byte
			if prev == 0 && d == 0 {
				clock = 1
			}
			bits = append(bits, clock, d)
			prev = d
		}
	}
	return bits
}

// WordBits expands a 16-bit raw pattern (already clock-interleaved, e.g. a
// sync word) into bit-per-entry form, MSB first.
func WordBits(word uint16) []byte {
	bits := make([]byte, 16)
	for i := 0; i < 16; i++ {
		bits[i] = byte(word>>uint(15-i)) & 1
	}
	return bits
}

// SyncA1A1A1Bits returns the bit expansion of three consecutive 0x4489 sync
// words.
func SyncA1A1A1Bits() []byte {
	var bits []byte
	for i := 0; i < 3; i++ {
		bits = append(bits, WordBits(SyncA1)...)
	}
	return bits
}

// FluxFromBits converts a bit sequence into flux timing deltas at the given
// cell time. Every 1 emits a transition; preceding 0s stretch the delta.
// Leading zeros before the first transition are dropped, matching real
// captures, which only observe transitions.
func FluxFromBits(bits []byte, cellTicks int32) []int32 {
	var deltas []int32
	cells := int32(0)
	for _, b := range bits {
		cells++
		if b != 0 {
			deltas = append(deltas, cells*cellTicks)
			cells = 0
		}
	}
	return deltas
}

// Jitter returns a copy of deltas with deterministic pseudo-random timing
// noise of up to amplitude ticks in either direction.
func Jitter(deltas []int32, amplitude int32, seed int64) []int32 {
	if amplitude <= 0 {
		out := make([]int32, len(deltas))
		copy(out, deltas)
		return out
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]int32, len(deltas))
	for i, d := range deltas {
		out[i] = d + rng.Int31n(2*amplitude+1) - amplitude
	}
	return out
}

// FlipBit toggles the given bit (MSB-first across the buffer) in place.
func FlipBit(data []byte, bit int) {
	if bit < 0 || bit >= len(data)*8 {
		return
	}
	data[bit/8] ^= 0x80 >> uint(bit%8)
}

// FlipStreamBit toggles one bit in a bit-per-entry slice.
func FlipStreamBit(bits []byte, i int) {
	if i >= 0 && i < len(bits) {
		bits[i] ^= 1
	}
}
