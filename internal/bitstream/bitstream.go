// Package bitstream provides the decoded bit sequence model shared by the
// flux decoders, revolution fusion, and sector recovery, together with a
// bounds-checked bit cursor that replaces ad-hoc byte/bit index arithmetic.
package bitstream

// Stream is a sequence of bits with optional per-bit confidence and weak-bit
// annotations. A nil Confidence slice means every bit is fully trusted.
type Stream struct {
	Bits       []byte    // MSB-first packed bits
	BitCount   int       // number of valid bits in Bits
	Confidence []float64 // per-bit confidence in [0,1]; nil = fully trusted
	Weak       []bool    // per-bit weak flag; nil = no weak bits
}

// New allocates a zeroed stream holding bitCount bits.
func New(bitCount int) *Stream {
	if bitCount < 0 {
		bitCount = 0
	}
	return &Stream{
		Bits:     make([]byte, (bitCount+7)/8),
		BitCount: bitCount,
	}
}

// FromBits packs a bit-per-entry slice into a stream.
func FromBits(bits []byte) *Stream {
	s := New(len(bits))
	for i, b := range bits {
		if b != 0 {
			s.Set(i, 1)
		}
	}
	return s
}

// FromBytes wraps already-framed bytes as a stream of len(data)*8 bits. The
// backing array is copied, not aliased.
func FromBytes(data []byte) *Stream {
	s := New(len(data) * 8)
	copy(s.Bits, data)
	return s
}

// Bytes returns a copy of the packed bit buffer, trailing pad bits zeroed.
func (s *Stream) Bytes() []byte {
	if s == nil {
		return nil
	}
	out := make([]byte, (s.BitCount+7)/8)
	copy(out, s.Bits[:len(out)])
	if rem := s.BitCount % 8; rem != 0 && len(out) > 0 {
		out[len(out)-1] &= 0xFF << uint(8-rem)
	}
	return out
}

// At returns the bit at position i, or 0 when out of range.
func (s *Stream) At(i int) byte {
	if s == nil || i < 0 || i >= s.BitCount {
		return 0
	}
	return (s.Bits[i/8] >> (7 - uint(i%8))) & 1
}

// Set stores bit value v (0 or 1) at position i. Out-of-range positions are
// ignored.
func (s *Stream) Set(i int, v byte) {
	if s == nil || i < 0 || i >= s.BitCount {
		return
	}
	mask := byte(1) << (7 - uint(i%8))
	if v != 0 {
		s.Bits[i/8] |= mask
	} else {
		s.Bits[i/8] &^= mask
	}
}

// ConfidenceAt returns the confidence of bit i, defaulting to 1.0 when the
// stream carries no confidence data.
func (s *Stream) ConfidenceAt(i int) float64 {
	if s == nil || s.Confidence == nil || i < 0 || i >= len(s.Confidence) {
		return 1.0
	}
	return s.Confidence[i]
}

// WeakAt reports whether bit i is flagged weak.
func (s *Stream) WeakAt(i int) bool {
	if s == nil || s.Weak == nil || i < 0 || i >= len(s.Weak) {
		return false
	}
	return s.Weak[i]
}

// WeakCount returns the number of weak-flagged bits.
func (s *Stream) WeakCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, w := range s.Weak {
		if w {
			n++
		}
	}
	return n
}

// AverageConfidence returns the mean per-bit confidence, or 1.0 for a stream
// without confidence data. An empty stream reports 0.
func (s *Stream) AverageConfidence() float64 {
	if s == nil || s.BitCount == 0 {
		return 0
	}
	if s.Confidence == nil {
		return 1.0
	}
	sum := 0.0
	for i := 0; i < s.BitCount && i < len(s.Confidence); i++ {
		sum += s.Confidence[i]
	}
	return sum / float64(s.BitCount)
}
