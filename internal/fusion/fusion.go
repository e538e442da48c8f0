// Package fusion merges multiple revolutions of the same track into a
// consensus bitstream. Bits where the revolutions disagree are flagged weak,
// and per-bit confidence records the vote margin. Weak positions drive the
// downstream checksum repair search.
package fusion

import (
	"fluxrescue/internal/bitstream"
)

// AnalyzeRevolutions fuses N aligned revolution streams by per-bit majority
// vote. Ties resolve to 0, keeping the historical bias of single-read
// captures. A bit is weak when the vote is neither zero nor unanimous, and
// its confidence is max(votes, N-votes)/N.
//
// bitCount limits the fused length; it is clamped to the shortest input.
// Fewer than two revolutions pass through unchanged with no weak bits.
func AnalyzeRevolutions(revs []*bitstream.Stream, bitCount int) *bitstream.Stream {
	n := 0
	minBits := -1
	if bitCount > 0 {
		minBits = bitCount
	}
	for _, r := range revs {
		if r == nil {
			continue
		}
		n++
		if minBits < 0 || r.BitCount < minBits {
			minBits = r.BitCount
		}
	}
	if minBits < 0 {
		minBits = 0
	}

	if n == 0 {
		return bitstream.New(0)
	}
	if n == 1 {
		for _, r := range revs {
			if r != nil {
				return passthrough(r, minBits)
			}
		}
	}

	out := bitstream.New(minBits)
	out.Confidence = make([]float64, minBits)
	out.Weak = make([]bool, minBits)
	for i := 0; i < minBits; i++ {
		votes := 0
		for _, r := range revs {
			if r == nil {
				continue
			}
			if r.At(i) != 0 {
				votes++
			}
		}
		if votes > n-votes {
			out.Set(i, 1)
		}
		if votes > 0 && votes < n {
			out.Weak[i] = true
		}
		major := votes
		if n-votes > major {
			major = n - votes
		}
		out.Confidence[i] = float64(major) / float64(n)
	}
	return out
}

func passthrough(r *bitstream.Stream, bits int) *bitstream.Stream {
	out := bitstream.New(bits)
	out.Confidence = make([]float64, bits)
	out.Weak = make([]bool, bits)
	for i := 0; i < bits; i++ {
		out.Set(i, r.At(i))
		out.Confidence[i] = r.ConfidenceAt(i)
	}
	return out
}

// Agreement returns the fraction of positions on which two streams carry the
// same bit, over their common length. Two empty streams agree completely.
func Agreement(a, b *bitstream.Stream) float64 {
	if a == nil || b == nil {
		return 0
	}
	n := a.BitCount
	if b.BitCount < n {
		n = b.BitCount
	}
	if n == 0 {
		return 1
	}
	same := 0
	for i := 0; i < n; i++ {
		if a.At(i) == b.At(i) {
			same++
		}
	}
	return float64(same) / float64(n)
}

// WeakPositions lists the weak bit indexes of a fused stream.
func WeakPositions(s *bitstream.Stream) []int {
	if s == nil || s.Weak == nil {
		return nil
	}
	var pos []int
	for i, w := range s.Weak {
		if w {
			pos = append(pos, i)
		}
	}
	return pos
}
