package sectorfix

import (
	"fluxrescue/internal/decode"
	"fluxrescue/internal/errkind"
)

// Confidence scores attached to interpolated sectors. Repaired-in-place
// sectors keep the confidence the pipeline assigned them.
const (
	ConfidenceAverage = 50
	ConfidenceCopy    = 30
	ConfidenceFill    = 0
)

func flipBit(data []byte, bit int) {
	data[bit/8] ^= 0x80 >> uint(bit%8)
}

// FixCRCSingleBit tries every single-bit flip of data until the CRC over
// data matches want. On success the flip is left in place and its bit index
// returned; on failure data is restored and the index is -1.
func FixCRCSingleBit(data []byte, want uint16) (bit int, ok bool) {
	total := len(data) * 8
	for i := 0; i < total; i++ {
		flipBit(data, i)
		if CRC16(data) == want {
			return i, true
		}
		flipBit(data, i)
	}
	return -1, false
}

// FixCRCDoubleBit tries every pair of bit flips within the first maxScan
// bytes of data. The pair search is quadratic, so the cap is mandatory;
// maxScan <= 0 disables the repair. Indexes are returned in ascending order
// and data is restored when no pair matches.
func FixCRCDoubleBit(data []byte, want uint16, maxScan int) (bits [2]int, ok bool) {
	scan := len(data)
	if maxScan <= 0 {
		return bits, false
	}
	if maxScan < scan {
		scan = maxScan
	}
	total := scan * 8
	for i := 0; i < total-1; i++ {
		flipBit(data, i)
		for j := i + 1; j < total; j++ {
			flipBit(data, j)
			if CRC16(data) == want {
				return [2]int{i, j}, true
			}
			flipBit(data, j)
		}
		flipBit(data, i)
	}
	return bits, false
}

// FixCRCWeakBits searches every combination of flips over the weak bit
// positions for one that satisfies the CRC. The search is exponential in the
// number of weak bits, so it refuses to run past budget and reports the
// refusal as an error distinct from an unsuccessful search. On success data
// holds the winning combination and the flipped positions are returned.
func FixCRCWeakBits(data []byte, weakBits []int, want uint16, budget int) ([]int, bool, error) {
	if budget <= 0 || len(weakBits) > budget {
		return nil, false, errkind.Wrap(errkind.ErrInvalidParameter, "sectorfix", "weak-bit repair",
			"weak bit count exceeds search budget", nil)
	}
	total := len(data) * 8
	for _, b := range weakBits {
		if b < 0 || b >= total {
			return nil, false, errkind.Wrap(errkind.ErrInvalidParameter, "sectorfix", "weak-bit repair",
				"weak bit position out of range", nil)
		}
	}
	// Subsets enumerate in Gray order so each step flips exactly one bit.
	gray := uint64(0)
	limit := uint64(1) << uint(len(weakBits))
	for n := uint64(1); n < limit; n++ {
		next := n ^ n>>1
		diff := gray ^ next
		gray = next
		idx := 0
		for diff>>1 != 0 {
			diff >>= 1
			idx++
		}
		flipBit(data, weakBits[idx])
		if CRC16(data) == want {
			var flipped []int
			for i, b := range weakBits {
				if gray&(1<<uint(i)) != 0 {
					flipped = append(flipped, b)
				}
			}
			return flipped, true, nil
		}
	}
	// Undo the residue of the Gray walk.
	for i, b := range weakBits {
		if gray&(1<<uint(i)) != 0 {
			flipBit(data, b)
		}
	}
	return nil, false, nil
}

// InterpolateSector synthesizes a sector from its track neighbors. Both
// neighbors present yields a byte-wise average, one neighbor a plain copy,
// none a fill-byte sector. The returned confidence reflects which case
// applied.
func InterpolateSector(prev, next []byte, size int, fill byte) ([]byte, int) {
	out := make([]byte, size)
	switch {
	case len(prev) >= size && len(next) >= size:
		for i := range out {
			out[i] = byte((int(prev[i]) + int(next[i])) / 2)
		}
		return out, ConfidenceAverage
	case len(prev) >= size:
		copy(out, prev[:size])
		return out, ConfidenceCopy
	case len(next) >= size:
		copy(out, next[:size])
		return out, ConfidenceCopy
	default:
		for i := range out {
			out[i] = fill
		}
		return out, ConfidenceFill
	}
}

// FixGCR re-decodes Commodore GCR in 5-byte groups of four data bytes each,
// reporting per-group success so a mostly-good sector survives a single bad
// group. Failed groups decode to zero bytes. Trailing partial groups are
// ignored.
func FixGCR(gcr []byte) (data []byte, groupOK []bool) {
	groups := len(gcr) / 5
	data = make([]byte, groups*4)
	groupOK = make([]bool, groups)
	for g := 0; g < groups; g++ {
		in := gcr[g*5 : g*5+5]
		var raw uint64
		for _, b := range in {
			raw = raw<<8 | uint64(b)
		}
		ok := true
		var nibbles [8]byte
		for i := 0; i < 8; i++ {
			code := byte(raw >> uint(35-i*5) & 0x1F)
			nibbles[i] = decode.DecodeGCR5to4(code)
			if nibbles[i] == decode.Invalid {
				ok = false
			}
		}
		groupOK[g] = ok
		if !ok {
			continue
		}
		for i := 0; i < 4; i++ {
			data[g*4+i] = nibbles[i*2]<<4 | nibbles[i*2+1]
		}
	}
	return data, groupOK
}

// FixApple62 re-decodes Apple II 6-and-2 disk bytes, reporting which input
// positions held valid codes. Invalid positions decode to zero.
func FixApple62(disk []byte) (values []byte, ok []bool) {
	values = make([]byte, len(disk))
	ok = make([]bool, len(disk))
	for i, b := range disk {
		v := decode.DecodeApple62(b)
		if v != decode.Invalid {
			values[i] = v
			ok[i] = true
		}
	}
	return values, ok
}
