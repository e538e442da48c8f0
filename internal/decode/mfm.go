package decode

import (
	"fluxrescue/internal/bitstream"
)

// IBM MFM/FM sync patterns. The A1/C2 variants carry a deliberately missing
// clock bit, producing patterns that legal MFM data can never contain.
const (
	SyncMFMA1 uint16 = 0x4489 // 0xA1 with missing clock
	SyncMFMC2 uint16 = 0x5224 // 0xC2 with missing clock

	SyncFMIDAM uint16 = 0xF57E // 0xFE with clock 0xC7
	SyncFMDAM  uint16 = 0xF56F // 0xFB with clock 0xC7
	SyncFMDDAM uint16 = 0xF56A // 0xF8 with clock 0xC7
	SyncFMIAM  uint16 = 0xF77A // 0xFC with clock 0xD7
)

// DecodeMFMWord extracts the eight data bits from an MFM word.
func DecodeMFMWord(word uint16) byte {
	var b byte
	for bit := 0; bit < 8; bit++ {
		if word&(1<<(14-uint(bit)*2)) != 0 {
			b |= 1 << (7 - uint(bit))
		}
	}
	return b
}

// EncodeMFMByte MFM-encodes one data byte given the previous data bit.
func EncodeMFMByte(b byte, lastBit byte) uint16 {
	var word uint16
	prev := lastBit & 1
	for i := 7; i >= 0; i-- {
		d := (b >> uint(i)) & 1
		var clock byte
		if prev == 0 && d == 0 {
			clock = 1
		}
		word = word<<2 | uint16(clock)<<1 | uint16(d)
		prev = d
	}
	return word
}

// DecodeMFMWords converts a run of MFM words to data bytes through the
// dispatched kernel.
func (d *Decoder) DecodeMFMWords(words []uint16, out []byte) int {
	return d.kernels.MFMExtract(words, out)
}

// FindSyncRun scans the stream from bit position `from` for `count`
// consecutive repetitions of the 16-bit pattern. It returns the bit offset of
// the first repetition, or -1 when the stream has no further match.
func FindSyncRun(s *bitstream.Stream, from int, pattern uint16, count int) int {
	if s == nil || count <= 0 {
		return -1
	}
	need := 16 * count
	cur := bitstream.StreamCursor(s)
	for pos := from; pos+need <= s.BitCount; pos++ {
		cur.Seek(pos)
		match := true
		for rep := 0; rep < count; rep++ {
			v, ok := cur.ReadBits(16)
			if !ok || uint16(v) != pattern {
				match = false
				break
			}
		}
		if match {
			return pos
		}
	}
	return -1
}

// ReadMFMBytes decodes n data bytes starting at the given bit offset,
// consuming 16 stream bits per byte. ok is false when the stream ends early.
func ReadMFMBytes(s *bitstream.Stream, from, n int) (data []byte, next int, ok bool) {
	if s == nil || from < 0 || n < 0 || from+16*n > s.BitCount {
		return nil, from, false
	}
	cur := bitstream.StreamCursor(s)
	cur.Seek(from)
	data = make([]byte, n)
	for i := 0; i < n; i++ {
		v, _ := cur.ReadBits(16)
		data[i] = DecodeMFMWord(uint16(v))
	}
	return data, cur.Pos(), true
}
