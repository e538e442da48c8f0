package decode

// Amiga trackdisk MFM stores each longword as two interleaved halves: all odd
// data bits first, then all even data bits, each half carrying its own clock
// bits in the odd positions.

const amigaDataMask uint32 = 0x55555555

// DeinterleaveAmiga recombines the odd and even halves of a longword.
func DeinterleaveAmiga(odd, even uint32) uint32 {
	return (odd&amigaDataMask)<<1 | even&amigaDataMask
}

// InterleaveAmiga splits a longword into its odd and even data halves. Clock
// bits are zero; callers insert them with AmigaClockBits when writing flux.
func InterleaveAmiga(v uint32) (odd, even uint32) {
	return v >> 1 & amigaDataMask, v & amigaDataMask
}

// AmigaClockBits fills in the clock positions of an MFM half-longword. A
// clock bit is set only when both neighboring data bits are clear. prevBit is
// the last data bit of the preceding longword on the track.
func AmigaClockBits(half uint32, prevBit uint32) uint32 {
	out := half & amigaDataMask
	prev := prevBit & 1
	for i := 31; i >= 1; i -= 2 {
		cur := half >> uint(i-1) & 1
		if prev == 0 && cur == 0 {
			out |= 1 << uint(i)
		}
		prev = cur
	}
	return out
}

// AmigaChecksum XORs a run of raw MFM longwords and masks off the clock
// bits, matching the trackdisk header and data checksums.
func AmigaChecksum(raw []uint32) uint32 {
	var sum uint32
	for _, v := range raw {
		sum ^= v
	}
	return sum & amigaDataMask
}

// AmigaSectorInfo is the decoded info longword of a trackdisk header.
type AmigaSectorInfo struct {
	Format       byte // 0xFF for AmigaDOS
	Track        byte // track number including head bit
	Sector       byte
	SectorsToGap byte
}

// EncodeSectorInfo packs a sector header into its info longword.
func EncodeSectorInfo(info AmigaSectorInfo) uint32 {
	return uint32(info.Format)<<24 |
		uint32(info.Track)<<16 |
		uint32(info.Sector)<<8 |
		uint32(info.SectorsToGap)
}

// DecodeSectorInfo unpacks an info longword.
func DecodeSectorInfo(v uint32) AmigaSectorInfo {
	return AmigaSectorInfo{
		Format:       byte(v >> 24),
		Track:        byte(v >> 16),
		Sector:       byte(v >> 8),
		SectorsToGap: byte(v),
	}
}
