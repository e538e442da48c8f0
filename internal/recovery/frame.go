package recovery

import (
	"fluxrescue/internal/bitstream"
	"fluxrescue/internal/decode"
	"fluxrescue/internal/sectorfix"
)

// IBM MFM address marks, as decoded data bytes following the A1A1A1 sync.
const (
	markIDAM = 0xFE // sector header
	markDAM  = 0xFB // sector data
	markDDAM = 0xF8 // deleted sector data
)

// idamHeader is a parsed sector header record.
type idamHeader struct {
	cyl, head, number, sizeCode int
	ok                          bool
}

// frameIBMTrack walks the fused track stream and pairs header records with
// the data records that follow them. Stored record CRCs are rebased to the
// plain data seed so the repair search never has to know about address
// marks. At most maxSync sync candidates are examined (<=0 means no limit);
// found is false when the stream contains no sync run at all.
func frameIBMTrack(stream *bitstream.Stream, maxSync int) (sectors []*Sector, found bool) {
	if stream == nil || stream.BitCount == 0 {
		return nil, false
	}

	var pending *idamHeader
	pos := 0
	for examined := 0; maxSync <= 0 || examined < maxSync; examined++ {
		syncAt := decode.FindSyncRun(stream, pos, decode.SyncMFMA1, 3)
		if syncAt < 0 {
			return sectors, found
		}
		found = true
		markBytes, next, ok := decode.ReadMFMBytes(stream, syncAt+48, 1)
		if !ok {
			return sectors, found
		}
		pos = next

		switch markBytes[0] {
		case markIDAM:
			hdr, next, ok := parseHeader(stream, pos)
			if !ok {
				return sectors, found
			}
			pos = next
			pending = &hdr
		case markDAM, markDDAM:
			sec, next, ok := parseData(stream, pos, markBytes[0], pending)
			if !ok {
				return sectors, found
			}
			pos = next
			pending = nil
			sectors = append(sectors, sec)
		default:
			// Unknown mark: advance past this sync and retry.
		}
	}
	return sectors, found
}

// parseHeader reads the 4 header bytes plus CRC after an IDAM.
func parseHeader(stream *bitstream.Stream, pos int) (idamHeader, int, bool) {
	raw, next, ok := decode.ReadMFMBytes(stream, pos, 6)
	if !ok {
		return idamHeader{}, pos, false
	}
	hdr := idamHeader{
		cyl:      int(raw[0]),
		head:     int(raw[1]),
		number:   int(raw[2]),
		sizeCode: int(raw[3]) & 0x07,
	}
	stored := uint16(raw[4])<<8 | uint16(raw[5])
	seed := sectorfix.CRC16([]byte{0xA1, 0xA1, 0xA1, markIDAM})
	hdr.ok = sectorfix.CRC16Update(seed, raw[:4]) == stored
	return hdr, next, true
}

// parseData reads a data record sized by the preceding header. Without a
// header the standard 512-byte size is assumed and the header error noted.
func parseData(stream *bitstream.Stream, pos int, mark byte, pending *idamHeader) (*Sector, int, bool) {
	sizeCode := 2
	if pending != nil {
		sizeCode = pending.sizeCode
	}
	size := 128 << uint(sizeCode)

	raw, next, ok := decode.ReadMFMBytes(stream, pos, size+2)
	if !ok {
		return nil, pos, false
	}
	data := raw[:size]
	stored := uint16(raw[size])<<8 | uint16(raw[size+1])
	seed := sectorfix.CRC16([]byte{0xA1, 0xA1, 0xA1, mark})

	sec := &Sector{
		SizeCode:  sizeCode,
		Data:      data,
		StoredCRC: sectorfix.RebaseCRC(stored, seed, size),
		CalcCRC:   sectorfix.CRC16(data),
		BitOffset: pos,
		WeakBits:  sectorWeakBits(stream, pos, size),
	}
	if pending != nil {
		sec.Number = pending.number
		if !pending.ok {
			sec.Kind = KindHeader
		}
	} else {
		sec.Kind = KindHeader
	}
	sec.Confidence = int(streamConfidence(stream, pos, size) * 100)
	return sec, next, true
}

// sectorWeakBits maps weak positions of the track stream into data-relative
// bit indexes. Each data bit occupies the odd position of its MFM pair.
func sectorWeakBits(stream *bitstream.Stream, pos, size int) []int {
	if stream.Weak == nil {
		return nil
	}
	var weak []int
	for i := 0; i < size*8; i++ {
		streamBit := pos + i*2 + 1
		if stream.WeakAt(streamBit) {
			weak = append(weak, i)
		}
	}
	return weak
}

func streamConfidence(stream *bitstream.Stream, pos, size int) float64 {
	if stream.Confidence == nil {
		return 1.0
	}
	sum := 0.0
	n := 0
	for i := pos; i < pos+size*16 && i < stream.BitCount; i++ {
		sum += stream.ConfidenceAt(i)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
