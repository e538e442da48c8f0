// Package sectorfix repairs sector payloads that fail their checksum:
// exhaustive single and double bit flips, weak-bit guided search, neighbor
// interpolation, and GCR group re-decode. Every function is pure with
// respect to its inputs; callers own retry policy and budgets.
package sectorfix

// CRC-16/CCITT, polynomial 0x1021, initial value 0xFFFF. This is the
// checksum IBM MFM and FM sector records carry.

var crcTable = func() [256]uint16 {
	var t [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

// CRC16 computes the CRC-16/CCITT of data from the standard 0xFFFF seed.
func CRC16(data []byte) uint16 {
	return CRC16Update(0xFFFF, data)
}

// CRC16Update folds data into a running CRC. Record checksums cover the
// address mark bytes too, so callers seed with the CRC of the preamble.
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>8)^b]
	}
	return crc
}

// RebaseCRC converts a checksum that was accumulated from seed over n data
// bytes into the equivalent checksum from the standard 0xFFFF seed. The CRC
// update is linear over GF(2), so the seed contribution depends only on the
// data length and cancels out byte-for-byte. Framing uses this to strip the
// address-mark preamble from stored record CRCs, letting the repair search
// work on sector data alone.
func RebaseCRC(stored, seed uint16, n int) uint16 {
	zeros := make([]byte, n)
	return stored ^ CRC16Update(seed, zeros) ^ CRC16(zeros)
}
