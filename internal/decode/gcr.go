package decode

import "fluxrescue/internal/cpufeat"

// Invalid is the sentinel returned for symbol codes with no table entry.
// Callers skip forward and retry synchronization instead of aborting.
const Invalid byte = cpufeat.InvalidGCR

// gcrEncode4to5 maps 4-bit data to 5-bit Commodore GCR codes.
var gcrEncode4to5 = [16]byte{
	0x0A, 0x0B, 0x12, 0x13, 0x0E, 0x0F, 0x16, 0x17,
	0x09, 0x19, 0x1A, 0x1B, 0x0D, 0x1D, 0x1E, 0x15,
}

// gcrDecode5to4 is the inverse table; Invalid marks the 16 unused codes.
var gcrDecode5to4 = func() [32]byte {
	var t [32]byte
	for i := range t {
		t[i] = Invalid
	}
	for data, code := range gcrEncode4to5 {
		t[code] = byte(data)
	}
	return t
}()

// EncodeGCR4to5 returns the 5-bit GCR code for a data nibble.
func EncodeGCR4to5(nibble byte) byte {
	return gcrEncode4to5[nibble&0x0F]
}

// DecodeGCR5to4 returns the data nibble for a 5-bit GCR code, or Invalid.
func DecodeGCR5to4(code byte) byte {
	return gcrDecode5to4[code&0x1F]
}

// DecodeGCRPairs decodes packed 10-bit GCR pairs (one byte of output each)
// through the dispatched kernel. A pair containing any invalid 5-bit code
// yields an Invalid output byte.
func (d *Decoder) DecodeGCRPairs(codes []uint16, out []byte) int {
	return d.kernels.GCRExpand(codes, out)
}

// apple62Encode maps 6-bit data to the Apple II 6-and-2 disk bytes.
var apple62Encode = [64]byte{
	0x96, 0x97, 0x9A, 0x9B, 0x9D, 0x9E, 0x9F, 0xA6,
	0xA7, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF, 0xB2, 0xB3,
	0xB4, 0xB5, 0xB6, 0xB7, 0xB9, 0xBA, 0xBB, 0xBC,
	0xBD, 0xBE, 0xBF, 0xCB, 0xCD, 0xCE, 0xCF, 0xD3,
	0xD6, 0xD7, 0xD9, 0xDA, 0xDB, 0xDC, 0xDD, 0xDE,
	0xDF, 0xE5, 0xE6, 0xE7, 0xE9, 0xEA, 0xEB, 0xEC,
	0xED, 0xEE, 0xEF, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6,
	0xF7, 0xF9, 0xFA, 0xFB, 0xFC, 0xFD, 0xFE, 0xFF,
}

var apple62Decode = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = Invalid
	}
	for data, disk := range apple62Encode {
		t[disk] = byte(data)
	}
	return t
}()

// EncodeApple62 returns the disk byte for a 6-bit value.
func EncodeApple62(value byte) byte {
	return apple62Encode[value&0x3F]
}

// DecodeApple62 returns the 6-bit value for a disk byte, or Invalid.
func DecodeApple62(disk byte) byte {
	return apple62Decode[disk]
}
