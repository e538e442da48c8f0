package cpufeat

// InvalidGCR is the sentinel produced when a 5-bit GCR code has no table
// entry. Callers skip forward and resynchronize instead of aborting.
const InvalidGCR byte = 0xFF

// gcrDecode5 maps 5-bit Commodore GCR codes to 4-bit data, 0xFF = invalid.
var gcrDecode5 = [32]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0x8, 0x0, 0x1, 0xFF, 0xC, 0x4, 0x5,
	0xFF, 0xFF, 0x2, 0x3, 0xFF, 0xF, 0x6, 0x7,
	0xFF, 0x9, 0xA, 0xB, 0xFF, 0xD, 0xE, 0xFF,
}

// mfmExtractScalar is the reference kernel: per-bit extraction of the eight
// data bits at even lane positions 14,12,...,0.
func mfmExtractScalar(words []uint16, out []byte) int {
	n := len(words)
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		w := words[i]
		var b byte
		for bit := 0; bit < 8; bit++ {
			if w&(1<<(14-uint(bit)*2)) != 0 {
				b |= 1 << (7 - uint(bit))
			}
		}
		out[i] = b
	}
	return n
}

// mfmExtractWide packs four MFM words into one 64-bit lane group and
// compresses the data bits of all lanes with shared shift/mask steps.
func mfmExtractWide(words []uint16, out []byte) int {
	n := len(words)
	if len(out) < n {
		n = len(out)
	}
	i := 0
	for ; i+4 <= n; i += 4 {
		x := uint64(words[i])<<48 | uint64(words[i+1])<<32 |
			uint64(words[i+2])<<16 | uint64(words[i+3])
		x &= 0x5555555555555555
		x = (x | x>>1) & 0x3333333333333333
		x = (x | x>>2) & 0x0F0F0F0F0F0F0F0F
		x = (x | x>>4) & 0x00FF00FF00FF00FF
		out[i] = byte(x >> 48)
		out[i+1] = byte(x >> 32)
		out[i+2] = byte(x >> 16)
		out[i+3] = byte(x)
	}
	if i < n {
		mfmExtractScalar(words[i:n], out[i:n])
	}
	return n
}

// gcrExpandScalar decodes two 5-bit codes per element via the 32-entry table.
// Either nibble invalid poisons the whole byte with InvalidGCR.
func gcrExpandScalar(codes []uint16, out []byte) int {
	n := len(codes)
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		hi := gcrDecode5[(codes[i]>>5)&0x1F]
		lo := gcrDecode5[codes[i]&0x1F]
		if hi == InvalidGCR || lo == InvalidGCR {
			out[i] = InvalidGCR
			continue
		}
		out[i] = hi<<4 | lo
	}
	return n
}

// gcrPairTable folds both 5-bit lookups of gcrExpandScalar into a single
// 1024-entry table indexed by the packed 10-bit pair.
var gcrPairTable = func() [1024]byte {
	var t [1024]byte
	for pair := 0; pair < 1024; pair++ {
		hi := gcrDecode5[(pair>>5)&0x1F]
		lo := gcrDecode5[pair&0x1F]
		if hi == InvalidGCR || lo == InvalidGCR {
			t[pair] = InvalidGCR
			continue
		}
		t[pair] = hi<<4 | lo
	}
	return t
}()

func gcrExpandTable(codes []uint16, out []byte) int {
	n := len(codes)
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = gcrPairTable[codes[i]&0x3FF]
	}
	return n
}
