package sectorfix

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxrescue/internal/decode"
	"fluxrescue/internal/errkind"
	"fluxrescue/internal/testsupport"
)

func TestCRC16KnownVector(t *testing.T) {
	// The standard CCITT-FALSE check value.
	assert.Equal(t, uint16(0x29B1), CRC16([]byte("123456789")))
}

func TestCRC16UpdateSplitsCleanly(t *testing.T) {
	data := []byte{0xA1, 0xA1, 0xA1, 0xFB, 0xE5, 0xE5, 0x00, 0x12}
	whole := CRC16(data)
	split := CRC16Update(CRC16(data[:3]), data[3:])
	assert.Equal(t, whole, split)
}

func goodSector(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestFixCRCSingleBit(t *testing.T) {
	sector := goodSector(128)
	want := CRC16(sector)

	corrupt := append([]byte(nil), sector...)
	testsupport.FlipBit(corrupt, 37)

	bit, ok := FixCRCSingleBit(corrupt, want)
	require.True(t, ok)
	assert.Equal(t, 37, bit)
	assert.True(t, bytes.Equal(sector, corrupt))
}

func TestFixCRCSingleBitRestoresOnFailure(t *testing.T) {
	sector := goodSector(64)
	want := CRC16(sector)

	corrupt := append([]byte(nil), sector...)
	testsupport.FlipBit(corrupt, 10)
	testsupport.FlipBit(corrupt, 200)

	before := append([]byte(nil), corrupt...)
	_, ok := FixCRCSingleBit(corrupt, want)
	assert.False(t, ok)
	assert.True(t, bytes.Equal(before, corrupt), "failed repair must not alter data")
}

func TestFixCRCDoubleBit(t *testing.T) {
	sector := goodSector(32)
	want := CRC16(sector)

	corrupt := append([]byte(nil), sector...)
	testsupport.FlipBit(corrupt, 12)
	testsupport.FlipBit(corrupt, 99)

	bits, ok := FixCRCDoubleBit(corrupt, want, len(corrupt))
	require.True(t, ok)
	assert.Equal(t, [2]int{12, 99}, bits)
	assert.True(t, bytes.Equal(sector, corrupt))
}

func TestFixCRCDoubleBitHonorsScanCap(t *testing.T) {
	sector := goodSector(64)
	want := CRC16(sector)

	corrupt := append([]byte(nil), sector...)
	testsupport.FlipBit(corrupt, 300)
	testsupport.FlipBit(corrupt, 401)

	// Both flips sit past the 16-byte cap, so the search must give up and
	// restore the buffer.
	before := append([]byte(nil), corrupt...)
	_, ok := FixCRCDoubleBit(corrupt, want, 16)
	assert.False(t, ok)
	assert.True(t, bytes.Equal(before, corrupt))

	_, ok = FixCRCDoubleBit(corrupt, want, 0)
	assert.False(t, ok)
}

func TestFixCRCWeakBits(t *testing.T) {
	sector := goodSector(128)
	want := CRC16(sector)

	corrupt := append([]byte(nil), sector...)
	testsupport.FlipBit(corrupt, 41)
	testsupport.FlipBit(corrupt, 513)

	// The weak mask names the corrupted positions plus bystanders.
	weak := []int{8, 41, 100, 513, 900}
	flipped, ok, err := FixCRCWeakBits(corrupt, weak, want, 16)
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{41, 513}, flipped)
	assert.True(t, bytes.Equal(sector, corrupt))
}

func TestFixCRCWeakBitsRefusesOverBudget(t *testing.T) {
	sector := goodSector(64)
	weak := make([]int, 17)
	for i := range weak {
		weak[i] = i
	}
	_, ok, err := FixCRCWeakBits(sector, weak, 0x1234, 16)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, errkind.ErrInvalidParameter)
}

func TestFixCRCWeakBitsRestoresOnFailure(t *testing.T) {
	sector := goodSector(64)
	want := CRC16(sector)

	corrupt := append([]byte(nil), sector...)
	testsupport.FlipBit(corrupt, 5)

	before := append([]byte(nil), corrupt...)
	// Weak mask that does not include the corrupted bit.
	_, ok, err := FixCRCWeakBits(corrupt, []int{100, 200, 300}, want, 16)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, bytes.Equal(before, corrupt))
}

func TestInterpolateSector(t *testing.T) {
	prev := []byte{10, 20, 30, 40}
	next := []byte{20, 40, 50, 60}

	avg, conf := InterpolateSector(prev, next, 4, 0xE5)
	assert.Equal(t, []byte{15, 30, 40, 50}, avg)
	assert.Equal(t, ConfidenceAverage, conf)

	cp, conf := InterpolateSector(prev, nil, 4, 0xE5)
	assert.Equal(t, prev, cp)
	assert.Equal(t, ConfidenceCopy, conf)

	cp, conf = InterpolateSector(nil, next, 4, 0xE5)
	assert.Equal(t, next, cp)
	assert.Equal(t, ConfidenceCopy, conf)

	fill, conf := InterpolateSector(nil, nil, 4, 0xE5)
	assert.Equal(t, []byte{0xE5, 0xE5, 0xE5, 0xE5}, fill)
	assert.Equal(t, ConfidenceFill, conf)
}

func encodeGCRGroup(data [4]byte) []byte {
	var raw uint64
	for _, b := range data {
		raw = raw<<5 | uint64(decode.EncodeGCR4to5(b>>4))
		raw = raw<<5 | uint64(decode.EncodeGCR4to5(b&0x0F))
	}
	out := make([]byte, 5)
	for i := 0; i < 5; i++ {
		out[i] = byte(raw >> uint(32-i*8))
	}
	return out
}

func TestFixGCRPerGroup(t *testing.T) {
	var gcr []byte
	gcr = append(gcr, encodeGCRGroup([4]byte{0x12, 0x34, 0x56, 0x78})...)
	gcr = append(gcr, encodeGCRGroup([4]byte{0xDE, 0xAD, 0xBE, 0xEF})...)

	// Poison the second group with an illegal run of zeros.
	gcr[5] = 0x00

	data, ok := FixGCR(gcr)
	require.Len(t, data, 8)
	require.Len(t, ok, 2)
	assert.True(t, ok[0])
	assert.False(t, ok[1])
	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, data[:4])
}

func TestFixApple62(t *testing.T) {
	disk := []byte{decode.EncodeApple62(0x00), 0x13, decode.EncodeApple62(0x3F)}
	values, ok := FixApple62(disk)
	assert.Equal(t, []byte{0x00, 0x00, 0x3F}, values)
	assert.Equal(t, []bool{true, false, true}, ok)
}
