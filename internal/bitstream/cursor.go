package bitstream

// Cursor walks a packed bit buffer with bounds-checked reads and writes.
// All multi-bit operations are MSB-first.
type Cursor struct {
	buf []byte
	pos int // bit position
	end int // total bit count
}

// NewCursor positions a cursor at bit 0 of buf, exposing bitCount bits.
// A negative or oversized bitCount is clamped to the buffer capacity.
func NewCursor(buf []byte, bitCount int) *Cursor {
	max := len(buf) * 8
	if bitCount < 0 || bitCount > max {
		bitCount = max
	}
	return &Cursor{buf: buf, end: bitCount}
}

// StreamCursor positions a cursor at bit 0 of a stream.
func StreamCursor(s *Stream) *Cursor {
	if s == nil {
		return NewCursor(nil, 0)
	}
	return NewCursor(s.Bits, s.BitCount)
}

// Pos returns the current bit position.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of unread bits.
func (c *Cursor) Remaining() int { return c.end - c.pos }

// Seek moves the cursor to an absolute bit position, clamped to [0,end].
func (c *Cursor) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > c.end {
		pos = c.end
	}
	c.pos = pos
}

// Advance moves the cursor forward n bits (n may be negative), clamped.
func (c *Cursor) Advance(n int) { c.Seek(c.pos + n) }

// ReadBit consumes one bit. ok is false at end of stream.
func (c *Cursor) ReadBit() (bit byte, ok bool) {
	if c.pos >= c.end {
		return 0, false
	}
	bit = (c.buf[c.pos/8] >> (7 - uint(c.pos%8))) & 1
	c.pos++
	return bit, true
}

// ReadBits consumes up to 64 bits MSB-first. ok is false when fewer than n
// bits remain; the cursor does not move on failure.
func (c *Cursor) ReadBits(n int) (value uint64, ok bool) {
	if n < 0 || n > 64 || c.end-c.pos < n {
		return 0, false
	}
	for i := 0; i < n; i++ {
		b, _ := c.ReadBit()
		value = value<<1 | uint64(b)
	}
	return value, true
}

// PeekBits reads up to 64 bits without moving the cursor.
func (c *Cursor) PeekBits(n int) (value uint64, ok bool) {
	save := c.pos
	value, ok = c.ReadBits(n)
	c.pos = save
	return value, ok
}

// WriteBit stores one bit at the cursor and advances. ok is false at end.
func (c *Cursor) WriteBit(bit byte) bool {
	if c.pos >= c.end {
		return false
	}
	mask := byte(1) << (7 - uint(c.pos%8))
	if bit != 0 {
		c.buf[c.pos/8] |= mask
	} else {
		c.buf[c.pos/8] &^= mask
	}
	c.pos++
	return true
}

// WriteBits stores the low n bits of value MSB-first. ok is false when fewer
// than n bits remain; the cursor does not move on failure.
func (c *Cursor) WriteBits(value uint64, n int) bool {
	if n < 0 || n > 64 || c.end-c.pos < n {
		return false
	}
	for i := n - 1; i >= 0; i-- {
		c.WriteBit(byte(value >> uint(i) & 1))
	}
	return true
}
