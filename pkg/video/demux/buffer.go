package demux

// Buffer is a growable byte buffer with a logical length
// separate from its capacity.
type Buffer struct {
	buf []byte
	n   int
}

// Len returns the logical length.
func (b *Buffer) Len() int {
	return b.n
}

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Bytes returns the logical contents. The slice aliases
// the buffer and is invalidated by the next Extend.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.n]
}

// Reset sets the logical length to zero and keeps the capacity.
func (b *Buffer) Reset() {
	b.n = 0
}

// Grow ensures room for n more bytes, preserving the current contents.
func (b *Buffer) Grow(n int) {
	need := b.n + n
	if need <= len(b.buf) {
		return
	}
	size := 2 * len(b.buf)
	if size < need {
		size = need
	}
	buf := make([]byte, size)
	copy(buf, b.buf[:b.n])
	b.buf = buf
}

// Extend grows the logical length by n and returns the new tail.
func (b *Buffer) Extend(n int) []byte {
	b.Grow(n)
	tail := b.buf[b.n : b.n+n]
	b.n += n
	return tail
}
