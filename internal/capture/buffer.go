package capture

// Buffer is the append-only byte store for one capture session.
//
// It starts with the capacity hint it was created with and grows by append's
// doubling from there. Reset keeps the allocation so a discarded attempt does
// not pay for it again; Detach hands the bytes to the caller and leaves the
// buffer empty and unallocated.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty buffer with room for capacity bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Append copies p onto the end of the buffer.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Len returns the number of bytes held.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the current allocation size.
func (b *Buffer) Cap() int { return cap(b.data) }

// Bytes returns the accumulated bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Detach returns the accumulated bytes and leaves the buffer empty.
func (b *Buffer) Detach() []byte {
	out := b.data
	b.data = nil
	return out
}
