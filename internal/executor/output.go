package executor

import (
	"bytes"
	"io"
)

// DefaultOutputCap is the default maximum number of bytes captured per
// stream. Chatty commands beyond the cap are silently truncated instead of
// exhausting host memory.
const DefaultOutputCap = 1 << 20 // 1 MiB

// CappedBuffer is a writer that captures up to a fixed number of bytes and
// silently discards the rest.
type CappedBuffer struct {
	buf       bytes.Buffer
	remaining int
}

// NewCappedBuffer creates a capture buffer with the given byte cap. A cap of
// zero or less uses DefaultOutputCap.
func NewCappedBuffer(cap int) *CappedBuffer {
	if cap <= 0 {
		cap = DefaultOutputCap
	}
	return &CappedBuffer{remaining: cap}
}

func (b *CappedBuffer) Write(p []byte) (int, error) {
	if b.remaining <= 0 {
		return len(p), nil // Discard, a full buffer is not an error.
	}

	if len(p) > b.remaining {
		n, err := b.buf.Write(p[:b.remaining])
		b.remaining -= n
		if err != nil {
			return n, err
		}
		return len(p), nil
	}

	n, err := b.buf.Write(p)
	b.remaining -= n
	return n, err
}

// String returns the captured bytes as a string.
func (b *CappedBuffer) String() string { return b.buf.String() }

// Len returns the number of captured bytes.
func (b *CappedBuffer) Len() int { return b.buf.Len() }

var _ io.Writer = (*CappedBuffer)(nil)
