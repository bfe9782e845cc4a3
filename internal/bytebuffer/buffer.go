// Package bytebuffer implements the growable read/write byte buffer each
// connection uses to stage partially-parsed requests and partially-written
// responses. It tracks independent read and write cursors so retiring
// consumed bytes never requires shifting the whole backing slice.
package bytebuffer

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/reactor-httpd/internal/constants"
)

// Buffer is a single-producer, single-consumer byte buffer: exactly one
// goroutine at a time should be reading from or writing into a given
// instance, matching how the reactor hands a connection's buffer to exactly
// one worker task at a time.
type Buffer struct {
	buf      []byte
	readPos  int
	writePos int
}

// New returns an empty buffer with constants.InitialBufferSize capacity.
func New() *Buffer {
	return &Buffer{buf: make([]byte, constants.InitialBufferSize)}
}

// ReadableBytes is the number of unread bytes currently staged.
func (b *Buffer) ReadableBytes() int { return b.writePos - b.readPos }

// WritableBytes is the free space after the write cursor.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writePos }

// PrependableBytes is the retired space before the read cursor, reclaimable
// by compaction.
func (b *Buffer) PrependableBytes() int { return b.readPos }

// Peek returns the unread span without consuming it. The slice aliases the
// buffer's backing array and is only valid until the next mutating call.
func (b *Buffer) Peek() []byte { return b.buf[b.readPos:b.writePos] }

// BeginWrite returns the writable span for a direct-write caller (e.g. a
// syscall filling it in place). Combine with HasWritten afterward.
func (b *Buffer) BeginWrite() []byte { return b.buf[b.writePos:] }

// HasWritten advances the write cursor after bytes were placed directly into
// the span returned by BeginWrite.
func (b *Buffer) HasWritten(n int) { b.writePos += n }

// Retrieve consumes n bytes from the front of the readable span.
func (b *Buffer) Retrieve(n int) {
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.readPos += n
}

// RetrieveAll resets both cursors, discarding all staged bytes.
func (b *Buffer) RetrieveAll() {
	b.readPos = 0
	b.writePos = 0
}

// RetrieveAllString consumes every readable byte and returns it as a string.
func (b *Buffer) RetrieveAllString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// EnsureWritable grows or compacts the buffer so at least n bytes are
// writable without reallocating on every Append.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	b.makeSpace(n)
}

// Append copies p onto the end of the readable span, growing as needed.
func (b *Buffer) Append(p []byte) {
	b.EnsureWritable(len(p))
	copy(b.buf[b.writePos:], p)
	b.HasWritten(len(p))
}

// AppendString is Append for a string, avoiding a []byte conversion at the
// call site.
func (b *Buffer) AppendString(s string) { b.Append([]byte(s)) }

// makeSpace grows the backing array when the combined writable and
// prependable space can't satisfy n, otherwise compacts in place by sliding
// the readable span down to offset zero.
func (b *Buffer) makeSpace(n int) {
	if b.WritableBytes()+b.PrependableBytes() < n {
		grown := make([]byte, b.writePos+n+1)
		copy(grown, b.buf[:b.writePos])
		b.buf = grown
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf, b.buf[b.readPos:b.writePos])
	b.readPos = 0
	b.writePos = readable
}

// ReadFrom drains a single edge-triggered-safe readv(2) from fd into the
// buffer. When the buffer's own writable span is too small to hold
// everything the kernel has queued, the overflow spills into a fixed
// on-stack scratch buffer sized constants.ReadSpillSize and is appended
// afterward, so one call takes up to WritableBytes()+ReadSpillSize bytes
// regardless of how little space BeginWrite currently offers. Bytes queued
// beyond that remain in the socket for the next call.
func (b *Buffer) ReadFrom(fd int) (int, error) {
	var spill [constants.ReadSpillSize]byte
	writable := b.WritableBytes()

	iov := [][]byte{b.BeginWrite(), spill[:]}
	n, err := unix.Readv(fd, iov)
	if n <= 0 {
		return n, err
	}
	if n <= writable {
		b.HasWritten(n)
	} else {
		b.HasWritten(writable)
		b.Append(spill[:n-writable])
	}
	return n, err
}

// WriteTo writes the readable span to fd via write(2), retiring whatever
// portion the kernel accepted.
func (b *Buffer) WriteTo(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if n > 0 {
		b.Retrieve(n)
	}
	return n, err
}
