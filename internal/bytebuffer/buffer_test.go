package bytebuffer

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestAppendAndRetrieve(t *testing.T) {
	b := New()
	b.AppendString("hello world")

	if got := string(b.Peek()); got != "hello world" {
		t.Fatalf("Peek() = %q, want %q", got, "hello world")
	}
	if b.ReadableBytes() != len("hello world") {
		t.Fatalf("ReadableBytes() = %d, want %d", b.ReadableBytes(), len("hello world"))
	}

	b.Retrieve(6)
	if got := string(b.Peek()); got != "world" {
		t.Fatalf("Peek() after Retrieve(6) = %q, want %q", got, "world")
	}
}

func TestRetrieveAllString(t *testing.T) {
	b := New()
	b.AppendString("abc")
	if got := b.RetrieveAllString(); got != "abc" {
		t.Fatalf("RetrieveAllString() = %q, want %q", got, "abc")
	}
	if b.ReadableBytes() != 0 {
		t.Fatalf("expected empty buffer after RetrieveAllString, got %d readable", b.ReadableBytes())
	}
}

func TestMakeSpaceCompactsInPlace(t *testing.T) {
	b := New()
	b.AppendString("0123456789")
	b.Retrieve(8) // readPos=8, writePos=10, plenty of prependable space

	before := b.PrependableBytes()
	if before == 0 {
		t.Fatal("expected prependable bytes after partial retrieve")
	}

	// Demand more writable space than currently free but less than
	// prependable+writable combined: should compact, not reallocate.
	b.EnsureWritable(1020)
	if b.readPos != 0 {
		t.Fatalf("expected compaction to reset readPos to 0, got %d", b.readPos)
	}
	if got := string(b.Peek()); got != "89" {
		t.Fatalf("Peek() after compaction = %q, want %q", got, "89")
	}
}

func TestMakeSpaceGrowsWhenCompactionInsufficient(t *testing.T) {
	b := New()
	b.AppendString("xyz")
	oldCap := len(b.buf)

	b.EnsureWritable(oldCap * 4)
	if len(b.buf) < oldCap*4 {
		t.Fatalf("expected backing array to grow past %d, got %d", oldCap*4, len(b.buf))
	}
	if got := string(b.Peek()); got != "xyz" {
		t.Fatalf("Peek() after growth = %q, want %q", got, "xyz")
	}
}

func TestReadFromSpillsPastWritableSpan(t *testing.T) {
	var p [2]int
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	p[0], p[1] = fds[0], fds[1]
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	b := New()
	// Append and then fully retrieve a filler nearly as large as the initial
	// capacity. Retrieving every readable byte resets both cursors, so the
	// writable span is the whole initial capacity again; the payload below
	// is still larger than that and must spill into the scratch buffer.
	filler := make([]byte, len(b.buf)-4)
	b.Append(filler)
	b.Retrieve(b.ReadableBytes()) // drop it; both cursors reset to 0

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	if _, err := unix.Write(p[1], payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := b.ReadFrom(p[0])
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("ReadFrom() read %d bytes, want %d", n, len(payload))
	}
	if b.ReadableBytes() != len(payload) {
		t.Fatalf("ReadableBytes() = %d, want %d", b.ReadableBytes(), len(payload))
	}
}

func TestWriteToRetiresAcceptedBytes(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	b := New()
	b.AppendString("payload")

	n, err := b.WriteTo(fds[0])
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != len("payload") {
		t.Fatalf("WriteTo() wrote %d bytes, want %d", n, len("payload"))
	}
	if b.ReadableBytes() != 0 {
		t.Fatalf("expected buffer drained after WriteTo, got %d readable", b.ReadableBytes())
	}

	got := make([]byte, 7)
	if _, err := unix.Read(fds[1], got); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("read back %q, want %q", got, "payload")
	}
}
