package httpd

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/reactor-httpd/internal/errcode"
)

func TestStructuredError(t *testing.T) {
	err := NewError("parse", ErrCodeBadRequest, "missing request line")

	assert.Equal(t, "parse", err.Op)
	assert.Equal(t, ErrCodeBadRequest, err.Code)
	assert.Equal(t, "httpd: missing request line (op=parse)", err.Error())
}

func TestErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("write", ErrCodePeerClosed, syscall.EPIPE)

	assert.Equal(t, syscall.EPIPE, err.Errno)
	assert.Equal(t, ErrCodePeerClosed, err.Code)
}

func TestConnError(t *testing.T) {
	err := NewConnError("respond", 7, ErrCodeMmapFailed, "mmap failed")

	assert.Equal(t, 7, err.Fd)
	assert.Equal(t, "httpd: mmap failed (op=respond)", err.Error())
}

func TestWrapError(t *testing.T) {
	err := WrapError("write", syscall.EPIPE)
	require.NotNil(t, err)

	assert.Equal(t, ErrCodePeerClosed, err.Code)
	assert.Equal(t, syscall.EPIPE, err.Errno)
}

func TestWrapErrorNilIsNil(t *testing.T) {
	assert.Nil(t, WrapError("write", nil))
}

func TestWrapErrorPreservesCode(t *testing.T) {
	inner := NewError("respond", ErrCodeForbidden, "not world-readable")
	err := WrapError("process", inner)

	assert.Equal(t, ErrCodeForbidden, err.Code)
	assert.Equal(t, "process", err.Op)
}

func TestIsCode(t *testing.T) {
	err := NewError("accept", ErrCodeServerBusy, "connection limit reached")

	assert.True(t, IsCode(err, ErrCodeServerBusy))
	assert.False(t, IsCode(err, ErrCodeNotFound))
	assert.False(t, IsCode(nil, ErrCodeServerBusy))
}

func TestErrnoMapping(t *testing.T) {
	cases := []struct {
		errno    syscall.Errno
		expected ErrCode
	}{
		{syscall.EPIPE, ErrCodePeerClosed},
		{syscall.ECONNRESET, ErrCodePeerClosed},
		{syscall.EAGAIN, ErrCodeTransient},
		{syscall.EMFILE, ErrCodeServerBusy},
		{syscall.ENOENT, ErrCodeTransient},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, errcode.FromErrno(tc.errno))
	}
}
