package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/reactor-httpd/internal/bytebuffer"
	"github.com/behrlich/reactor-httpd/internal/httpproto"
)

// connState guards against a connection's fd being handed to a second
// worker task while one is already running on it. EPOLLONESHOT already
// stops epoll from re-reporting a fd until it's re-armed, but the reactor
// goroutine and a worker goroutine both touch a connection's fields, so an
// explicit guard makes "exactly one task in flight per descriptor" a
// property of the code, not just a consequence of how epoll happens to be
// configured.
type connState int32

const (
	stateArmed connState = iota // waiting in epoll, no worker owns it
	stateBusy                   // a worker task owns it; not in epoll
	stateClosed
)

// conn holds everything the reactor and its workers need to drive one
// client connection through read -> parse -> respond -> write.
type conn struct {
	fd        int
	addr      unix.Sockaddr
	keepAlive bool

	readBuf  *bytebuffer.Buffer
	writeBuf *bytebuffer.Buffer
	request  *httpproto.Request
	response *httpproto.Response

	// fileBody is the mmap'd static-file segment for the in-flight
	// response, served as a second scatter-write buffer alongside
	// writeBuf so the file's bytes are never copied.
	fileBody    []byte
	fileBodyOff int

	mu        sync.Mutex
	state     connState
	finalized bool

	lastActive time.Time
}

func newConn(fd int, addr unix.Sockaddr) *conn {
	return &conn{
		fd:         fd,
		addr:       addr,
		readBuf:    bytebuffer.New(),
		writeBuf:   bytebuffer.New(),
		request:    httpproto.NewRequest(),
		state:      stateArmed,
		lastActive: time.Now(),
	}
}

// tryAcquire transitions Armed -> Busy, reporting whether it succeeded. A
// failed acquire means another worker (or the close path) already owns the
// connection.
func (c *conn) tryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateArmed {
		return false
	}
	c.state = stateBusy
	return true
}

// release transitions Busy -> Armed, unless the connection was closed while
// the worker held it, in which case it stays Closed.
func (c *conn) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateBusy {
		c.state = stateArmed
	}
}

// markClosed transitions to Closed from any state and reports the previous
// state, so the caller knows whether a worker currently owns the
// connection and must finish before the fd is actually closed.
func (c *conn) markClosed() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = stateClosed
	return prev
}

// markFinalized reports whether this call is the first to claim teardown
// rights over the connection, so finalizeClose runs its unix.Close/observer
// bookkeeping exactly once no matter how many racing paths (a worker's
// deferred rearm, the reactor's idle-timer callback, Close tearing down
// every live connection) call it.
func (c *conn) markFinalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return false
	}
	c.finalized = true
	return true
}

func (c *conn) pendingWrite() bool {
	return c.writeBuf.ReadableBytes() > 0 || c.fileBodyOff < len(c.fileBody)
}

func (c *conn) resetForNextRequest() {
	c.request.Reset()
	if c.response != nil {
		c.response.Unmap()
		c.response = nil
	}
	c.fileBody = nil
	c.fileBodyOff = 0
}
