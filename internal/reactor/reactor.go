// Package reactor implements the single-threaded epoll event loop: it owns
// the listening socket, the readiness multiplexer, the idle-connection
// timer, and the connection table, and dispatches parse/respond work to a
// worker pool so no connection's I/O stalls another's.
package reactor

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/reactor-httpd/internal/constants"
	"github.com/behrlich/reactor-httpd/internal/errcode"
	"github.com/behrlich/reactor-httpd/internal/httpproto"
	"github.com/behrlich/reactor-httpd/internal/interfaces"
	"github.com/behrlich/reactor-httpd/internal/poller"
	"github.com/behrlich/reactor-httpd/internal/timerheap"
	"github.com/behrlich/reactor-httpd/internal/workerpool"
)

// Config carries everything the reactor needs to bind its listening socket
// and drive connections, assembled by the root package's Server from
// Options.
type Config struct {
	Port          int
	TriggerMode   int // 0-3, see spec's trigger_mode table
	TimeoutMS     int // 0 disables idle-connection expiry
	OpenLinger    bool
	SrcDir        string
	MaxConns      int
	WorkerCount   int
	TaskQueueSize int

	CredStore interfaces.CredentialStore
	Logger    interfaces.Logger
	Observer  interfaces.Observer
}

// Reactor is the event loop. Create one with New and drive it with Run.
type Reactor struct {
	cfg      Config
	listenFd int
	ep       poller.Poller
	timer    *timerheap.Heap
	pool     *workerpool.Pool

	listenEvents uint32
	connEvents   uint32

	mu    sync.RWMutex
	conns map[int]*conn

	closeOnce sync.Once
	closed    chan struct{}
}

// New binds and listens on cfg.Port and returns a Reactor ready for Run.
func New(cfg Config) (*Reactor, error) {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = constants.MaxConnections
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}

	fd, err := listen(cfg.Port, cfg.OpenLinger)
	if err != nil {
		return nil, fmt.Errorf("reactor: listen: %w", err)
	}

	ep, err := poller.New(1024)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: poller: %w", err)
	}

	r := &Reactor{
		cfg:      cfg,
		listenFd: fd,
		ep:       ep,
		timer:    timerheap.New(),
		pool:     workerpool.New(cfg.WorkerCount, cfg.TaskQueueSize),
		conns:    make(map[int]*conn),
		closed:   make(chan struct{}),
	}
	r.listenEvents, r.connEvents = eventModes(cfg.TriggerMode)

	if err := r.ep.Add(fd, r.listenEvents|poller.EventIn); err != nil {
		unix.Close(fd)
		ep.Close()
		return nil, fmt.Errorf("reactor: add listen fd: %w", err)
	}

	cfg.Logger.Infof("listening port=%d trigger_mode=%d open_linger=%v", cfg.Port, cfg.TriggerMode, cfg.OpenLinger)
	return r, nil
}

// eventModes translates spec's trigger_mode (0-3) into listen/conn epoll
// flag sets. Values outside 0-3 behave like mode 3 (edge-triggered on both
// sides), matching the original server's switch default case.
func eventModes(mode int) (listenEvents, connEvents uint32) {
	connEvents = uint32(poller.OneShot) | uint32(poller.EventRDHUP)
	listenEvents = uint32(poller.EventRDHUP)
	switch mode {
	case 0:
		// level-triggered both sides
	case 1:
		connEvents |= uint32(poller.EdgeTrig)
	case 2:
		listenEvents |= uint32(poller.EdgeTrig)
	default: // 3, and anything out of range
		listenEvents |= uint32(poller.EdgeTrig)
		connEvents |= uint32(poller.EdgeTrig)
	}
	return listenEvents, connEvents
}

func listen(port int, openLinger bool) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if openLinger {
		if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 1}); err != nil {
			unix.Close(fd)
			return -1, err
		}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, constants.ListenBacklog); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Run drives the event loop until Close is called. It always returns nil;
// Close is the only way Run stops.
func (r *Reactor) Run() error {
	for {
		select {
		case <-r.closed:
			return nil
		default:
		}

		timeoutMs := -1
		if r.cfg.TimeoutMS > 0 {
			r.timer.Tick()
			if d, ok := r.timer.NextDeadline(); ok {
				timeoutMs = int(d / time.Millisecond)
				if timeoutMs < 0 {
					timeoutMs = 0
				}
			}
		}

		events, err := r.ep.Wait(timeoutMs)
		if err != nil {
			r.cfg.Logger.Errorf("poller wait: %v", err)
			continue
		}

		for _, ev := range events {
			r.dispatch(ev)
		}
	}
}

func (r *Reactor) dispatch(ev poller.Event) {
	if ev.Fd == r.listenFd {
		r.acceptLoop()
		return
	}

	c := r.lookup(ev.Fd)
	if c == nil {
		return
	}

	if ev.Events&(uint32(poller.EventRDHUP)|uint32(poller.EventHUP)|uint32(poller.EventErr)) != 0 {
		r.closeConn(c)
		return
	}
	if ev.Events&uint32(poller.EventIn) != 0 {
		r.extendTimeout(c)
		if c.tryAcquire() {
			r.pool.Submit(func() { r.onReadable(c) })
			r.cfg.Observer.ObserveQueueDepth(uint32(r.pool.Pending()))
		}
		return
	}
	if ev.Events&uint32(poller.EventOut) != 0 {
		r.extendTimeout(c)
		if c.tryAcquire() {
			r.pool.Submit(func() { r.onWritable(c) })
			r.cfg.Observer.ObserveQueueDepth(uint32(r.pool.Pending()))
		}
		return
	}
}

func (r *Reactor) acceptLoop() {
	for {
		fd, sa, err := unix.Accept4(r.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			return
		}
		if r.countConns() >= r.cfg.MaxConns {
			sendBusy(fd)
			unix.Close(fd)
			r.cfg.Logger.Warnf("%s: rejecting new client", errcode.ServerBusy)
			if r.listenEvents&uint32(poller.EdgeTrig) == 0 {
				return
			}
			continue
		}
		c := newConn(fd, sa)
		r.addConn(c)
		if r.cfg.TimeoutMS > 0 {
			r.timer.Add(fd, time.Duration(r.cfg.TimeoutMS)*time.Millisecond, func(id int) {
				if cc := r.lookup(id); cc != nil {
					r.closeConn(cc)
				}
			})
		}
		if err := r.ep.Add(fd, r.connEvents|uint32(poller.EventIn)); err != nil {
			r.removeConn(fd)
			unix.Close(fd)
			continue
		}
		r.cfg.Observer.ObserveAccept()
		r.cfg.Logger.Debugf("client fd=%d connected", fd)
		if r.listenEvents&uint32(poller.EdgeTrig) == 0 {
			return
		}
	}
}

// sendBusy rejects a connection past MaxConns. Deviates from the original
// server's SendError_, which writes the bare "Server busy!" string with no
// status line or headers; this sends a full HTTP/1.1 envelope instead so a
// client parsing the response doesn't see a malformed reply.
func sendBusy(fd int) {
	unix.Write(fd, []byte("HTTP/1.1 400 Bad Request\r\nContent-length: 13\r\n\r\nServer busy!\n"))
}

func (r *Reactor) onReadable(c *conn) {
	defer r.rearm(c)

	n, err := c.readBuf.ReadFrom(c.fd)
	if n <= 0 && !isEAgain(err) {
		r.cfg.Logger.Debugf("fd=%d %s: read: %v", c.fd, classifyIOErr(err), err)
		r.closeConn(c)
		return
	}
	r.cfg.Observer.ObserveBytesRead(uint64(maxInt(n, 0)))

	r.process(c)
}

// process parses and answers every complete request currently staged in
// c.readBuf, which may be more than one on a pipelined keep-alive
// connection. Each response is flushed before the next one is built: conn
// holds only one in-flight mmap'd file body at a time, so a second respond
// call would otherwise clobber the first response's body before it's sent.
func (r *Reactor) process(c *conn) {
	start := time.Now()
	for {
		done, code := c.request.Parse(c.readBuf)
		if !done {
			return // need more bytes; stays armed for EPOLLIN
		}
		r.respond(c, code)
		r.cfg.Observer.ObserveRequest(uint64(time.Since(start).Nanoseconds()), c.response.Code())

		flushed, shouldClose := r.drainWrite(c)
		if shouldClose {
			r.closeConn(c)
			return
		}
		if !flushed {
			return // kernel send buffer is full; finish over EPOLLOUT
		}
		if !c.keepAlive {
			r.closeConn(c)
			return
		}
		c.resetForNextRequest()
		if c.readBuf.ReadableBytes() == 0 {
			return
		}
	}
}

func (r *Reactor) respond(c *conn, code httpproto.Code) {
	keepAlive := code != httpproto.CodeBadRequest && c.request.IsKeepAlive()
	c.keepAlive = keepAlive

	forcedCode := -1
	if code == httpproto.CodeBadRequest {
		forcedCode = 400
	}

	path := r.resolveAuth(c)

	c.response = httpproto.NewResponse(r.cfg.SrcDir, path, keepAlive, forcedCode)
	body, err := c.response.Make(c.writeBuf)
	if err != nil {
		r.cfg.Logger.Errorf("fd=%d %s: building response: %v", c.fd, errcode.MmapFailed, err)
	} else if errc, ok := errcode.FromStatus(c.response.Code()); ok {
		r.cfg.Logger.Warnf("fd=%d %s: %s", c.fd, errc, path)
	}
	c.fileBody = body
	c.fileBodyOff = 0
}

// resolveAuth checks a POSTed login/register submission against the
// credential store, returning the path to actually serve: the submitted
// path unchanged for every other request, "/welcome.html" on a successful
// verify, or "/error.html" on a failed one.
func (r *Reactor) resolveAuth(c *conn) string {
	path := c.request.Path()
	if c.request.Method() != "POST" || r.cfg.CredStore == nil {
		return path
	}
	isRegister, ok := httpproto.AuthPath(path)
	if !ok {
		return path
	}
	username, _ := c.request.Post("username")
	password, _ := c.request.Post("password")
	verified, err := r.cfg.CredStore.Verify(username, password, isRegister)
	if err != nil {
		r.cfg.Logger.Warnf("fd=%d %s: %v", c.fd, errcode.AuthUnavailable, err)
	}
	if verified {
		return "/welcome.html"
	}
	return "/error.html"
}

func (r *Reactor) onWritable(c *conn) {
	defer r.rearm(c)

	flushed, shouldClose := r.drainWrite(c)
	if shouldClose {
		r.closeConn(c)
		return
	}
	if !flushed {
		return // kernel send buffer still full; wait for the next EPOLLOUT
	}

	if !c.keepAlive {
		r.closeConn(c)
		return
	}
	c.resetForNextRequest()
}

// drainWrite writes as much of c's pending response (writeBuf, then the
// mmap'd file body) as the socket will currently accept. It returns
// flushed=true once both are fully drained, or shouldClose=true if the
// connection failed outright and must be torn down.
func (r *Reactor) drainWrite(c *conn) (flushed, shouldClose bool) {
	for {
		if c.writeBuf.ReadableBytes() > 0 {
			n, err := c.writeBuf.WriteTo(c.fd)
			if n < 0 && !isEAgain(err) {
				r.cfg.Logger.Debugf("fd=%d %s: write: %v", c.fd, classifyIOErr(err), err)
				return false, true
			}
			r.cfg.Observer.ObserveBytesWritten(uint64(maxInt(n, 0)))
			if isEAgain(err) || c.writeBuf.ReadableBytes() > 0 {
				return false, false // kernel send buffer full; wait for EPOLLOUT
			}
			continue
		}
		if c.fileBodyOff < len(c.fileBody) {
			n, err := unix.Write(c.fd, c.fileBody[c.fileBodyOff:])
			if n > 0 {
				c.fileBodyOff += n
				r.cfg.Observer.ObserveBytesWritten(uint64(n))
			}
			if err != nil {
				if isEAgain(err) {
					return false, false
				}
				r.cfg.Logger.Debugf("fd=%d %s: write: %v", c.fd, classifyIOErr(err), err)
				return false, true
			}
			continue
		}
		return true, false
	}
}

// rearm re-registers the connection's fd for the event its next step needs,
// or closes it if it was marked closed while the worker owned it.
func (r *Reactor) rearm(c *conn) {
	c.mu.Lock()
	wasClosed := c.state == stateClosed
	c.mu.Unlock()
	if wasClosed {
		r.finalizeClose(c)
		return
	}

	next := uint32(poller.EventIn)
	if c.pendingWrite() {
		next = uint32(poller.EventOut)
	}
	if err := r.ep.Mod(c.fd, r.connEvents|next); err != nil {
		r.closeConn(c)
		return
	}
	c.release()
}

func (r *Reactor) extendTimeout(c *conn) {
	if r.cfg.TimeoutMS > 0 {
		r.timer.Adjust(c.fd, time.Duration(r.cfg.TimeoutMS)*time.Millisecond)
	}
	c.lastActive = time.Now()
}

// closeConn marks a connection closed. If no worker currently owns it, the
// fd is torn down immediately; otherwise the owning worker's rearm call
// finishes the teardown once it releases the connection.
func (r *Reactor) closeConn(c *conn) {
	prev := c.markClosed()
	if prev != stateBusy {
		r.finalizeClose(c)
	}
}

// finalizeClose tears down c's fd and bookkeeping. It is idempotent: a
// worker's deferred rearm, the idle-timer callback, and Close's own sweep of
// every live connection can all race to call it for the same conn, and only
// the first to claim markFinalized actually runs the teardown.
func (r *Reactor) finalizeClose(c *conn) {
	if !c.markFinalized() {
		return
	}
	r.ep.Del(c.fd)
	if r.cfg.TimeoutMS > 0 {
		r.timer.Remove(c.fd)
	}
	if c.response != nil {
		c.response.Unmap()
	}
	unix.Close(c.fd)
	r.removeConn(c.fd)
	r.cfg.Observer.ObserveClose()
	r.cfg.Logger.Debugf("client fd=%d closed", c.fd)
}

// Close stops Run and tears down every live connection plus the listening
// socket and worker pool.
func (r *Reactor) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.mu.RLock()
		conns := make([]*conn, 0, len(r.conns))
		for _, c := range r.conns {
			conns = append(conns, c)
		}
		r.mu.RUnlock()
		for _, c := range conns {
			r.finalizeClose(c)
		}
		r.pool.Close()
		r.ep.Close()
		unix.Close(r.listenFd)
	})
	return nil
}

func (r *Reactor) addConn(c *conn) {
	r.mu.Lock()
	r.conns[c.fd] = c
	r.mu.Unlock()
}

func (r *Reactor) removeConn(fd int) {
	r.mu.Lock()
	delete(r.conns, fd)
	r.mu.Unlock()
}

func (r *Reactor) lookup(fd int) *conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[fd]
}

func (r *Reactor) countConns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func isEAgain(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// classifyIOErr maps a socket read/write error to its §7 category for log
// lines; errors that aren't a bare syscall.Errno (e.g. a zero-byte EOF read)
// fall back to ErrCodePeerClosed, the common case for a client-initiated
// close.
func classifyIOErr(err error) errcode.Code {
	if errno, ok := err.(syscall.Errno); ok {
		return errcode.FromErrno(errno)
	}
	return errcode.PeerClosed
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

type noopObserver struct{}

func (noopObserver) ObserveAccept()             {}
func (noopObserver) ObserveClose()              {}
func (noopObserver) ObserveRequest(uint64, int) {}
func (noopObserver) ObserveBytesRead(uint64)    {}
func (noopObserver) ObserveBytesWritten(uint64) {}
func (noopObserver) ObserveQueueDepth(uint32)   {}

var (
	_ interfaces.Logger   = noopLogger{}
	_ interfaces.Observer = noopObserver{}
)
