// Package constants holds tuning values shared across the reactor, buffer,
// and HTTP protocol packages.
package constants

const (
	// MaxConnections bounds the number of simultaneously live connections the
	// reactor will accept. Past this, accept sends "Server busy!" and closes.
	MaxConnections = 65536

	// ListenBacklog is the backlog passed to listen(2).
	ListenBacklog = 6

	// ReadSpillSize is the size of the on-stack scratch buffer used by
	// bytebuffer.Buffer.ReadFrom to drain a socket in one edge-triggered
	// notification even when the buffer's own writable span is small.
	ReadSpillSize = 64 * 1024

	// InitialBufferSize is the starting capacity of a fresh connection buffer.
	InitialBufferSize = 1024

	// DefaultWorkerCount is used when Options.WorkerCount is zero.
	DefaultWorkerCount = 8

	// DefaultTaskQueueSize bounds the worker pool's pending task backlog
	// before Submit blocks the caller.
	DefaultTaskQueueSize = 4096

	// KeepAliveMax / KeepAliveTimeoutSec feed the fixed
	// "keep-alive: max=N, timeout=T" response header.
	KeepAliveMax        = 6
	KeepAliveTimeoutSec = 120
)
