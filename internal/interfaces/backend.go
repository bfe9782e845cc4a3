// Package interfaces provides internal interface definitions for reactor-httpd.
// These are separate from the public interfaces to avoid circular imports
// between the root package and internal packages.
package interfaces

// CredentialStore defines the contract external credential backends (in-memory
// or SQL-backed) must satisfy. get/put bracket pooled use: Verify itself may
// block briefly on a connection-pool semaphore, so callers should invoke it
// off the reactor goroutine.
type CredentialStore interface {
	Verify(username, password string, isRegister bool) (bool, error)
	Close() error
}

// Logger is the write-line log sink contract from spec §6: a single
// timestamped line at or above the configured level, safe for concurrent use.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer receives reactor/worker-pool metrics. Implementations must be
// thread-safe: methods are called from the reactor goroutine and every
// worker goroutine.
type Observer interface {
	ObserveAccept()
	ObserveClose()
	ObserveRequest(latencyNs uint64, status int)
	ObserveBytesRead(n uint64)
	ObserveBytesWritten(n uint64)
	ObserveQueueDepth(depth uint32)
}
