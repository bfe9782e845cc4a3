package httpd

import "github.com/behrlich/reactor-httpd/internal/constants"

// Re-exported tuning defaults, for callers assembling Options without
// reaching into internal/constants directly.
const (
	DefaultMaxConnections   = constants.MaxConnections
	DefaultWorkerCount      = constants.DefaultWorkerCount
	DefaultTaskQueueSize    = constants.DefaultTaskQueueSize
	DefaultKeepAliveMax     = constants.KeepAliveMax
	DefaultKeepAliveTimeout = constants.KeepAliveTimeoutSec
)
