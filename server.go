// Package httpd is the public API for reactor-httpd: a single-process,
// epoll-driven static file server with a small credential-backed
// login/register surface, assembled from the internal reactor, HTTP
// protocol, storage, and logging packages.
package httpd

import (
	"context"
	"fmt"

	"github.com/behrlich/reactor-httpd/internal/constants"
	"github.com/behrlich/reactor-httpd/internal/interfaces"
	"github.com/behrlich/reactor-httpd/internal/logging"
	"github.com/behrlich/reactor-httpd/internal/reactor"
	"github.com/behrlich/reactor-httpd/internal/store"
)

// CredKind selects which credential-store backend Options assembles.
type CredKind int

const (
	// CredMemory uses an in-memory sharded-mutex store; nothing in it
	// survives a restart.
	CredMemory CredKind = iota
	// CredSQL uses a MySQL-backed store, configured by Options' SQL* fields.
	CredSQL
)

// Options holds everything needed to construct a Server, following
// DeviceParams/DefaultParams' convention of a plain struct plus a
// defaulting constructor.
type Options struct {
	// Context is carried in Options but not read by New or Run: the server
	// has no context-driven cancellation, and Close is the only way to stop
	// it.
	Context context.Context

	Port        int  // 1024-65535
	TriggerMode int  // 0-3, see spec's trigger_mode table
	TimeoutMS   int  // 0 disables idle-connection expiry
	OpenLinger  bool // SO_LINGER on the listening socket

	SrcDir        string
	MaxConns      int
	WorkerCount   int
	TaskQueueSize int

	CredKind    CredKind
	SQLHost     string
	SQLPort     int
	SQLUser     string
	SQLPassword string
	SQLDBName   string
	SQLPoolSize int

	OpenLog      bool
	LogLevel     int // 0=debug,1=info,2=warn,3=error
	LogQueueSize int // 0 -> synchronous logging

	// Logger and Observer, if set, override the logger/observer the server
	// would otherwise build from OpenLog/LogLevel and Metrics. Mainly for
	// tests that want a MockLogger/MockCredentialStore in place.
	Logger    interfaces.Logger
	Observer  interfaces.Observer
	CredStore interfaces.CredentialStore
}

// DefaultOptions returns Options with the same defaults the CLI applies
// when a flag is left unset.
func DefaultOptions() Options {
	return Options{
		Port:          8080,
		TriggerMode:   3,
		TimeoutMS:     int(constants.KeepAliveTimeoutSec) * 1000,
		OpenLinger:    false,
		SrcDir:        "./resources",
		MaxConns:      constants.MaxConnections,
		WorkerCount:   constants.DefaultWorkerCount,
		TaskQueueSize: constants.DefaultTaskQueueSize,
		CredKind:      CredMemory,
		SQLHost:       "localhost",
		SQLPort:       3306,
		SQLPoolSize:   10,
		OpenLog:       true,
		LogLevel:      1,
	}
}

// Server is a running (or not-yet-started) reactor-httpd instance.
type Server struct {
	opts    Options
	reactor *reactor.Reactor
	logger  *logging.Logger
	metrics *Metrics
	store   interfaces.CredentialStore
}

// New assembles a Server from opts: it builds the logger, metrics observer,
// and credential store (unless opts already supplies them), then binds the
// listening socket through internal/reactor. The server does not start
// accepting connections until Run is called.
func New(opts Options) (*Server, error) {
	if opts.Port == 0 {
		opts.Port = DefaultOptions().Port
	}

	var logger *logging.Logger
	if opts.Logger == nil {
		logCfg := &logging.Config{
			Level:     logging.LogLevel(opts.LogLevel),
			QueueSize: opts.LogQueueSize,
		}
		if !opts.OpenLog {
			logCfg.Level = logging.LevelError + 1 // above Errorf: suppresses everything
		}
		logger = logging.NewLogger(logCfg)
		opts.Logger = logger
	}

	metrics := NewMetrics()
	if opts.Observer == nil {
		opts.Observer = NewMetricsObserver(metrics)
	}

	credStore := opts.CredStore
	var ownedStore interfaces.CredentialStore
	if credStore == nil {
		var err error
		credStore, err = newCredStore(opts)
		if err != nil {
			return nil, WrapError("new-cred-store", err)
		}
		opts.CredStore = credStore
		ownedStore = credStore
	}

	rc := reactor.Config{
		Port:          opts.Port,
		TriggerMode:   opts.TriggerMode,
		TimeoutMS:     opts.TimeoutMS,
		OpenLinger:    opts.OpenLinger,
		SrcDir:        opts.SrcDir,
		MaxConns:      opts.MaxConns,
		WorkerCount:   opts.WorkerCount,
		TaskQueueSize: opts.TaskQueueSize,
		CredStore:     opts.CredStore,
		Logger:        opts.Logger,
		Observer:      opts.Observer,
	}

	r, err := reactor.New(rc)
	if err != nil {
		return nil, WrapError("new-reactor", err)
	}

	return &Server{opts: opts, reactor: r, logger: logger, metrics: metrics, store: ownedStore}, nil
}

func newCredStore(opts Options) (interfaces.CredentialStore, error) {
	switch opts.CredKind {
	case CredSQL:
		return store.NewSQL(store.Config{
			Host:     opts.SQLHost,
			Port:     opts.SQLPort,
			User:     opts.SQLUser,
			Password: opts.SQLPassword,
			DBName:   opts.SQLDBName,
			PoolSize: opts.SQLPoolSize,
		})
	default:
		return store.NewMemory(), nil
	}
}

// Run drives the event loop until Close is called. It blocks the calling
// goroutine; callers that want to do other work should call it in its own
// goroutine.
func (s *Server) Run() error {
	return s.reactor.Run()
}

// Close stops the reactor, tearing down every live connection, the worker
// pool, the listening socket, and (if it owns one) the credential store.
func (s *Server) Close() error {
	err := s.reactor.Close()
	if s.metrics != nil {
		s.metrics.Stop()
	}
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s.logger != nil {
		if cerr := s.logger.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Metrics returns the server's metrics instance for snapshotting.
func (s *Server) Metrics() *Metrics { return s.metrics }

// MetricsSnapshot returns a point-in-time snapshot of the server's metrics.
func (s *Server) MetricsSnapshot() MetricsSnapshot {
	if s.metrics == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.Snapshot()
}

// Addr describes the server's bound address, mainly for log lines and
// tests that need to dial it.
func (s *Server) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", s.opts.Port)
}
