// Package session holds the explicit context of a client run: the
// connection pool, the exchange runner, the registry and the ambient
// logger and metrics.  Every operation receives it instead of reading
// process-wide state, so several sessions can coexist in one process.
package session

import (
	"io"
	"time"

	"r66client/internal/channel"
	"r66client/internal/client"
	ncerr "r66client/internal/errors"
	"r66client/internal/metrics"
	"r66client/internal/registry"
	"r66client/util"
)

// Session is the runtime context shared by the operations of a run.
type Session struct {
	Pool     *channel.Pool
	Client   *client.Client
	Registry *registry.Lookup
	Logger   *util.Logger
	Metrics  *metrics.Collector

	// Timeout bounds the wait for an exchange.  Zero waits until the
	// exchange itself finishes.
	Timeout time.Duration

	// ClientID names this client in logs.
	ClientID string

	dialers io.Closer
}

// Options configure New.
type Options struct {
	Connector channel.Connector
	Registry  *registry.Lookup
	Logger    *util.Logger
	Metrics   *metrics.Collector
	Timeout   time.Duration
	ClientID  string
}

// New builds a session.  When the connector also implements io.Closer
// (as *transport.Directory does), Close closes it after the pool.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New(nil, logger)
	}
	s := &Session{
		Pool:     channel.NewPool(opts.Connector, logger, opts.Metrics),
		Client:   client.New(logger, opts.Metrics),
		Registry: reg,
		Logger:   logger,
		Metrics:  opts.Metrics,
		Timeout:  opts.Timeout,
		ClientID: opts.ClientID,
	}
	if c, ok := opts.Connector.(io.Closer); ok {
		s.dialers = c
	}
	return s
}

// Close closes every open connection, then the dialers and the
// registry.  All errors are joined.
func (s *Session) Close() error {
	errs := []error{s.Pool.CloseAll()}
	if s.dialers != nil {
		errs = append(errs, s.dialers.Close())
	}
	errs = append(errs, s.Registry.Close())
	return ncerr.Join(errs...)
}
