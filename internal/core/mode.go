// Package core is the orchestration layer.  It composes the session,
// the probe, the transfer orchestrator and the registry into complete
// operational modes and provides a builder that selects the right
// mode from the command line options.
//
// Architecture layers (bottom → top):
//
//	transport  →  channel  →  client  →  probe / transfer  →  core  →  cmd (CLI)
//
// The builder in this package is the single dispatch point between
// the parsed command line and the session.
package core

import (
	"context"
	"errors"
)

// Mode represents a complete operational mode of r66client (probe,
// transfer, list-hosts or list-rules).  A mode writes its report and
// returns; the session it runs on is closed by the caller.
type Mode interface {
	Run(ctx context.Context) error
}

// ErrOperationFailed is returned by a mode when at least one of its
// operations ended in a failure outcome.  The outcome itself has
// already been reported.
var ErrOperationFailed = errors.New("one or more operations failed")
