// Package errors provides domain-specific error types for r66client.
//
// These types carry structured context (operation, host, remote code)
// that lets the orchestration layer classify failures into outcomes
// instead of propagating them as exceptional.
package errors

import (
	"errors"
	"fmt"
	"net"

	"r66client/internal/protocol"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrClosedChannel   = errors.New("session channel is closed")
	ErrNotConnected    = errors.New("not connected")
	ErrTimeout         = errors.New("operation timed out")
	ErrNoTransferID    = errors.New("no transfer id")
	ErrUnknownHost     = errors.New("host has no configured address")
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
)

// ── Structured error types ───────────────────────────────────────────

// ConnectionError represents a failure to establish or reuse a channel
// to a remote host.
type ConnectionError struct {
	Op        string // "dial", "handshake", "write", "read"
	Host      string // host identity
	Addr      string // network address involved
	Err       error
	Retryable bool
}

func (e *ConnectionError) Error() string {
	s := fmt.Sprintf("%s %s", e.Op, e.Host)
	if e.Addr != "" && e.Addr != e.Host {
		s += " (" + e.Addr + ")"
	}
	s += fmt.Sprintf(": %v", e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RemoteError is a well-formed negative answer from the peer.  A code
// of [protocol.Warning] marks a partial success.
type RemoteError struct {
	Code    protocol.ErrorCode
	Message string
	Runner  *protocol.Runner
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "remote: " + e.Code.String()
	}
	return fmt.Sprintf("remote %s: %s", e.Code, e.Message)
}

// IsWarning reports whether the peer flagged a non-fatal problem.
func (e *RemoteError) IsWarning() bool {
	if e.Code == protocol.Warning {
		return true
	}
	return e.Runner != nil && e.Runner.ErrorInfo == protocol.Warning
}

// RegistryError wraps a persistent-store failure.
type RegistryError struct {
	Op  string // "hosts", "rules", "open"
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// SSHError represents an SSH-gateway failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config key
	Value   interface{} // the invalid value (nil if missing)
	Message string
	Hint    string // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := "config: " + e.Field
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// UsageError is a command-line misuse.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a ConnectionError, detecting retryability from the
// underlying error.
func Wrap(op, host, addr string, err error) *ConnectionError {
	return &ConnectionError{
		Op:        op,
		Host:      host,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Remote converts an error packet into a RemoteError.
func Remote(p protocol.Error) *RemoteError {
	return &RemoteError{Code: p.Code, Message: p.Message, Runner: p.Runner}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying by a caller.
// Remote refusals are final; timeouts and temporary network errors
// are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code == protocol.ServerOverloaded || re.Code == protocol.RemoteShutdown
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	return classifyRetryable(err)
}

// IsConnection reports whether err happened at the transport level,
// meaning the connection it came from should not be reused.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) || errors.Is(err, ErrTimeout)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return true
		}
		return opErr.Temporary() //nolint:staticcheck // still the best hint available
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
