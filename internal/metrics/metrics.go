// Package metrics provides lightweight, lock-free counters for a
// client run: connections, probes, transfers by outcome and bytes.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a client run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	probesOK          atomic.Int64
	probesFailed      atomic.Int64
	transfersOK       atomic.Int64
	transfersWarned   atomic.Int64
	transfersFailed   atomic.Int64
	bytesOut          atomic.Int64
	retries           atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── Operation metrics ────────────────────────────────────────────────

// Probe records a connectivity probe result.
func (c *Collector) Probe(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.probesOK.Add(1)
	} else {
		c.probesFailed.Add(1)
	}
}

// TransferSucceeded records a clean transfer.
func (c *Collector) TransferSucceeded() {
	if c == nil {
		return
	}
	c.transfersOK.Add(1)
}

// TransferWarned records a transfer that completed with a warning.
func (c *Collector) TransferWarned() {
	if c == nil {
		return
	}
	c.transfersWarned.Add(1)
}

// TransferFailed records a failed transfer.
func (c *Collector) TransferFailed() {
	if c == nil {
		return
	}
	c.transfersFailed.Add(1)
}

// Retry records one caller-side retry.
func (c *Collector) Retry() {
	if c == nil {
		return
	}
	c.retries.Add(1)
}

// BytesSent records n bytes of file content written to a peer.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesOut returns total file bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	ProbesOK          int64  `json:"probes_ok"`
	ProbesFailed      int64  `json:"probes_failed"`
	TransfersOK       int64  `json:"transfers_ok"`
	TransfersWarned   int64  `json:"transfers_warned"`
	TransfersFailed   int64  `json:"transfers_failed"`
	BytesOut          int64  `json:"bytes_out"`
	Retries           int64  `json:"retries"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Millisecond).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		ProbesOK:          c.probesOK.Load(),
		ProbesFailed:      c.probesFailed.Load(),
		TransfersOK:       c.transfersOK.Load(),
		TransfersWarned:   c.transfersWarned.Load(),
		TransfersFailed:   c.transfersFailed.Load(),
		BytesOut:          c.bytesOut.Load(),
		Retries:           c.retries.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
