package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestCollector_Connections(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	if c.ActiveConnections() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveConnections())
	}

	c.ConnectionClosed()
	if c.ActiveConnections() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total should remain 2, got %d", c.TotalConnections())
	}
}

func TestCollector_Outcomes(t *testing.T) {
	c := New()

	c.Probe(true)
	c.Probe(false)
	c.Probe(false)
	c.TransferSucceeded()
	c.TransferWarned()
	c.TransferFailed()
	c.TransferFailed()
	c.Retry()
	c.BytesSent(65536)
	c.BytesSent(100)

	s := c.Snapshot()
	if s.ProbesOK != 1 || s.ProbesFailed != 2 {
		t.Errorf("probes = %d/%d", s.ProbesOK, s.ProbesFailed)
	}
	if s.TransfersOK != 1 || s.TransfersWarned != 1 || s.TransfersFailed != 2 {
		t.Errorf("transfers = %d/%d/%d", s.TransfersOK, s.TransfersWarned, s.TransfersFailed)
	}
	if s.Retries != 1 || s.BytesOut != 65636 {
		t.Errorf("retries/bytes = %d/%d", s.Retries, s.BytesOut)
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("connection refused")
	c.RecordError("remote T: storage refused")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	snap := c.Snapshot()
	if snap.LastErrorMessage != "remote T: storage refused" {
		t.Errorf("last error = %q", snap.LastErrorMessage)
	}
	if snap.LastError == "" {
		t.Error("last error time should be set")
	}
}

// TestCollector_NilSafe verifies every method tolerates a nil receiver.
func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	c.ConnectionOpened()
	c.ConnectionClosed()
	c.Probe(true)
	c.TransferSucceeded()
	c.TransferWarned()
	c.TransferFailed()
	c.Retry()
	c.BytesSent(1)
	c.RecordError("x")

	if c.ActiveConnections() != 0 || c.TotalBytesOut() != 0 || c.ErrorCount() != 0 {
		t.Error("nil collector should report zeros")
	}
	if c.JSON() == "" {
		t.Error("nil collector should still render JSON")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ConnectionOpened()
			c.BytesSent(10)
			c.ConnectionClosed()
		}()
	}
	wg.Wait()

	if c.ActiveConnections() != 0 {
		t.Errorf("active = %d, want 0", c.ActiveConnections())
	}
	if c.TotalConnections() != 50 || c.TotalBytesOut() != 500 {
		t.Errorf("total = %d bytes = %d", c.TotalConnections(), c.TotalBytesOut())
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.TransferSucceeded()
	c.BytesSent(42)

	var s Snapshot
	if err := json.Unmarshal([]byte(c.JSON()), &s); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if s.TransfersOK != 1 || s.BytesOut != 42 {
		t.Errorf("decoded = %+v", s)
	}
}
