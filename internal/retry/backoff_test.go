package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	ncerr "r66client/internal/errors"
	"r66client/internal/protocol"
)

var errTransient = errors.New("transient")

func always(error) bool { return true }

func fast(attempts int) *Backoff {
	return &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  attempts,
		Retryable:    always,
	}
}

func TestBackoff_SuccessAfterRetries(t *testing.T) {
	var retried []int
	b := fast(5)
	b.OnRetry = func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }

	calls := 0
	err := b.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
	}
}

func TestBackoff_SingleTryByDefault(t *testing.T) {
	b := &Backoff{Retryable: always}
	calls := 0
	err := b.Do(context.Background(), func(int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) || calls != 1 {
		t.Errorf("err = %v calls = %d, want one call", err, calls)
	}
}

func TestBackoff_PermanentError(t *testing.T) {
	calls := 0
	err := fast(5).Do(context.Background(), func(int) error {
		calls++
		return Permanent(fmt.Errorf("fatal"))
	})
	if err == nil || err.Error() != "fatal" {
		t.Errorf("expected 'fatal', got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error should stop after 1 call, got %d", calls)
	}
}

func TestBackoff_MaxAttemptsReturnsLastError(t *testing.T) {
	calls := 0
	err := fast(3).Do(context.Background(), func(int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want the last attempt's error", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

// TestBackoff_DefaultClassifier checks the default retry decision
// follows the error taxonomy.
func TestBackoff_DefaultClassifier(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		calls int
	}{
		{"timeout retried", ncerr.ErrTimeout, 3},
		{"overloaded retried", &ncerr.RemoteError{Code: protocol.ServerOverloaded}, 3},
		{"remote refusal final", &ncerr.RemoteError{Code: protocol.QueryRemotelyUnknown}, 1},
		{"plain error final", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fast(3)
			b.Retryable = nil
			calls := 0
			_ = b.Do(context.Background(), func(int) error {
				calls++
				return tt.err
			})
			if calls != tt.calls {
				t.Errorf("calls = %d, want %d", calls, tt.calls)
			}
		})
	}
}

func TestBackoff_ContextCancelled(t *testing.T) {
	b := &Backoff{InitialDelay: 5 * time.Second, MaxAttempts: 100, Retryable: always}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Do(ctx, func(int) error { return errTransient })
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want both the cause and the deadline", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation should cut the wait short")
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", Permanent(fmt.Errorf("x")), true},
		{"wrapped permanent", fmt.Errorf("ctx: %w", Permanent(errTransient)), true},
		{"not permanent", fmt.Errorf("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJitter_Range(t *testing.T) {
	d := 100 * time.Millisecond
	lower := time.Duration(float64(d) * 0.74)
	upper := time.Duration(float64(d) * 1.26)
	for i := 0; i < 100; i++ {
		if j := addJitter(d); j < lower || j > upper {
			t.Errorf("jitter %v out of expected range [%v, %v]", j, lower, upper)
		}
	}
}

func TestForAttempts(t *testing.T) {
	b := ForAttempts(4)
	if b.MaxAttempts != 4 || !b.Jitter || b.InitialDelay <= 0 {
		t.Errorf("ForAttempts(4) = %+v", b)
	}
}
