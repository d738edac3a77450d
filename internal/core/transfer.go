package core

import (
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"r66client/internal/metrics"
	"r66client/internal/outcome"
	"r66client/internal/report"
	"r66client/internal/retry"
	"r66client/internal/transfer"
	"r66client/util"
)

// TransferMode sends one file to one or more hosts.
type TransferMode struct {
	Orchestrator *transfer.Orchestrator
	Requests     []transfer.Request

	// Retries is the number of extra attempts after a retryable
	// failure.  Remote refusals are never retried.
	Retries int
	// RetryDelay is the first backoff delay (default 500ms).
	RetryDelay time.Duration
	Breakers   *retry.Breakers

	HTML    bool
	Out     io.Writer
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Run launches the transfers concurrently, one per host, and prints
// the outcomes in request order.  Warnings count as delivered.
func (m *TransferMode) Run(ctx context.Context) error {
	if m.Breakers == nil {
		m.Breakers = retry.NewBreakers(nil)
	}
	results := make([]outcome.Transfer, len(m.Requests))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, req := range m.Requests {
		g.Go(func() error {
			results[i] = m.runOne(ctx, req)
			return nil
		})
	}
	g.Wait()

	failed := false
	for _, o := range results {
		if o.Kind() == outcome.KindFailure {
			failed = true
		}
		text := report.TransferText(o)
		if m.HTML {
			text = report.TransferHTML(o)
		}
		writeReport(m.Out, m.HTML, o.Kind(), text)
	}
	if failed {
		return ErrOperationFailed
	}
	return nil
}

// runOne runs req through the host's circuit breaker, retrying
// failures that happened before or during the network exchange.
func (m *TransferMode) runOne(ctx context.Context, req transfer.Request) outcome.Transfer {
	b := retry.ForAttempts(m.Retries + 1)
	if m.RetryDelay > 0 {
		b.InitialDelay = m.RetryDelay
	}
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.Metrics.Retry()
		m.Logger.Warn("transfer to %s failed (attempt %d): %v - retrying in %v",
			req.Host, attempt, err, wait.Round(time.Millisecond))
	}

	breaker := m.Breakers.For(req.Host)
	var last outcome.Transfer
	err := b.Do(ctx, func(int) error {
		return breaker.Execute(func() error {
			last = m.Orchestrator.Transfer(ctx, req)
			if f, ok := last.(outcome.Failure); ok {
				if f.Cause != nil {
					return f.Cause
				}
				return ErrOperationFailed
			}
			return nil
		})
	})
	if last == nil {
		// the breaker refused the first attempt
		return outcome.Failure{Host: req.Host, Cause: err}
	}
	return last
}
