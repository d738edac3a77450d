package core

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"r66client/internal/outcome"
	"r66client/internal/probe"
	"r66client/internal/report"
)

// maxParallel bounds how many hosts a mode works on at once.
const maxParallel = 8

// ProbeMode sends a test message to each host and reports liveness.
type ProbeMode struct {
	Prober *probe.Prober
	Hosts  []string
	HTML   bool
	Out    io.Writer
}

// Run probes every host concurrently and prints the results in host
// order.  It fails with ErrOperationFailed if any host is down.
func (m *ProbeMode) Run(ctx context.Context) error {
	results := make([]outcome.Connectivity, len(m.Hosts))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, host := range m.Hosts {
		g.Go(func() error {
			results[i] = m.Prober.Probe(ctx, host)
			return nil
		})
	}
	g.Wait()

	failed := false
	for _, o := range results {
		k := outcome.KindSuccess
		if !o.OK() {
			k = outcome.KindFailure
			failed = true
		}
		text := report.ConnectivityText(o)
		if m.HTML {
			text = report.ConnectivityHTML(o)
		}
		writeReport(m.Out, m.HTML, k, text)
	}
	if failed {
		return ErrOperationFailed
	}
	return nil
}
