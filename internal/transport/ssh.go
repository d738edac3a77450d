package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"r66client/internal/tunnel"
	"r66client/util"
)

// SSHDialer routes connections through an SSH gateway.  The gateway
// session is opened lazily on the first Dial, reopened if it dropped
// and torn down on Close.  Several hosts may share one SSHDialer.
type SSHDialer struct {
	tunnel *tunnel.SSHTunnel
	config *tunnel.SSHConfig
	logger *util.Logger
	mu     sync.Mutex
}

// NewSSHDialer creates a dialer that forwards connections through the
// gateway described by cfg.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		logger: logger,
	}
}

func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.IsAlive() {
		return nil
	}

	d.logger.Verbose("opening SSH gateway %s@%s", d.config.User, d.config.Addr())
	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	d.logger.Verbose("SSH gateway %s established", d.config.Addr())
	return nil
}

// Dial connects to address through the gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the gateway session.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
