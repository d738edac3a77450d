package core

import (
	"fmt"
	"io"
	"os"

	"r66client/config"
	ncerr "r66client/internal/errors"
	"r66client/internal/metrics"
	"r66client/internal/probe"
	"r66client/internal/registry"
	"r66client/internal/retry"
	"r66client/internal/session"
	"r66client/internal/transfer"
	"r66client/internal/transport"
	"r66client/internal/tunnel"
	"r66client/util"
)

// Action selects the mode Build produces.
type Action int

const (
	ActionTransfer Action = iota
	ActionProbe
	ActionListHosts
	ActionListRules
)

func (a Action) String() string {
	switch a {
	case ActionTransfer:
		return "transfer"
	case ActionProbe:
		return "probe"
	case ActionListHosts:
		return "list-hosts"
	case ActionListRules:
		return "list-rules"
	default:
		return "unknown"
	}
}

// Options are the per-run choices taken from the command line.
type Options struct {
	Action Action
	// Hosts targeted by a probe or a transfer.  An empty list probes
	// every configured host.
	Hosts    []string
	Rule     string
	File     string
	Info     string
	Checksum bool
	// Retries is the number of extra attempts for a failed transfer.
	Retries int
	HTML    bool

	// Out receives the reports.  Defaults to os.Stdout.
	Out io.Writer
}

// Check reports missing or conflicting options for the action.
func (o *Options) Check() error {
	switch o.Action {
	case ActionTransfer:
		switch {
		case len(o.Hosts) == 0:
			return &ncerr.UsageError{Message: "transfer needs a remote host (-H)"}
		case o.Rule == "":
			return &ncerr.UsageError{Message: "transfer needs a rule (-r)"}
		case o.File == "":
			return &ncerr.UsageError{Message: "transfer needs a file (-f)"}
		}
	case ActionProbe, ActionListHosts, ActionListRules:
	default:
		return &ncerr.UsageError{Message: fmt.Sprintf("unknown action %d", o.Action)}
	}
	if o.Retries < 0 {
		return &ncerr.UsageError{Message: "--retries must not be negative"}
	}
	return nil
}

// Build constructs the Mode selected by opts on sess.
func Build(sess *session.Session, cfg *config.Config, opts Options) (Mode, error) {
	if err := opts.Check(); err != nil {
		return nil, err
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	switch opts.Action {
	case ActionProbe:
		hosts := opts.Hosts
		if len(hosts) == 0 {
			hosts = cfg.HostIDs()
		}
		if len(hosts) == 0 {
			return nil, &ncerr.UsageError{Message: "no host to probe: use -H or add hosts to the configuration"}
		}
		return &ProbeMode{
			Prober: probe.New(sess),
			Hosts:  hosts,
			HTML:   opts.HTML,
			Out:    out,
		}, nil

	case ActionListHosts, ActionListRules:
		return &ListMode{
			Registry: sess.Registry,
			Rules:    opts.Action == ActionListRules,
			Out:      out,
		}, nil
	}

	reqs := make([]transfer.Request, 0, len(opts.Hosts))
	for _, h := range opts.Hosts {
		req := transfer.NewRequest(h, opts.Rule, opts.File)
		req.Info = opts.Info
		req.Checksum = opts.Checksum
		req.BlockSize = cfg.BlockSize
		reqs = append(reqs, req)
	}
	return &TransferMode{
		Orchestrator: transfer.New(sess),
		Requests:     reqs,
		Retries:      opts.Retries,
		Breakers:     retry.NewBreakers(breakerConfig(sess.Logger)),
		HTML:         opts.HTML,
		Out:          out,
		Logger:       sess.Logger,
		Metrics:      sess.Metrics,
	}, nil
}

func breakerConfig(logger *util.Logger) *retry.CircuitBreakerConfig {
	cfg := retry.DefaultCircuitBreakerConfig()
	cfg.OnStateChange = func(name string, from, to retry.State) {
		logger.Verbose("circuit %s: %s -> %s", name, from, to)
	}
	return cfg
}

// ── session assembly ─────────────────────────────────────────────────

// BuildSession assembles the connector from cfg.Hosts and the session
// around it.  reg may be nil when no registry is configured.
func BuildSession(cfg *config.Config, reg *registry.Lookup, logger *util.Logger, m *metrics.Collector) *session.Session {
	return session.New(session.Options{
		Connector: BuildDirectory(cfg, logger),
		Registry:  reg,
		Logger:    logger,
		Metrics:   m,
		Timeout:   cfg.Timeout,
		ClientID:  cfg.ClientID,
	})
}

// BuildDirectory maps every configured host to an endpoint.  Direct
// hosts share one TCP dialer; hosts behind the same gateway with the
// same credentials share one SSH session.
func BuildDirectory(cfg *config.Config, logger *util.Logger) *transport.Directory {
	direct := &transport.TCPDialer{Timeout: config.DefaultConnTimeout}
	gateways := make(map[string]*transport.SSHDialer)

	dir := transport.NewDirectory()
	for _, h := range cfg.Hosts {
		var d transport.Dialer = direct
		if h.Gateway != "" {
			sc := gatewayConfig(h)
			key := gatewayKey(sc)
			sd, ok := gateways[key]
			if !ok {
				sd = transport.NewSSHDialer(sc, logger)
				gateways[key] = sd
			}
			d = sd
		}

		framing := transport.FramingStream
		if h.Transport == config.TransportWS {
			framing = transport.FramingWebSocket
		}
		dir.Add(&transport.Endpoint{
			Host:             h.ID,
			Address:          h.Address,
			Framing:          framing,
			Path:             h.Path,
			Dialer:           d,
			HandshakeTimeout: config.DefaultConnTimeout,
		})
	}
	return dir
}

// gatewayConfig returns the SSH settings of a host.  The gateway spec
// was checked by config.Validate.
func gatewayConfig(h config.HostConfig) *tunnel.SSHConfig {
	user, host, port, _ := config.ParseTunnelSpec(h.Gateway)
	return &tunnel.SSHConfig{
		User:          user,
		Host:          host,
		Port:          port,
		KeyPath:       h.SSHKey,
		PromptPass:    h.SSHPassword,
		UseAgent:      h.SSHAgent,
		StrictHostKey: h.StrictHostKey,
		KnownHosts:    h.KnownHosts,
		ConnTimeout:   config.DefaultConnTimeout,
	}
}

func gatewayKey(c *tunnel.SSHConfig) string {
	return fmt.Sprintf("%s@%s|%s|%t|%t|%t|%s",
		c.User, c.Addr(), c.KeyPath, c.PromptPass, c.UseAgent, c.StrictHostKey, c.KnownHosts)
}

// BuildRegistry opens the registry store named by cfg.Registry.  With
// no registry configured the lookup answers with its sentinels.
func BuildRegistry(cfg *config.Config, logger *util.Logger) (*registry.Lookup, error) {
	r := cfg.Registry
	switch r.Kind {
	case config.RegistryNone:
		return registry.New(nil, logger), nil
	case config.RegistryFile:
		return registry.New(registry.NewFileStore(r.Path), logger), nil
	case config.RegistryMinio:
		store, err := registry.NewMinioStore(registry.MinioOptions{
			Endpoint:  r.Endpoint,
			Bucket:    r.Bucket,
			Object:    r.Object,
			Secure:    r.Secure,
			AccessKey: r.AccessKey,
			SecretKey: r.SecretKey,
		})
		if err != nil {
			return nil, &ncerr.ConfigError{Field: "registry", Message: err.Error()}
		}
		return registry.New(store, logger), nil
	default:
		return nil, &ncerr.ConfigError{Field: "registry.kind", Value: r.Kind, Message: "unknown registry kind"}
	}
}
