// Package config defines the client configuration for r66client and
// provides helpers for parsing SSH gateway specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ncerr "r66client/internal/errors"
	"r66client/util"
)

// Transport names accepted in host entries.
const (
	TransportTCP = "tcp"
	TransportWS  = "ws"
)

// Registry kinds.
const (
	RegistryNone  = ""
	RegistryFile  = "file"
	RegistryMinio = "minio"
)

// Config holds every tuneable for a client run.  It carries no
// database credentials: the registry is reached through its own
// section, with secrets coming from the environment only.
type Config struct {
	ClientID  string         `yaml:"client_id"`
	Verbose   int            `yaml:"verbose"`
	LogFile   string         `yaml:"log_file"`
	BlockSize int            `yaml:"block_size"`
	Timeout   time.Duration  `yaml:"timeout"`
	Hosts     []HostConfig   `yaml:"hosts"`
	Registry  RegistryConfig `yaml:"registry"`

	// Path is the file the configuration was read from.
	Path string `yaml:"-"`
}

// HostConfig describes how to reach one remote host identity.
type HostConfig struct {
	ID        string `yaml:"id"`
	Address   string `yaml:"address"`
	Transport string `yaml:"transport"`
	Path      string `yaml:"path"` // ws request path

	// ── SSH gateway ──────────────────────────────────────────────────
	Gateway       string `yaml:"gateway"` // [user@]host[:port]
	SSHKey        string `yaml:"ssh_key"`
	SSHAgent      bool   `yaml:"ssh_agent"`
	SSHPassword   bool   `yaml:"ssh_password"`
	StrictHostKey bool   `yaml:"strict_host_key"`
	KnownHosts    string `yaml:"known_hosts"`
}

// RegistryConfig locates the persistent host/rule registry.
type RegistryConfig struct {
	Kind     string `yaml:"kind"`
	Path     string `yaml:"path"`
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Object   string `yaml:"object"`
	Secure   bool   `yaml:"secure"`

	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Host returns the entry for id.
func (c *Config) Host(id string) (HostConfig, bool) {
	for _, h := range c.Hosts {
		if h.ID == id {
			return h, true
		}
	}
	return HostConfig{}, false
}

// HostIDs lists configured host identities in file order.
func (c *Config) HostIDs() []string {
	out := make([]string, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		out = append(out, h.ID)
	}
	return out
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	for i := range c.Hosts {
		h := &c.Hosts[i]
		if h.Transport == "" {
			h.Transport = DefaultTransport
		}
		if h.Transport == TransportWS && h.Path == "" {
			h.Path = DefaultWebSocketPath
		}
	}
	if c.Registry.Kind == RegistryMinio && c.Registry.Object == "" {
		c.Registry.Object = DefaultRegistryObject
	}
}

// ── Gateway-spec parser ──────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid gateway spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid gateway port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("gateway host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.BlockSize <= 0 || c.BlockSize > MaxBlockSize {
		return &ncerr.ConfigError{
			Field:   "block_size",
			Value:   c.BlockSize,
			Message: fmt.Sprintf("must be between 1 and %d", MaxBlockSize),
			Hint:    "omit it to use the default of 65536",
		}
	}
	if c.Timeout < 0 {
		return &ncerr.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}
	if c.Verbose < 0 || c.Verbose > 3 {
		return &ncerr.ConfigError{Field: "verbose", Value: c.Verbose, Message: "must be between 0 and 3"}
	}

	seen := make(map[string]bool, len(c.Hosts))
	for i, h := range c.Hosts {
		field := fmt.Sprintf("hosts[%d]", i)
		if h.ID == "" {
			return &ncerr.ConfigError{Field: field + ".id", Message: "host id is required"}
		}
		if seen[h.ID] {
			return &ncerr.ConfigError{Field: field + ".id", Value: h.ID, Message: "duplicate host id"}
		}
		seen[h.ID] = true

		if _, _, err := util.SplitAddr(h.Address); err != nil {
			return &ncerr.ConfigError{
				Field:   field + ".address",
				Value:   h.Address,
				Message: err.Error(),
				Hint:    "use host:port, e.g. r66.example.com:6666",
			}
		}
		switch h.Transport {
		case TransportTCP, TransportWS:
		default:
			return &ncerr.ConfigError{
				Field:   field + ".transport",
				Value:   h.Transport,
				Message: "unknown transport",
				Hint:    "use tcp or ws",
			}
		}
		if h.Gateway != "" {
			if _, _, _, err := ParseTunnelSpec(h.Gateway); err != nil {
				return &ncerr.ConfigError{Field: field + ".gateway", Value: h.Gateway, Message: err.Error()}
			}
		}
	}

	return c.Registry.validate()
}

func (r *RegistryConfig) validate() error {
	switch r.Kind {
	case RegistryNone:
		return nil
	case RegistryFile:
		if r.Path == "" {
			return &ncerr.ConfigError{Field: "registry.path", Message: "required for a file registry"}
		}
		return nil
	case RegistryMinio:
		if r.Endpoint == "" || r.Bucket == "" {
			return &ncerr.ConfigError{
				Field:   "registry",
				Message: "endpoint and bucket are required for a minio registry",
			}
		}
		if r.AccessKey == "" || r.SecretKey == "" {
			return &ncerr.ConfigError{
				Field:   "registry",
				Message: "missing object store credentials",
				Hint:    "set R66_MINIO_ACCESS_KEY and R66_MINIO_SECRET_KEY (a .env next to the config file works)",
			}
		}
		return nil
	default:
		return &ncerr.ConfigError{
			Field:   "registry.kind",
			Value:   r.Kind,
			Message: "unknown registry kind",
			Hint:    "use file or minio",
		}
	}
}
