package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultTransport is used for hosts that do not name one.
	DefaultTransport = TransportTCP

	// DefaultWebSocketPath is the request path for ws hosts.
	DefaultWebSocketPath = "/r66"

	// DefaultBlockSize is the data block size for direct transfers.
	DefaultBlockSize = 64 * 1024

	// MaxBlockSize caps block_size to keep single packets reasonable.
	MaxBlockSize = 16 * 1024 * 1024

	// DefaultTimeout of zero waits for completion without bound.
	DefaultTimeout time.Duration = 0

	// DefaultConnTimeout bounds TCP/SSH connection establishment.
	DefaultConnTimeout = 30 * time.Second

	// DefaultSSHPort is the standard SSH port for gateways.
	DefaultSSHPort = 22

	// DefaultRegistryObject is the object key read from a bucket.
	DefaultRegistryObject = "registry.yaml"

	// DefaultLogMaxSizeMB is the rotation threshold of the log file.
	DefaultLogMaxSizeMB = 10
)
