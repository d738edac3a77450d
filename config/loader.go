package config

// loader.go - configuration loading from the client file, a .env file
// and environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables, including .env  (this file)
//   3. Client configuration file  (this file)
//   4. Defaults   (defaults.go)

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the client configuration at path, loads a .env file next
// to it when present, overlays R66_* environment variables and fills
// defaults.  It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	LoadFromEnv(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// Parse decodes a YAML document.  Unknown keys are rejected so typos
// do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the R66_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("R66_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := envInt("R66_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("R66_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := envInt("R66_BLOCK_SIZE"); v > 0 {
		cfg.BlockSize = v
	}
	if v, ok := envDuration("R66_TIMEOUT"); ok {
		cfg.Timeout = v
	}

	// Registry
	if v := os.Getenv("R66_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("R66_MINIO_ENDPOINT"); v != "" {
		cfg.Registry.Endpoint = v
	}
	if v := os.Getenv("R66_MINIO_BUCKET"); v != "" {
		cfg.Registry.Bucket = v
	}
	if envBool("R66_MINIO_SECURE") {
		cfg.Registry.Secure = true
	}
	cfg.Registry.AccessKey = os.Getenv("R66_MINIO_ACCESS_KEY")
	cfg.Registry.SecretKey = os.Getenv("R66_MINIO_SECRET_KEY")
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts a Go duration ("90s") or a bare number of seconds.
func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
