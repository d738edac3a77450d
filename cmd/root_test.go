package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"r66client/internal/core"
	ncerr "r66client/internal/errors"
	"r66client/internal/peer"
	"r66client/internal/protocol"
)

// writeConfig writes a client configuration for a peer at addr and a
// file registry next to it, and returns the config path.
func writeConfig(t *testing.T, addr string) string {
	t.Helper()
	dir := t.TempDir()
	reg := filepath.Join(dir, "registry.yaml")
	if err := os.WriteFile(reg, []byte("hosts:\n  - id: hosta\n  - id: hostb\nrules:\n  - id: send\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := fmt.Sprintf(`client_id: test-client
hosts:
  - id: hosta
    address: %s
registry:
  kind: file
  path: %s
`, addr, reg)
	path := filepath.Join(dir, "client.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func startPeer(t *testing.T) *peer.Server {
	t.Helper()
	srv, err := peer.NewServer(map[protocol.RuleID]peer.Behavior{"send": peer.Accept})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Close)
	return srv
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	var out bytes.Buffer
	if err := execute(context.Background(), []string{"--version"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "r66client ") {
		t.Errorf("version output = %q", out.String())
	}
}

// TestExecute_Help verifies --help returns without error.
func TestExecute_Help(t *testing.T) {
	if err := Execute(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_UsageErrors verifies that argument mistakes exit 2.
func TestExecute_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"two configs", []string{"a.yaml", "b.yaml"}},
		{"unknown flag", []string{"--nonexistent-flag", "a.yaml"}},
		{"conflicting modes", []string{"--probe", "--list-hosts", "a.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execute(context.Background(), tt.args, &bytes.Buffer{})
			var ue *ncerr.UsageError
			if !errors.As(err, &ue) {
				t.Fatalf("expected UsageError, got %v", err)
			}
			if code := ExitCode(err); code != ExitUsage {
				t.Errorf("exit code = %d, want %d", code, ExitUsage)
			}
		})
	}
}

// TestExecute_ConflictMessage names the conflicting flags.
func TestExecute_ConflictMessage(t *testing.T) {
	err := execute(context.Background(), []string{"--list-hosts", "--list-rules", "c.yaml"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("error should mention mutually exclusive: %v", err)
	}
}

// TestExecute_ConfigErrors verifies that configuration problems exit 2.
func TestExecute_ConfigErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("hosts:\n  - id: hosta\n    address: nowhere\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{missing, bad} {
		err := execute(context.Background(), []string{"--probe", path}, &bytes.Buffer{})
		var ce *ncerr.ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: expected ConfigError, got %v", path, err)
		}
		if code := ExitCode(err); code != ExitUsage {
			t.Errorf("%s: exit code = %d, want %d", path, code, ExitUsage)
		}
	}
}

// TestExecute_TransferMissingOptions is a usage error after the
// configuration loaded.
func TestExecute_TransferMissingOptions(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:6666")
	err := execute(context.Background(), []string{"-H", "hosta", path}, &bytes.Buffer{})
	if ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:6666")
	var out bytes.Buffer
	err := execute(context.Background(), []string{"--dry-run", "-H", "hosta", "-r", "send", "-f", "x", path}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "configuration OK: transfer") {
		t.Errorf("dry-run output = %q", out.String())
	}
}

// TestExecute_ListHosts prints the registry content.
func TestExecute_ListHosts(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:6666")
	var out bytes.Buffer
	if err := execute(context.Background(), []string{"--list-hosts", path}, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hosta\nhostb\n" {
		t.Errorf("output = %q", out.String())
	}
}

// TestExecute_Probe runs a probe against a loopback peer.
func TestExecute_Probe(t *testing.T) {
	srv := startPeer(t)
	path := writeConfig(t, srv.Addr())

	var out bytes.Buffer
	err := execute(context.Background(), []string{"--probe", "--metrics", path}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}
	got := out.String()
	if !strings.Contains(got, "Test Message    SUCCESS") {
		t.Errorf("missing probe report:\n%s", got)
	}
	if !strings.Contains(got, `"probes_ok": 1`) {
		t.Errorf("missing metrics snapshot:\n%s", got)
	}
}

// TestExecute_Transfer sends a file end to end.
func TestExecute_Transfer(t *testing.T) {
	srv := startPeer(t)
	path := writeConfig(t, srv.Addr())
	file := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(file, []byte("quarterly numbers\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	args := []string{"-H", "hosta", "-r", "send", "-f", file, "--md5", "-b", "4", "--timeout", "5s", path}
	if err := execute(context.Background(), args, &out); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}
	if !strings.HasPrefix(out.String(), "SUCCESS") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
	got, ok := srv.Received("report.txt")
	if !ok || string(got) != "quarterly numbers\n" {
		t.Errorf("peer received %q (%v)", got, ok)
	}
}

// TestExecute_TransferFailureExitsOne verifies a failed outcome is a
// runtime error.
func TestExecute_TransferFailureExitsOne(t *testing.T) {
	srv := startPeer(t)
	path := writeConfig(t, srv.Addr())

	var out bytes.Buffer
	err := execute(context.Background(), []string{"-H", "hosta", "-r", "unknown", "-f", path, path}, &out)
	if !errors.Is(err, core.ErrOperationFailed) {
		t.Fatalf("err = %v, want ErrOperationFailed", err)
	}
	if code := ExitCode(err); code != ExitRuntime {
		t.Errorf("exit code = %d, want %d", code, ExitRuntime)
	}
	if !strings.HasPrefix(out.String(), "Transfer in FAILURE with no Id") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{&ncerr.UsageError{Message: "x"}, ExitUsage},
		{fmt.Errorf("wrapped: %w", &ncerr.ConfigError{Field: "f"}), ExitUsage},
		{core.ErrOperationFailed, ExitRuntime},
		{errors.New("boom"), ExitRuntime},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
