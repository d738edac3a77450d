// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"r66client/config"
	"r66client/internal/core"
	ncerr "r66client/internal/errors"
	"r66client/internal/metrics"
	"r66client/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X r66client/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Exit codes.
const (
	ExitOK      = 0
	ExitRuntime = 1
	ExitUsage   = 2
)

// ExitCode maps an Execute error to the process exit status: usage
// and configuration errors exit 2, anything else 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ue *ncerr.UsageError
	var ce *ncerr.ConfigError
	if errors.As(err, &ue) || errors.As(err, &ce) {
		return ExitUsage
	}
	return ExitRuntime
}

// Execute parses args and runs the selected r66client mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout)
}

func execute(ctx context.Context, args []string, stdout io.Writer) error {
	var opts core.Options
	fs := flag.NewFlagSet("r66client", flag.ContinueOnError)

	// ── mode ─────────────────────────────────────────────────────
	var probeMode, listHosts, listRules bool
	fs.BoolVar(&probeMode, "probe", false, "Send a test message to the hosts")
	fs.BoolVar(&listHosts, "list-hosts", false, "List host ids from the registry")
	fs.BoolVar(&listRules, "list-rules", false, "List rule ids from the registry")

	// ── transfer ─────────────────────────────────────────────────
	fs.StringSliceVarP(&opts.Hosts, "host", "H", nil, "Remote host id (repeatable)")
	fs.StringVarP(&opts.Rule, "rule", "r", "", "Transfer rule id")
	fs.StringVarP(&opts.File, "file", "f", "", "Local file to send")
	fs.StringVarP(&opts.Info, "info", "i", "", "Transfer information passed to the remote")
	fs.BoolVar(&opts.Checksum, "md5", false, "Send per-block and whole-file MD5 digests")
	fs.IntVar(&opts.Retries, "retries", 0, "Extra attempts after a connection failure")

	var blockSize int
	var timeout time.Duration
	fs.IntVarP(&blockSize, "block-size", "b", 0, "Data block size in bytes (overrides config)")
	fs.DurationVar(&timeout, "timeout", 0, "Wait bound per exchange, e.g. 30s (0 waits for completion)")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	var showMetrics, dryRun bool
	fs.BoolVar(&opts.HTML, "html", false, "Render outcomes as <br>-separated markup")
	fs.BoolVar(&showMetrics, "metrics", false, "Print a JSON metrics snapshot on exit")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration and options, then exit")
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return &ncerr.UsageError{Message: err.Error()}
	}
	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "r66client %s\n", version)
		return nil
	}

	if fs.NArg() != 1 {
		return &ncerr.UsageError{Message: "exactly one client configuration file is required (use --help for usage)"}
	}
	action, err := selectAction(probeMode, listHosts, listRules)
	if err != nil {
		return err
	}
	opts.Action = action
	opts.Out = stdout

	// ── configuration ────────────────────────────────────────────
	path := fs.Arg(0)
	cfg, err := config.Load(path)
	if err != nil {
		return &ncerr.ConfigError{Field: "file", Value: path, Message: err.Error()}
	}
	if fs.Changed("verbose") {
		cfg.Verbose = clampVerbosity(verbose)
	}
	if fs.Changed("block-size") {
		cfg.BlockSize = blockSize
	}
	if fs.Changed("timeout") {
		cfg.Timeout = timeout
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.AttachFile(util.LogFileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  config.DefaultLogMaxSizeMB,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	})

	if err := cfg.Validate(); err != nil {
		logger.Close()
		return err
	}
	reg, err := core.BuildRegistry(cfg, logger)
	if err != nil {
		logger.Close()
		return err
	}
	if err := opts.Check(); err != nil {
		reg.Close()
		logger.Close()
		return err
	}

	// ── run ──────────────────────────────────────────────────────
	m := metrics.New()
	sess := core.BuildSession(cfg, reg, logger, m)
	mode, err := core.Build(sess, cfg, opts)
	if err != nil {
		sess.Close()
		logger.Close()
		return err
	}
	logger.Debug("config %s: %d host(s), mode %s", cfg.Path, len(cfg.Hosts), opts.Action)

	if dryRun {
		fmt.Fprintf(stdout, "configuration OK: %s, %d host(s)\n", opts.Action, len(cfg.Hosts))
		return errors.Join(sess.Close(), logger.Close())
	}

	runErr := mode.Run(ctx)
	closeErr := sess.Close()
	if closeErr != nil {
		logger.Warn("shutdown: %v", closeErr)
	}
	if showMetrics {
		fmt.Fprintln(stdout, m.JSON())
	}
	logger.Close()
	return errors.Join(runErr, closeErr)
}

// ── helpers ──────────────────────────────────────────────────────────

func selectAction(probe, listHosts, listRules bool) (core.Action, error) {
	var picked []string
	action := core.ActionTransfer
	if probe {
		picked = append(picked, "--probe")
		action = core.ActionProbe
	}
	if listHosts {
		picked = append(picked, "--list-hosts")
		action = core.ActionListHosts
	}
	if listRules {
		picked = append(picked, "--list-rules")
		action = core.ActionListRules
	}
	if len(picked) > 1 {
		return 0, &ncerr.UsageError{Message: strings.Join(picked, ", ") + " are mutually exclusive"}
	}
	return action, nil
}

func clampVerbosity(v int) int {
	if v > 3 {
		return 3
	}
	return v
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `r66client – OpenR66 transfer client v%s

Sends files to OpenR66 partners and checks that they answer.

Usage:
  r66client [options] -H <host> -r <rule> -f <file> <config>    Transfer
  r66client --probe [-H <host>...] <config>                     Probe
  r66client --list-hosts | --list-rules <config>                Registry

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  r66client -H hosta -r send -f data.csv client.yaml          Send a file
  r66client -H hosta,hostb -r send -f data.csv --md5 client.yaml
  r66client --probe client.yaml                               Probe every host
  r66client --timeout 30s --retries 2 -H hosta -r send -f x client.yaml
`)
}
