// Command hangcheck probes a risky operation in a re-executed child process
// and reports whether it succeeded, failed, crashed or hung.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/deixis/hangcheck"
	"github.com/deixis/hangcheck/internal/config"
	hcmcp "github.com/deixis/hangcheck/internal/mcp"
	"github.com/deixis/hangcheck/internal/probe"
	"github.com/deixis/hangcheck/internal/report"
	"github.com/deixis/hangcheck/internal/supervisor"
	"github.com/deixis/hangcheck/internal/verdict"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run dispatches on argv and returns the process exit status.
func run(argv []string, stdout, stderr io.Writer) int {
	if probe.DetectMode(argv) == probe.Child {
		return childMain(stdout, stderr)
	}

	args := argv[1:]
	if len(args) == 0 || (strings.HasPrefix(args[0], "-") && !isHelpFlag(args[0])) {
		return runMain(args, stdout, stderr)
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "run":
		return runMain(args, stdout, stderr)
	case "list":
		return listMain(args, stdout, stderr)
	case "mcp":
		return mcpMain(args, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, hangcheck.Version)
		return verdict.ExitSuccess
	case "help", "-h", "--help":
		usage(stdout)
		return verdict.ExitSuccess
	default:
		fmt.Fprintf(stderr, "hangcheck: unknown command %q\n", cmd)
		usage(stderr)
		return verdict.ExitUsage
	}
}

func isHelpFlag(s string) bool {
	return s == "-h" || s == "--help"
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: hangcheck [command] [flags]

Commands:
  run         Probe an operation in a child process (default)
  list        List operations and whether they are available
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Exit status: 0 success or skipped, 1 unexpected failure, 2 hang, 3 crash,
4 infrastructure failure, 64 usage error.

Use "hangcheck <command> -h" for command-specific flags.`)
}

// --- child ---

// childMain runs inside the re-executed process. Anything it logs lands in
// the captured output, so only warnings and errors are emitted.
func childMain(stdout, stderr io.Writer) int {
	logger := newLogger(stderr, slog.LevelWarn)

	if err := loadCommandOperation(); err != nil {
		logger.Warn("loading config", "error", err)
	}

	r := &probe.Runner{Stdout: stdout, Logger: logger}
	return r.Run(context.Background(), os.Getenv(probe.OperationEnv))
}

// loadCommandOperation registers the configured external command, if any.
// The parent does the same, so both sides agree on what "command" means.
func loadCommandOperation() error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	if argv := loaded.Config.Command; len(argv) > 0 {
		probe.Register(probe.CommandOperation, probe.Command{Argv: argv})
	}
	return nil
}

// --- run ---

func runMain(args []string, stdout, stderr io.Writer) int {
	var (
		operation string
		timeout   time.Duration
		poll      time.Duration
		jsonOut   bool
		verbose   bool
		logLevel  string
	)
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&operation, "operation", "o", "", "operation to probe (default from config, else "+probe.DefaultOperation+")")
	fs.DurationVar(&timeout, "timeout", 0, "override the configured deadline (e.g. 10s)")
	fs.DurationVar(&poll, "poll", 0, "override the poll interval (e.g. 100ms)")
	fs.BoolVar(&jsonOut, "json", false, "print the verdict as JSON")
	fs.BoolVarP(&verbose, "verbose", "v", false, "include captured output in the report")
	fs.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")
	if code, done := parseFlags(fs, args, stderr); done {
		return code
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "hangcheck run: unexpected arguments %q\n", fs.Args())
		return verdict.ExitUsage
	}
	if timeout < 0 || poll < 0 {
		fmt.Fprintln(stderr, "hangcheck run: --timeout and --poll must be positive")
		return verdict.ExitUsage
	}

	loaded, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "hangcheck: %v\n", err)
		return verdict.ExitUsage
	}
	cfg := loaded.Config
	if len(cfg.Command) > 0 {
		probe.Register(probe.CommandOperation, probe.Command{Argv: cfg.Command})
	}

	if logLevel == "" {
		logLevel = cfg.Level()
	}
	level, err := parseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "hangcheck run: %v\n", err)
		return verdict.ExitUsage
	}
	logger := newLogger(stderr, level)
	if loaded.Path != "" {
		logger.Debug("loaded config", "path", loaded.Path)
	}

	name := operation
	if name == "" {
		name = cfg.OperationOr(probe.DefaultOperation)
	}
	op, err := probe.Lookup(name)
	if err != nil {
		fmt.Fprintf(stderr, "hangcheck run: %v\n", err)
		return verdict.ExitUsage
	}

	// Precondition: skip rather than spawn a child that can only fail.
	if !op.Available() {
		fmt.Fprintf(stdout, "SKIPPED  %s is not available on this machine; nothing was run\n", name)
		return verdict.ExitSuccess
	}

	sup := newSupervisor(cfg, logger)
	if timeout > 0 {
		sup.Timeout = timeout
	}
	if poll > 0 {
		sup.PollInterval = poll
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := sup.Probe(ctx, name)
	if err != nil {
		var infra *supervisor.InfrastructureError
		if errors.As(err, &infra) {
			fmt.Fprintf(stderr, "hangcheck: infrastructure failure: %v\n", err)
			return verdict.ExitInfrastructure
		}
		fmt.Fprintf(stderr, "hangcheck: %v\n", err)
		if ctx.Err() != nil {
			return verdict.ExitInfrastructure
		}
		return verdict.ExitUsage
	}

	if jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fmt.Fprintf(stderr, "hangcheck: encoding verdict: %v\n", err)
			return verdict.ExitInfrastructure
		}
	} else {
		color.NoColor = color.NoColor || !isTerminal(stdout)
		fmt.Fprint(stdout, verdict.Format(v, verbose))
	}
	return v.Kind.ExitCode()
}

// --- list ---

func listMain(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	if code, done := parseFlags(fs, args, stderr); done {
		return code
	}

	loaded, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "hangcheck: %v\n", err)
		return verdict.ExitUsage
	}
	cfg := loaded.Config
	if len(cfg.Command) > 0 {
		probe.Register(probe.CommandOperation, probe.Command{Argv: cfg.Command})
	}
	def := cfg.OperationOr(probe.DefaultOperation)

	for _, name := range probe.Names() {
		op, err := probe.Lookup(name)
		if err != nil {
			continue
		}
		status := "available"
		if !op.Available() {
			status = "unavailable"
		}
		if name == def {
			status += " (default)"
		}
		fmt.Fprintf(stdout, "%-12s %s\n", name, status)
	}
	return verdict.ExitSuccess
}

// --- mcp ---

func mcpMain(args []string, stdout, stderr io.Writer) int {
	var (
		instructions bool
		httpAddr     string
	)
	fs := pflag.NewFlagSet("mcp", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	fs.StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	if code, done := parseFlags(fs, args, stderr); done {
		return code
	}

	if instructions {
		fmt.Fprint(stdout, hcmcp.Instructions)
		return verdict.ExitSuccess
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, httpAddr, stderr); err != nil {
		fmt.Fprintf(stderr, "hangcheck: %v\n", err)
		return verdict.ExitInfrastructure
	}
	return verdict.ExitSuccess
}

func serve(ctx context.Context, httpAddr string, stderr io.Writer) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := loaded.Config

	level, err := parseLevel(cfg.Level())
	if err != nil {
		return err
	}
	logger := newLogger(stderr, level)

	disk := report.NewDiskStore()
	defer func() {
		if err := disk.Remove(); err != nil {
			logger.Warn("removing stored verdicts", "error", err)
		}
	}()
	store := report.NewLRUStore(report.DefaultCacheBytes, disk)

	sup := newSupervisor(cfg, logger)
	server := hcmcp.NewServer(cfg, *sup, store, hcmcp.WithLogger(logger))

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr, logger)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string, logger *slog.Logger) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

// parseFlags parses args and reports whether the command should stop, with
// the status to exit with.
func parseFlags(fs *pflag.FlagSet, args []string, stderr io.Writer) (int, bool) {
	err := fs.Parse(args)
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, pflag.ErrHelp):
		return verdict.ExitSuccess, true
	default:
		fmt.Fprintf(stderr, "hangcheck %s: %v\n", fs.Name(), err)
		return verdict.ExitUsage, true
	}
}

func loadConfig() (*config.LoadResult, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(wd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

func newSupervisor(cfg *config.Config, logger *slog.Logger) *supervisor.Supervisor {
	return &supervisor.Supervisor{
		Timeout:      cfg.Timeout(),
		PollInterval: cfg.PollInterval(),
		KillGrace:    cfg.KillGrace(),
		MaxOutput:    cfg.MaxOutputBytes(),
		Logger:       logger,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
