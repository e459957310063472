// Package mcp provides the hangcheck MCP server, registering the probe
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/hangcheck"
	"github.com/deixis/hangcheck/internal/config"
	"github.com/deixis/hangcheck/internal/probe"
	"github.com/deixis/hangcheck/internal/report"
	"github.com/deixis/hangcheck/internal/supervisor"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.Mutex
	cfg    *config.Config
	sup    supervisor.Supervisor // template copied for every probe
	store  report.Store
	logger *slog.Logger
}

// NewServer creates an MCP server with all hangcheck tools registered.
// sup is used as a template; each probe_run call works on a copy.
func NewServer(cfg *config.Config, sup supervisor.Supervisor, store report.Store, opts ...ServerOption) *mcp.Server {
	var so serverOptions
	for _, o := range opts {
		o(&so)
	}
	logger := so.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &handler{
		cfg:    cfg,
		sup:    sup,
		store:  store,
		logger: logger,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateConfigFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "hangcheck", Version: hangcheck.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "probe_run",
		Description: `Probe one risky operation in an isolated child process and classify the outcome.

The verdict is one of SUCCESS, HANG (no result before the timeout; the child is killed),
CRASH (the child died from a signal) or UNEXPECTED FAILURE (the operation reported an error,
or the child exited without a result). Exactly one child is spawned per call, with no retries.
Results are stored for drill-down via probe_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "probe_inspect",
		Description: "Show the full evidence of an earlier probe_run, including all captured child output.",
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "probe_operations",
		Description: "List the operations that can be probed and whether each is available on this machine.",
	}, h.operationsHandler)

	return s
}

// ServerOption configures the hangcheck MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by tool handlers.
func WithLogger(l *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = l
	}
}

// snapshot returns the current config and a copy of the supervisor template.
func (h *handler) snapshot() (*config.Config, supervisor.Supervisor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg, h.sup
}

// updateConfigFromRoots queries the client for MCP roots and, if the first
// root is a local directory, reloads .hangcheck from it. Children are then
// started in that directory so they see the same file.
// This is called during session initialization, before any tool calls.
func (h *handler) updateConfigFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	dir := u.Path

	loaded, err := config.Load(dir)
	if err != nil {
		h.logger.Warn("ignoring config from client root", "root", dir, "error", err)
		return
	}
	cfg := loaded.Config

	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
	h.sup.Dir = dir
	h.sup.Timeout = cfg.Timeout()
	h.sup.PollInterval = cfg.PollInterval()
	h.sup.KillGrace = cfg.KillGrace()
	h.sup.MaxOutput = cfg.MaxOutputBytes()
	h.logger.Info("loaded config from client root", "root", dir, "path", loaded.Path)
}

// lookup resolves name for cfg. The command operation belongs to the
// config a handler currently serves, never to the process-wide registry,
// so a root without a command cannot inherit one from an earlier config.
func lookup(cfg *config.Config, name string) (probe.Operation, error) {
	if name == probe.CommandOperation {
		if len(cfg.Command) == 0 {
			return nil, probe.ErrUnknownOperation{Name: name}
		}
		return probe.Command{Argv: cfg.Command}, nil
	}
	return probe.Lookup(name)
}

// operationNames lists what lookup can resolve for cfg, sorted.
func operationNames(cfg *config.Config) []string {
	var names []string
	for _, n := range probe.Names() {
		if n != probe.CommandOperation {
			names = append(names, n)
		}
	}
	if len(cfg.Command) > 0 {
		names = append(names, probe.CommandOperation)
		slices.Sort(names)
	}
	return names
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
