package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/hangcheck/internal/probe"
)

type operationsParams struct{}

func (h *handler) operationsHandler(ctx context.Context, req *mcp.CallToolRequest, _ operationsParams) (*mcp.CallToolResult, any, error) {
	cfg, _ := h.snapshot()
	def := cfg.OperationOr(probe.DefaultOperation)

	var b strings.Builder
	fmt.Fprintln(&b, "Operations:")
	for _, name := range operationNames(cfg) {
		op, err := lookup(cfg, name)
		if err != nil {
			continue
		}
		status := "available"
		if !op.Available() {
			status = "unavailable"
		}
		marker := ""
		if name == def {
			marker = " (default)"
		}
		fmt.Fprintf(&b, "  %-12s %s%s\n", name, status, marker)
	}
	return textResult(b.String())
}
