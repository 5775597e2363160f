// Package mcp provides the aptmcp MCP server, registering one tool per
// package management operation and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/deixis/aptmcp"
	"github.com/deixis/aptmcp/internal/apt"
	"github.com/deixis/aptmcp/internal/logging"
	"github.com/deixis/aptmcp/internal/progress"
	"github.com/deixis/aptmcp/internal/result"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *apt.Engine
	log    logging.Logger
}

// NewServer creates an MCP server with a tool registered for every
// operation in the apt dispatch table. log receives every operation log in
// addition to the calling session.
func NewServer(engine *apt.Engine, log logging.Logger) *mcp.Server {
	if log == nil {
		log = logging.Nop
	}
	h := &handler{engine: engine, log: log}

	s := mcp.NewServer(&mcp.Implementation{Name: "aptmcp", Version: aptmcp.Version}, &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools:   &mcp.ToolCapabilities{ListChanged: false},
			Logging: &mcp.LoggingCapabilities{},
		},
	})

	for _, op := range apt.Operations() {
		tool := &mcp.Tool{Name: op.Name, Description: op.Description}
		switch op.Args {
		case apt.PackageList:
			mcp.AddTool(s, tool, func(ctx context.Context, req *mcp.CallToolRequest, p PackagesParams) (*mcp.CallToolResult, *result.OperationResult, error) {
				return h.call(ctx, req, op.Name, p, apt.Request{Packages: p.Packages})
			})
		case apt.SinglePackage:
			mcp.AddTool(s, tool, func(ctx context.Context, req *mcp.CallToolRequest, p PackageParams) (*mcp.CallToolResult, *result.OperationResult, error) {
				return h.call(ctx, req, op.Name, p, apt.Request{Package: p.Package})
			})
		default:
			mcp.AddTool(s, tool, func(ctx context.Context, req *mcp.CallToolRequest, p NoParams) (*mcp.CallToolResult, *result.OperationResult, error) {
				return h.call(ctx, req, op.Name, p, apt.Request{})
			})
		}
	}

	return s
}

// call validates the tool input and runs the operation with sinks bound to
// the calling session.
func (h *handler) call(ctx context.Context, req *mcp.CallToolRequest, name string, params any, ar apt.Request) (*mcp.CallToolResult, *result.OperationResult, error) {
	if err := Validate(params); err != nil {
		return operationResult(&result.OperationResult{
			Success: false,
			Summary: fmt.Sprintf("Invalid arguments for %s: %v", name, err),
		})
	}

	ar.Log = logging.Tee(h.log, sessionLogger(ctx, req.Session))
	ar.Progress = sessionProgress(req, name)

	res, err := h.engine.Dispatch(ctx, name, ar)
	if err != nil {
		return operationResult(&result.OperationResult{Success: false, Summary: err.Error()})
	}
	return operationResult(res)
}

// operationResult renders res as text content and attaches it as structured
// content. Failed operations are tool errors.
func operationResult(res *result.OperationResult) (*mcp.CallToolResult, *result.OperationResult, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.Render()}},
		IsError: !res.Success,
	}, res, nil
}

// sessionProgress forwards progress as notifications/progress when the
// client supplied a progress token.
func sessionProgress(req *mcp.CallToolRequest, name string) progress.Reporter {
	if req == nil || req.Session == nil {
		return progress.Nop
	}
	token := req.Params.GetProgressToken()
	if token == nil {
		return progress.Nop
	}
	return progress.Func(func(ctx context.Context, completed, total int) {
		_ = req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
			ProgressToken: token,
			Message:       fmt.Sprintf("%s: step %d/%d", name, completed, total),
			Progress:      float64(completed),
			Total:         float64(total),
		})
	})
}
