// Package mcp serves NeuroSync tools over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/neurosync/pkg/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes a tool registry as MCP tools. Each tool takes one string
// argument named "input" and answers with a single text block.
type Server struct {
	mcpServer *server.MCPServer
	log       *slog.Logger
}

// NewServer registers every tool of registry under its function name
// ("Web Search" becomes "web_search").
func NewServer(name, version string, registry *tools.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		log:       log,
	}
	if registry != nil {
		for _, t := range registry.List() {
			s.register(t)
		}
	}
	return s
}

func (s *Server) register(t tools.Tool) {
	def := mcp.NewTool(t.FunctionName(),
		mcp.WithDescription(t.Description),
		mcp.WithString("input", mcp.Required(), mcp.Description("Tool input")),
	)
	s.mcpServer.AddTool(def, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := inputArg(request.GetArguments())
		start := time.Now()
		result := t.Invoke(ctx, input)
		s.log.Debug("mcp.call",
			slog.String("tool", t.Name),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return mcp.NewToolResultText(result), nil
	})
}

func inputArg(args map[string]any) string {
	v, ok := args["input"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
