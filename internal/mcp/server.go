// Package mcp exposes the lounge to MCP clients over stdio, acting as the
// signed-in user.
package mcp

import (
	"context"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/monsters-club/lounge/internal/lounge"
)

const serverName = "lounge"

// Server serves lounge tools backed by a chat controller.
type Server struct {
	sdk *mcp.Server
}

// NewServer registers the lounge tools for ctrl.
func NewServer(ctrl *lounge.Controller, version string) *Server {
	s := &Server{
		sdk: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil),
	}
	registerTools(s.sdk, ctrl)
	return s
}

// Run serves one session on transport until the client disconnects or
// ctx is done.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.sdk.Run(ctx, transport)
}

// RunStdio serves on stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
