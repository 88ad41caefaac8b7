// Package service runs the build library MCP server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mephi42/gopob/internal/services/library/storage"
	"github.com/mephi42/gopob/internal/services/mcp/library"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName = "gopob"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Config wires the server to an engine and a build store.
type Config struct {
	Engine  library.Engine
	Store   storage.BuildStore
	Logger  *log.Logger
	Verbose bool
}

// Server owns the MCP server and its tool bindings.
type Server struct {
	mcpServer *mcp.Server
	logger    *log.Logger
	verbose   bool
}

// New creates the server and registers the library tools.
func New(cfg Config) (*Server, error) {
	lib, err := library.New(cfg.Engine, cfg.Store)
	if err != nil {
		return nil, err
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	library.Register(mcpServer, lib)
	return &Server{mcpServer: mcpServer, logger: cfg.Logger, verbose: cfg.Verbose}, nil
}

// Serve starts the MCP server on stdio and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.logf("serving %s %s", serverName, serverVersion)
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return err
}

func (s *Server) logf(format string, args ...any) {
	if !s.verbose || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
