package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpcmd "github.com/mephi42/gopob/internal/cmd/mcp"
	platformcmd "github.com/mephi42/gopob/internal/platform/cmd"
	"github.com/mephi42/gopob/internal/platform/config"
)

// main serves the build library over MCP on stdio.
func main() {
	cfg, err := mcpcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[MCP] ")
	logger := platformcmd.NewLogger(os.Stderr, platformcmd.ServiceMCP)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcpcmd.Run(ctx, cfg, logger); err != nil {
		log.Printf("failed to serve MCP: %v", err)
		config.ExitOnError(err)
	}
}
