package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	pobcmd "github.com/mephi42/gopob/internal/cmd/pob"
	platformcmd "github.com/mephi42/gopob/internal/platform/cmd"
	"github.com/mephi42/gopob/internal/platform/config"
)

// main runs the pob command line.
func main() {
	cfg, err := pobcmd.LoadConfig()
	if err != nil {
		config.Exitf("load config: %v", err)
	}
	log.SetPrefix("[POB] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := pobcmd.NewRootCommand(cfg)
	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServicePOB, root.ExecuteContext)
	config.ExitOnError(err)
}
