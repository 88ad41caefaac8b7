// Package mcp parses MCP command flags and serves the build library on stdio.
package mcp

import (
	"context"
	"flag"
	"log"
	"time"

	platformcmd "github.com/mephi42/gopob/internal/platform/cmd"
	"github.com/mephi42/gopob/internal/pob"
	"github.com/mephi42/gopob/internal/services/library/storage/sqlite"
	"github.com/mephi42/gopob/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	EngineDir   string        `env:"ENGINE_DIR"   envDefault:"PathOfBuilding"`
	LuaDir      string        `env:"LUA_DIR"`
	Library     string        `env:"LIBRARY"      envDefault:"gopob.db"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"60s"`
	Chdir       bool          `env:"CHDIR"        envDefault:"true"`
	Verbose     bool          `env:"VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.EngineDir, "engine-dir", cfg.EngineDir, "Path of Building checkout")
	fs.StringVar(&cfg.LuaDir, "lua-dir", cfg.LuaDir, "extra Lua module directory")
	fs.StringVar(&cfg.Library, "library", cfg.Library, "build library database")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "timeout for each download")
	fs.BoolVar(&cfg.Chdir, "chdir", cfg.Chdir, "run with the engine's src directory as working directory")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "verbose logging to stderr")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the engine and library and serves MCP on stdio until ctx ends.
func Run(ctx context.Context, cfg Config, logger *log.Logger) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceMCP, func(ctx context.Context) error {
		// Open the library before the engine changes the working directory.
		store, err := sqlite.Open(ctx, cfg.Library)
		if err != nil {
			return err
		}
		defer store.Close()

		engine, err := pob.Open(ctx, pob.Config{
			EngineDir:   cfg.EngineDir,
			LuaDir:      cfg.LuaDir,
			Chdir:       cfg.Chdir,
			HTTPTimeout: cfg.HTTPTimeout,
			Logger:      logger,
			Verbose:     cfg.Verbose,
		})
		if err != nil {
			return err
		}
		defer engine.Close()

		server, err := service.New(service.Config{
			Engine:  engine,
			Store:   store,
			Logger:  logger,
			Verbose: cfg.Verbose,
		})
		if err != nil {
			return err
		}
		return server.Serve(ctx)
	})
}
