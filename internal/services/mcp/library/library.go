// Package library exposes the stored build library and item fitting as MCP
// tools.
package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mephi42/gopob/internal/fit"
	"github.com/mephi42/gopob/internal/services/library/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Engine is the part of the build engine the tools drive.
type Engine interface {
	Load(xml []byte) error
	Save() ([]byte, error)
	Import(code string) error
	Export() (string, error)
	Fit(ctx context.Context, items []string) ([]fit.Result, error)
}

// Library serialises tool calls onto one engine, which is single-threaded.
type Library struct {
	mu     sync.Mutex
	engine Engine
	store  storage.BuildStore
	now    func() time.Time
}

// New creates a library over engine and store.
func New(engine Engine, store storage.BuildStore) (*Library, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if store == nil {
		return nil, errors.New("build store is required")
	}
	return &Library{engine: engine, store: store, now: time.Now}, nil
}

// Register adds the library tools to server.
func Register(server *mcp.Server, lib *Library) {
	mcp.AddTool(server, FitItemsTool(), FitItemsHandler(lib))
	mcp.AddTool(server, ListBuildsTool(), ListBuildsHandler(lib))
	mcp.AddTool(server, StoreBuildTool(), StoreBuildHandler(lib))
	mcp.AddTool(server, ExportBuildTool(), ExportBuildHandler(lib))
}

// withBuild loads the named build into the engine and runs fn while holding
// the engine.
func (l *Library) withBuild(ctx context.Context, name string, fn func(Engine) error) error {
	build, err := l.store.Get(ctx, name)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.engine.Load(build.XML); err != nil {
		return fmt.Errorf("load build %q: %w", name, err)
	}
	return fn(l.engine)
}
