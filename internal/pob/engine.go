// Package pob drives a Path of Building headless wrapper through an embedded
// Lua runtime.
//
// An Engine is single-threaded. Operations that make the engine launch
// sub-scripts drain them before returning.
package pob

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mephi42/gopob/internal/luart"
	"github.com/mephi42/gopob/internal/netshim"
	apperrors "github.com/mephi42/gopob/internal/platform/errors"
	"github.com/mephi42/gopob/internal/subscript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName  = "github.com/mephi42/gopob/internal/pob"
	wrapperName = "HeadlessWrapper.lua"
)

//go:embed bridge.lua
var bridgeSource string

var errClosed = errors.New("engine is closed")

// Config configures Open.
type Config struct {
	// EngineDir is the Path of Building checkout, holding src/ and runtime/lua/.
	EngineDir string
	// LuaDir is an optional directory of extra modules searched first.
	LuaDir string
	// Chdir switches the process working directory to EngineDir/src while
	// the engine is open. The wrapper loads its sources by relative path.
	Chdir bool
	// Transport performs sub-script HTTP transfers; nil means net/http.
	Transport netshim.Transport
	// HTTPTimeout bounds transfers made by the default transport.
	HTTPTimeout time.Duration
	Logger      *log.Logger
	Verbose     bool
}

// Engine is a loaded headless wrapper with its sub-script scheduler.
type Engine struct {
	rt         *luart.Runtime
	scheduler  *subscript.Scheduler
	transport  netshim.Transport
	searchPath []string
	baseDir    string
	prevDir    string
	logger     *log.Logger
	verbose    bool
	tracer     trace.Tracer
}

// Open loads the headless wrapper and binds the host primitives it expects.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	if strings.TrimSpace(cfg.EngineDir) == "" {
		return nil, errors.New("engine dir is required")
	}
	baseDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working dir: %w", err)
	}
	engineDir := absPath(baseDir, cfg.EngineDir)
	srcDir := filepath.Join(engineDir, "src")
	wrapperPath := filepath.Join(srcDir, wrapperName)
	code, err := os.ReadFile(wrapperPath)
	if err != nil {
		return nil, fmt.Errorf("read headless wrapper: %w", err)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &netshim.HTTPTransport{Timeout: cfg.HTTPTimeout}
	}
	var searchPath []string
	if cfg.LuaDir != "" {
		searchPath = append(searchPath, absPath(baseDir, cfg.LuaDir))
	}
	searchPath = append(searchPath, filepath.Join(engineDir, "runtime", "lua"))

	e := &Engine{
		transport:  transport,
		searchPath: searchPath,
		baseDir:    baseDir,
		logger:     cfg.Logger,
		verbose:    cfg.Verbose,
		tracer:     otel.Tracer(tracerName),
	}
	_, span := e.tracer.Start(ctx, "pob.open")
	defer span.End()

	if cfg.Chdir {
		if err := os.Chdir(srcDir); err != nil {
			return nil, fmt.Errorf("enter engine dir: %w", err)
		}
		e.prevDir = baseDir
	}
	if err := e.load(ctx, string(code), wrapperPath); err != nil {
		e.Close()
		return nil, err
	}
	e.logf("engine loaded from %s", engineDir)
	return e, nil
}

// absPath resolves path against base unless it is already absolute.
func absPath(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// resolve maps a caller-supplied path to one that survives the working
// directory change made by Chdir.
func (e *Engine) resolve(path string) string {
	return absPath(e.baseDir, path)
}

func (e *Engine) load(ctx context.Context, code, wrapperPath string) error {
	rt, err := e.newRuntime(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	e.rt = rt
	if err := rt.SetGlobal("arg", map[string]any{}); err != nil {
		return err
	}
	if _, err := rt.Execute(wrapperSource(code), "@"+wrapperPath); err != nil {
		return fmt.Errorf("run headless wrapper: %w", err)
	}

	// The wrapper defines inert stand-ins for these; replace them.
	if err := luart.BridgeCompression(rt); err != nil {
		return err
	}
	scheduler, err := subscript.New(subscript.Config{
		NewRuntime:  e.newSubRuntime,
		Coordinator: coordinator{rt: rt},
		Logger:      e.logger,
		Verbose:     e.verbose,
	})
	if err != nil {
		return err
	}
	e.scheduler = scheduler
	return rt.SetGlobalFunction("LaunchSubScript", e.launchSubScript)
}

// wrapperSource comments out the wrapper's "#@" marker line, keeping line
// numbers, and appends the bridge functions to the same chunk.
func wrapperSource(code string) string {
	if strings.HasPrefix(code, "#@") {
		code = "--" + code[2:]
	}
	return code + "\n" + bridgeSource
}

func (e *Engine) newRuntime(ctx context.Context) (*luart.Runtime, error) {
	rt, err := luart.New(luart.Options{SearchPath: e.searchPath})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	if err := luart.BridgeNetwork(ctx, rt, e.transport); err != nil {
		return nil, err
	}
	return rt, nil
}

func (e *Engine) newSubRuntime(ctx context.Context) (subscript.Runtime, error) {
	rt, err := e.newRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// launchSubScript implements LaunchSubScript(code, imports, subImports, ...).
func (e *Engine) launchSubScript(args []any) ([]any, error) {
	if len(args) == 0 {
		return nil, errors.New("LaunchSubScript: script text expected")
	}
	code, ok := args[0].(string)
	if !ok {
		return nil, errors.New("LaunchSubScript: script text must be a string")
	}
	var imports []string
	for i := 1; i <= 2 && i < len(args); i++ {
		list, _ := args[i].(string)
		imports = append(imports, subscript.SplitImports(list)...)
	}
	var rest []any
	if len(args) > 3 {
		rest = args[3:]
	}
	id, err := e.scheduler.Launch(code, imports, rest...)
	if err != nil {
		return nil, fmt.Errorf("LaunchSubScript: %w", err)
	}
	return []any{id}, nil
}

// Close releases the runtime and restores the working directory.
func (e *Engine) Close() {
	if e.scheduler != nil {
		e.scheduler.Close()
	}
	if e.rt != nil {
		e.rt.Close()
		e.rt = nil
	}
	if e.prevDir != "" {
		if err := os.Chdir(e.prevDir); err != nil {
			e.logf("restore working dir: %v", err)
		}
		e.prevDir = ""
	}
}

// DrainSubScripts runs pending sub-scripts until none remain.
func (e *Engine) DrainSubScripts(ctx context.Context) error {
	if e.scheduler == nil {
		return errClosed
	}
	return e.scheduler.Drain(ctx)
}

// Eval evaluates a Lua expression in the engine's runtime.
func (e *Engine) Eval(expr string) ([]any, error) {
	if e.rt == nil {
		return nil, errClosed
	}
	return e.rt.Eval(expr)
}

func (e *Engine) call(name string, args ...any) ([]any, error) {
	if e.rt == nil {
		return nil, errClosed
	}
	return e.rt.Call("GoPOB."+name, args...)
}

func (e *Engine) logf(format string, args ...any) {
	if !e.verbose || e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}

// coordinator forwards sub-script traffic to the wrapper's main object.
type coordinator struct {
	rt *luart.Runtime
}

func (c coordinator) OnSubCall(name string, args []any) ([]any, error) {
	return c.rt.Call("GoPOB.on_sub_call", append([]any{name}, args...)...)
}

func (c coordinator) OnSubFinished(id int64, results []any) error {
	_, err := c.rt.Call("GoPOB.on_sub_finished", append([]any{id}, results...)...)
	return err
}

func (c coordinator) OnSubError(id int64, message string) error {
	_, err := c.rt.Call("GoPOB.on_sub_error", id, message)
	return err
}

func first(results []any) any {
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

func scriptResult(name string, got any) error {
	return apperrors.WithMetadata(apperrors.CodeScriptFailure,
		fmt.Sprintf("%s returned %T", name, got), map[string]string{"function": name})
}
