// Package luart hosts embedded Lua runtimes for the build engine and its
// sub-scripts.
package luart

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/mephi42/gopob/internal/netshim"
	apperrors "github.com/mephi42/gopob/internal/platform/errors"
)

// Options configures a new runtime.
type Options struct {
	// SearchPath lists directories appended to package.path, each as
	// dir/?.lua and dir/?/init.lua.
	SearchPath []string
	// Require lists modules loaded once the path is set up.
	Require []string
}

// Function is a Go function callable from Lua. Arguments and results are
// converted with ToGo and Push. A returned error is raised as a Lua error.
type Function func(args []any) ([]any, error)

// Runtime is one Lua state. It is not safe for concurrent use.
type Runtime struct {
	l *lua.State
}

var errClosed = errors.New("runtime is closed")

// New creates a runtime with the standard libraries opened.
func New(opts Options) (*Runtime, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	rt := &Runtime{l: l}

	if err := rt.extendPath(opts.SearchPath); err != nil {
		return nil, err
	}
	for _, name := range opts.Require {
		if _, err := rt.Call("require", name); err != nil {
			return nil, fmt.Errorf("require %s: %w", name, err)
		}
	}
	return rt, nil
}

// BridgeNetwork installs the network shim as lcurl.safe. Transfer spans are
// children of ctx.
func BridgeNetwork(ctx context.Context, rt *Runtime, transport netshim.Transport) error {
	if rt == nil || rt.l == nil {
		return errClosed
	}
	netshim.Register(ctx, rt.l, transport)
	return nil
}

// State exposes the underlying Lua state for bindings that need the raw API.
func (rt *Runtime) State() *lua.State {
	return rt.l
}

// Close drops the state. Later calls fail.
func (rt *Runtime) Close() {
	rt.l = nil
}

func (rt *Runtime) extendPath(dirs []string) error {
	if len(dirs) == 0 {
		return nil
	}
	l := rt.l
	l.Global("package")
	if l.TypeOf(-1) != lua.TypeTable {
		l.Pop(1)
		return errors.New("package library is not loaded")
	}
	l.Field(-1, "path")
	current, _ := l.ToString(-1)
	l.Pop(1)

	entries := []string{}
	if current != "" {
		entries = append(entries, current)
	}
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		dir = filepath.ToSlash(dir)
		entries = append(entries, dir+"/?.lua", dir+"/?/init.lua")
	}
	l.PushString(strings.Join(entries, ";"))
	l.SetField(-2, "path")
	l.Pop(1)
	return nil
}

// Execute loads code as a chunk named chunkName and runs it with args.
func (rt *Runtime) Execute(code, chunkName string, args ...any) ([]any, error) {
	if rt.l == nil {
		return nil, errClosed
	}
	l := rt.l
	base := l.Top()
	if err := lua.LoadBuffer(l, code, chunkName, ""); err != nil {
		return nil, rt.failure(base, "load "+chunkName, err)
	}
	for _, arg := range args {
		Push(l, arg)
	}
	return rt.protectedCall(base, len(args), chunkName)
}

// ExecuteFile runs the Lua file at path with args.
func (rt *Runtime) ExecuteFile(path string, args ...any) ([]any, error) {
	if rt.l == nil {
		return nil, errClosed
	}
	l := rt.l
	base := l.Top()
	if err := lua.LoadFile(l, path, ""); err != nil {
		return nil, rt.failure(base, "load "+path, err)
	}
	for _, arg := range args {
		Push(l, arg)
	}
	return rt.protectedCall(base, len(args), path)
}

// Call calls the function stored at a dotted global path, such as
// "GoPOB.save_xml".
func (rt *Runtime) Call(name string, args ...any) ([]any, error) {
	if rt.l == nil {
		return nil, errClosed
	}
	l := rt.l
	base := l.Top()
	if err := rt.pushPath(name); err != nil {
		l.SetTop(base)
		return nil, err
	}
	if l.TypeOf(-1) != lua.TypeFunction {
		l.SetTop(base)
		return nil, apperrors.WithMetadata(apperrors.CodeScriptFailure,
			fmt.Sprintf("%s is not a function", name), map[string]string{"function": name})
	}
	for _, arg := range args {
		Push(l, arg)
	}
	return rt.protectedCall(base, len(args), name)
}

// Eval returns the values of a Lua expression.
func (rt *Runtime) Eval(expr string) ([]any, error) {
	return rt.Execute("return "+expr, "=eval")
}

// Global returns the Go value of a dotted global path.
func (rt *Runtime) Global(name string) (any, error) {
	if rt.l == nil {
		return nil, errClosed
	}
	base := rt.l.Top()
	defer rt.l.SetTop(base)
	if err := rt.pushPath(name); err != nil {
		return nil, err
	}
	return ToGo(rt.l, -1), nil
}

// SetGlobal assigns value to a global variable.
func (rt *Runtime) SetGlobal(name string, value any) error {
	if rt.l == nil {
		return errClosed
	}
	Push(rt.l, value)
	rt.l.SetGlobal(name)
	return nil
}

// SetGlobalFunction binds fn to a global name.
func (rt *Runtime) SetGlobalFunction(name string, fn Function) error {
	if rt.l == nil {
		return errClosed
	}
	rt.l.PushGoFunction(wrap(fn))
	rt.l.SetGlobal(name)
	return nil
}

func wrap(fn Function) lua.Function {
	return func(l *lua.State) int {
		args := make([]any, l.Top())
		for i := range args {
			args[i] = ToGo(l, i+1)
		}
		results, err := fn(args)
		if err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
		for _, r := range results {
			Push(l, r)
		}
		return len(results)
	}
}

func (rt *Runtime) pushPath(name string) error {
	l := rt.l
	parts := strings.Split(name, ".")
	l.Global(parts[0])
	for i, part := range parts[1:] {
		if l.TypeOf(-1) != lua.TypeTable {
			return apperrors.WithMetadata(apperrors.CodeScriptFailure,
				fmt.Sprintf("%s is not a table", strings.Join(parts[:i+1], ".")),
				map[string]string{"path": name})
		}
		l.Field(-1, part)
		l.Remove(-2)
	}
	return nil
}

func (rt *Runtime) protectedCall(base, nargs int, name string) ([]any, error) {
	l := rt.l
	if err := l.ProtectedCall(nargs, lua.MultipleReturns, 0); err != nil {
		return nil, rt.failure(base, name, err)
	}
	results := make([]any, l.Top()-base)
	for i := range results {
		results[i] = ToGo(l, base+1+i)
	}
	l.SetTop(base)
	return results, nil
}

// failure converts the error object left on the stack into a domain error
// and restores the stack to base.
func (rt *Runtime) failure(base int, name string, err error) error {
	l := rt.l
	msg := ""
	if l.Top() > base {
		if s, ok := lua.ToStringMeta(l, -1); ok {
			msg = s
		}
	}
	l.SetTop(base)
	if msg == "" {
		msg = err.Error()
	}
	return apperrors.WrapWithMetadata(apperrors.CodeScriptFailure, msg, map[string]string{"chunk": name}, err)
}
