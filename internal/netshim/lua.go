package netshim

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shopify/go-lua"
	apperrors "github.com/mephi42/gopob/internal/platform/errors"
)

const (
	// ModuleName is the name scripts require.
	ModuleName = "lcurl.safe"
	// GlobalName is the global the module is also bound to.
	GlobalName = "lcurl_safe"

	easyTypeName  = "gopob.netshim.easy"
	errorTypeName = "gopob.netshim.error"
	errorCategory = "CURL-EASY"
)

type luaEasy struct {
	easy     *Easy
	writeKey string
	state    *lua.State
}

// Register installs the module into l, both in package.loaded and as a global.
// Transfers started from l trace under ctx.
func Register(ctx context.Context, l *lua.State, transport Transport) {
	registerTypes(l)
	lua.Require(l, ModuleName, func(l *lua.State) int {
		pushModule(ctx, l, transport)
		return 1
	}, false)
	l.SetGlobal(GlobalName)
}

func registerTypes(l *lua.State) {
	lua.NewMetaTable(l, easyTypeName)
	l.NewTable()
	lua.SetFunctions(l, easyMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)

	lua.NewMetaTable(l, errorTypeName)
	l.NewTable()
	lua.SetFunctions(l, errorMethods, 0)
	l.SetField(-2, "__index")
	l.PushGoFunction(errorToString)
	l.SetField(-2, "__tostring")
	l.Pop(1)
}

func pushModule(ctx context.Context, l *lua.State, transport Transport) {
	l.NewTable()
	l.PushGoFunction(func(l *lua.State) int {
		e := &luaEasy{easy: NewEasy(transport).WithContext(ctx)}
		e.writeKey = fmt.Sprintf("%s.write.%p", easyTypeName, e)
		l.PushUserData(e)
		lua.SetMetaTableNamed(l, easyTypeName)
		return 1
	})
	l.SetField(-2, "easy")
	for opt, name := range optionNames {
		l.PushInteger(int(opt))
		l.SetField(-2, "OPT_"+name)
	}
	for key, name := range infoNames {
		l.PushInteger(int(key))
		l.SetField(-2, "INFO_"+name)
	}
}

var easyMethods = []lua.RegistryFunction{
	{Name: "setopt", Function: easySetOpt},
	{Name: "setopt_url", Function: easySetURL},
	{Name: "setopt_writefunction", Function: easySetWriteFunction},
	{Name: "perform", Function: easyPerform},
	{Name: "getinfo", Function: easyGetInfo},
	{Name: "close", Function: easyClose},
}

var errorMethods = []lua.RegistryFunction{
	{Name: "msg", Function: errorMsg},
	{Name: "name", Function: errorName},
	{Name: "category", Function: errorCategoryName},
}

func checkEasy(l *lua.State) *luaEasy {
	e, _ := lua.CheckUserData(l, 1, easyTypeName).(*luaEasy)
	if e == nil {
		lua.ArgumentError(l, 1, "easy handle expected")
	}
	return e
}

func checkError(l *lua.State) *apperrors.Error {
	err, _ := lua.CheckUserData(l, 1, errorTypeName).(*apperrors.Error)
	if err == nil {
		lua.ArgumentError(l, 1, "error object expected")
	}
	return err
}

// easy:setopt(opt, value) returns the handle, or nil and an error object.
func easySetOpt(l *lua.State) int {
	e := checkEasy(l)
	opt := Option(lua.CheckInteger(l, 2))
	if !opt.Supported() {
		return pushFailure(l, e.easy.SetOption(opt, ""))
	}
	if err := e.easy.SetOption(opt, lua.CheckString(l, 3)); err != nil {
		return pushFailure(l, err)
	}
	l.PushValue(1)
	return 1
}

func easySetURL(l *lua.State) int {
	e := checkEasy(l)
	e.easy.SetURL(lua.CheckString(l, 2))
	l.PushValue(1)
	return 1
}

func easySetWriteFunction(l *lua.State) int {
	e := checkEasy(l)
	if l.IsNoneOrNil(2) {
		l.PushNil()
		l.SetField(lua.RegistryIndex, e.writeKey)
		e.easy.SetWriteFunction(nil)
		l.PushValue(1)
		return 1
	}
	lua.CheckType(l, 2, lua.TypeFunction)
	l.PushValue(2)
	l.SetField(lua.RegistryIndex, e.writeKey)
	e.easy.SetWriteFunction(e.callWrite)
	l.PushValue(1)
	return 1
}

// callWrite runs the script's write function. An error raised by the
// function, or a false/nil result, aborts the transfer.
func (e *luaEasy) callWrite(chunk []byte) bool {
	l := e.state
	if l == nil {
		return false
	}
	top := l.Top()
	l.Field(lua.RegistryIndex, e.writeKey)
	l.PushString(string(chunk))
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		l.SetTop(top)
		return false
	}
	ok := l.ToBoolean(-1)
	l.SetTop(top)
	return ok
}

// easy:perform() returns nil, nil on success and nil, err on failure.
func easyPerform(l *lua.State) int {
	e := checkEasy(l)
	e.state = l
	err := e.easy.Perform()
	e.state = nil
	if err != nil {
		return pushFailure(l, err)
	}
	l.PushNil()
	l.PushNil()
	return 2
}

func easyGetInfo(l *lua.State) int {
	e := checkEasy(l)
	value, err := e.easy.Info(InfoKey(lua.CheckInteger(l, 2)))
	if err != nil {
		return pushFailure(l, err)
	}
	l.PushInteger(value)
	return 1
}

func easyClose(l *lua.State) int {
	e := checkEasy(l)
	e.easy.Close()
	l.PushNil()
	l.SetField(lua.RegistryIndex, e.writeKey)
	return 0
}

func pushFailure(l *lua.State, err error) int {
	l.PushNil()
	pushError(l, err)
	return 2
}

func pushError(l *lua.State, err error) {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		domainErr = apperrors.Wrap(apperrors.CodeTransport, err.Error(), err)
	}
	l.PushUserData(domainErr)
	lua.SetMetaTableNamed(l, errorTypeName)
}

func errorMsg(l *lua.State) int {
	l.PushString(checkError(l).Message)
	return 1
}

func errorName(l *lua.State) int {
	l.PushString(string(checkError(l).Code))
	return 1
}

func errorCategoryName(l *lua.State) int {
	l.PushString(errorCategory)
	return 1
}

func errorToString(l *lua.State) int {
	err := checkError(l)
	l.PushString(fmt.Sprintf("[%s][%s] %s", errorCategory, err.Code, err.Message))
	return 1
}
