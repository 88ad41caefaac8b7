package luart

import (
	"cmp"
	"slices"
	"sort"

	"github.com/Shopify/go-lua"
)

// maxDepth bounds table conversion so self-referencing tables terminate.
const maxDepth = 16

// Table is a Lua table with at least one non-string key that is not a
// sequence. Keys are float64 or string, so numeric keys survive a round trip.
type Table map[any]any

// Push pushes the Lua representation of v. Values without a Lua
// counterpart are pushed as userdata.
func Push(l *lua.State, v any) {
	switch value := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(value)
	case int:
		l.PushInteger(value)
	case int64:
		l.PushNumber(float64(value))
	case float64:
		l.PushNumber(value)
	case float32:
		l.PushNumber(float64(value))
	case string:
		l.PushString(value)
	case []byte:
		l.PushString(string(value))
	case []string:
		l.CreateTable(len(value), 0)
		for i, item := range value {
			l.PushString(item)
			l.RawSetInt(-2, i+1)
		}
	case []any:
		l.CreateTable(len(value), 0)
		for i, item := range value {
			Push(l, item)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.CreateTable(0, len(value))
		for _, key := range sortedKeys(value) {
			Push(l, value[key])
			l.SetField(-2, key)
		}
	case map[string]float64:
		l.CreateTable(0, len(value))
		for _, key := range sortedKeys(value) {
			l.PushNumber(value[key])
			l.SetField(-2, key)
		}
	case Table:
		l.CreateTable(0, len(value))
		for _, key := range tableKeys(value) {
			Push(l, key)
			Push(l, value[key])
			l.RawSet(-3)
		}
	case Function:
		l.PushGoFunction(wrap(value))
	case lua.Function:
		l.PushGoFunction(value)
	default:
		l.PushUserData(value)
	}
}

// ToGo converts the value at index. Numbers become float64, sequences
// []any, tables keyed only by strings map[string]any and any other table a
// Table. Functions and threads become nil.
func ToGo(l *lua.State, index int) any {
	return toGo(l, index, 0)
}

func toGo(l *lua.State, index, depth int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return value
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		if depth >= maxDepth {
			return nil
		}
		return tableToGo(l, index, depth+1)
	case lua.TypeUserData, lua.TypeLightUserData:
		return l.ToUserData(index)
	default:
		return nil
	}
}

func tableToGo(l *lua.State, index, depth int) any {
	index = l.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		count++
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if count == 0 {
		return map[string]any{}
	}
	if isArray && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			result = append(result, toGo(l, -1, depth))
			l.Pop(1)
		}
		return result
	}

	table := make(Table, count)
	stringKeys := true
	l.PushNil()
	for l.Next(index) {
		switch l.TypeOf(-2) {
		case lua.TypeString:
			key, _ := l.ToString(-2)
			table[key] = toGo(l, -1, depth)
		case lua.TypeNumber:
			// ToString would convert the key in place and break Next.
			key, _ := l.ToNumber(-2)
			table[key] = toGo(l, -1, depth)
			stringKeys = false
		}
		l.Pop(1)
	}
	if !stringKeys {
		return table
	}
	output := make(map[string]any, len(table))
	for key, value := range table {
		output[key.(string)] = value
	}
	return output
}

// tableKeys orders numeric keys first, ascending, then string keys.
func tableKeys(t Table) []any {
	keys := make([]any, 0, len(t))
	for key := range t {
		switch key.(type) {
		case float64, string:
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, func(a, b any) int {
		af, aNum := a.(float64)
		bf, bNum := b.(float64)
		switch {
		case aNum && bNum:
			return cmp.Compare(af, bf)
		case aNum:
			return -1
		case bNum:
			return 1
		default:
			return cmp.Compare(a.(string), b.(string))
		}
	})
	return keys
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
