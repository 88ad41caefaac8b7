package luart

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPushToGoRoundTrip(t *testing.T) {
	rt := newRuntime(t, Options{})
	l := rt.State()

	in := map[string]any{
		"name":    "Belt",
		"life":    220.0,
		"enabled": true,
		"mods":    []any{"+220 to maximum Life", "+30% to Fire Resistance"},
		"output":  map[string]any{"Life": 4200.0, "Mana": 512.5},
		"empty":   map[string]any{},
	}
	Push(l, in)
	got := ToGo(l, -1)
	l.Pop(1)

	if diff := cmp.Diff(in, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestToGoTableShapes(t *testing.T) {
	rt := newRuntime(t, Options{})

	got, err := rt.Eval(`{ [1] = "a", [3] = "c" }, { 10, 20, x = 1 }, {}`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	want := []any{
		Table{1.0: "a", 3.0: "c"},
		Table{1.0: 10.0, 2.0: 20.0, "x": 1.0},
		map[string]any{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("shapes mismatch (-want +got):\n%s", diff)
	}
}

func TestSparseTableKeepsNumericKeys(t *testing.T) {
	rt := newRuntime(t, Options{})

	got, err := rt.Execute(`local t = ... return t[5], t["5"], t.name, t[1.5]`, "=sparse",
		Table{5.0: "five", "name": "Belt", 1.5: "half"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if diff := cmp.Diff([]any{"five", nil, "Belt", "half"}, got); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}

	back, err := rt.Execute(`return { [5] = "x", [2] = { [7] = true } }`, "=nested")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := Table{5.0: "x", 2.0: Table{7.0: true}}
	if diff := cmp.Diff(want, back[0]); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}

	l := rt.State()
	Push(l, want)
	again := ToGo(l, -1)
	l.Pop(1)
	if diff := cmp.Diff(want, again); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestToGoSelfReferenceTerminates(t *testing.T) {
	rt := newRuntime(t, Options{})

	got, err := rt.Execute(`local t = { name = "loop" } t.self = t return t`, "=loop")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	m, ok := got[0].(map[string]any)
	if !ok || m["name"] != "loop" {
		t.Fatalf("result = %#v", got[0])
	}
}

func TestPushBytesAndStrings(t *testing.T) {
	rt := newRuntime(t, Options{})

	got, err := rt.Execute(`local b, list = ... return #b, list[2]`, "=bytes", []byte{0, 1, 2}, []string{"x", "y"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if diff := cmp.Diff([]any{3.0, "y"}, got); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}
