package pob

import (
	"context"
	"errors"
	"fmt"

	"github.com/mephi42/gopob/internal/fit"
	"github.com/mephi42/gopob/internal/luart"
)

// Fit evaluates candidate item texts against the current build.
func (e *Engine) Fit(ctx context.Context, items []string) ([]fit.Result, error) {
	if e.rt == nil {
		return nil, errClosed
	}
	return fit.Fit(ctx, engineBuild{e: e}, items)
}

// itemHandle is the bridge's id for a constructed item.
type itemHandle float64

// engineBuild exposes the current build to the fit package. It also
// implements fit.SlotGuard and fit.ItemReleaser.
type engineBuild struct {
	e *Engine
}

func (b engineBuild) Slots() ([]string, error) {
	res, err := b.e.call("slots")
	if err != nil {
		return nil, err
	}
	return stringList(first(res))
}

func (b engineBuild) NewItem(descriptor string) (fit.Item, error) {
	res, err := b.e.call("new_item", descriptor)
	if err != nil {
		return nil, err
	}
	id, ok := first(res).(float64)
	if !ok {
		msg := "item was not constructed"
		if len(res) > 1 {
			if s, ok := res[1].(string); ok && s != "" {
				msg = s
			}
		}
		return nil, errors.New(msg)
	}
	return itemHandle(id), nil
}

func (b engineBuild) ItemFitsSlot(item fit.Item, slot string) (bool, error) {
	h, err := handle(item)
	if err != nil {
		return false, err
	}
	res, err := b.e.call("item_fits", float64(h), slot)
	if err != nil {
		return false, err
	}
	fits, _ := first(res).(bool)
	return fits, nil
}

func (b engineBuild) Calculator() (fit.Calculator, error) {
	res, err := b.e.call("calculator")
	if err != nil {
		return nil, err
	}
	id, ok := first(res).(float64)
	if !ok || len(res) < 2 {
		return nil, scriptResult("calculator", first(res))
	}
	return &engineCalculator{e: b.e, id: id, output: output(res[1])}, nil
}

func (b engineBuild) SlotState(slot string) (any, error) {
	res, err := b.e.call("slot_state", slot)
	if err != nil {
		return nil, err
	}
	return first(res), nil
}

func (b engineBuild) RestoreSlotState(slot string, state any) error {
	_, err := b.e.call("restore_slot_state", slot, state)
	return err
}

func (b engineBuild) ReleaseItem(item fit.Item) error {
	h, err := handle(item)
	if err != nil {
		return err
	}
	_, err = b.e.call("release_item", float64(h))
	return err
}

type engineCalculator struct {
	e      *Engine
	id     float64
	output fit.Output
}

func (c *engineCalculator) Output() fit.Output {
	return c.output
}

func (c *engineCalculator) Calculate(o fit.Override) (fit.Output, error) {
	h, err := handle(o.Item)
	if err != nil {
		return nil, err
	}
	res, err := c.e.call("calculate", c.id, o.Slot, float64(h))
	if err != nil {
		return nil, err
	}
	return output(first(res)), nil
}

func handle(item fit.Item) (itemHandle, error) {
	h, ok := item.(itemHandle)
	if !ok {
		return 0, fmt.Errorf("item %T was not created by this engine", item)
	}
	return h, nil
}

// output keeps the string-keyed entries of a calculator output table.
func output(v any) fit.Output {
	switch m := v.(type) {
	case map[string]any:
		return fit.Output(m)
	case luart.Table:
		out := fit.Output{}
		for key, value := range m {
			if name, ok := key.(string); ok {
				out[name] = value
			}
		}
		return out
	}
	return fit.Output{}
}

// stringList accepts a Lua sequence of strings. An empty table converts to
// an empty map, not a slice.
func stringList(v any) ([]string, error) {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case map[string]any:
		if len(list) == 0 {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list of strings, got %T", v)
}
