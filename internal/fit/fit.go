// Package fit evaluates candidate items against a build by comparing the
// calculator output with and without each item equipped in each slot it
// fits.
package fit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	apperrors "github.com/mephi42/gopob/internal/platform/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/mephi42/gopob/internal/fit"

// Threshold is the smallest delta magnitude reported.
const Threshold = 0.001

// Output is a calculator snapshot keyed by stat name.
type Output map[string]any

// Result maps slot to stat to delta for one candidate.
type Result map[string]map[string]float64

// Item is an engine-native item handle.
type Item any

// Override asks the calculator to evaluate as if Item occupied Slot.
type Override struct {
	Slot string
	Item Item
}

// Calculator evaluates one build.
type Calculator interface {
	// Output returns the snapshot with no override.
	Output() Output
	// Calculate evaluates with o applied for this call only.
	Calculate(o Override) (Output, error)
}

// Build is what Fit needs from the engine.
type Build interface {
	Slots() ([]string, error)
	NewItem(descriptor string) (Item, error)
	ItemFitsSlot(item Item, slot string) (bool, error)
	Calculator() (Calculator, error)
}

// SlotGuard is implemented by builds whose slot assignment can be saved and
// restored. Fit restores the slot after every overridden calculation.
type SlotGuard interface {
	SlotState(slot string) (any, error)
	RestoreSlotState(slot string, state any) error
}

// ItemReleaser is implemented by builds that hold engine-side item handles.
type ItemReleaser interface {
	ReleaseItem(item Item) error
}

// Fit returns one Result per candidate, in order. A candidate the engine
// cannot construct aborts the call with CodeInvalidItemDescriptor.
func Fit(ctx context.Context, build Build, candidates []string) ([]Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "fit.items")
	defer span.End()
	span.SetAttributes(attribute.Int("fit.candidates", len(candidates)))

	results := make([]Result, 0, len(candidates))
	if len(candidates) == 0 {
		return results, nil
	}
	if build == nil {
		return nil, errors.New("build is required")
	}

	slots, err := build.Slots()
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	for i, descriptor := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := fitCandidate(build, slots, i, descriptor)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func fitCandidate(build Build, slots []string, index int, descriptor string) (result Result, err error) {
	item, err := build.NewItem(descriptor)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeInvalidItemDescriptor,
			fmt.Sprintf("candidate %d: %v", index, err),
			map[string]string{"candidate": strconv.Itoa(index)}, err)
	}
	if releaser, ok := build.(ItemReleaser); ok {
		defer func() {
			if releaseErr := releaser.ReleaseItem(item); releaseErr != nil && err == nil {
				err = fmt.Errorf("candidate %d: release item: %w", index, releaseErr)
			}
		}()
	}

	result = Result{}
	for _, slot := range slots {
		fits, err := build.ItemFitsSlot(item, slot)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: check slot %s: %w", index, slot, err)
		}
		if !fits {
			continue
		}
		deltas, err := evaluate(build, item, slot)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: slot %s: %w", index, slot, err)
		}
		result[slot] = deltas
	}
	return result, nil
}

// evaluate fetches a fresh calculator, since it may be stateful, and diffs
// its unmodified output against the output with item in slot.
func evaluate(build Build, item Item, slot string) (map[string]float64, error) {
	calc, err := build.Calculator()
	if err != nil {
		return nil, fmt.Errorf("calculator: %w", err)
	}
	original := calc.Output()

	guard, guarded := build.(SlotGuard)
	var state any
	if guarded {
		if state, err = guard.SlotState(slot); err != nil {
			return nil, fmt.Errorf("save slot state: %w", err)
		}
	}
	overridden, calcErr := calc.Calculate(Override{Slot: slot, Item: item})
	if guarded {
		if err := guard.RestoreSlotState(slot, state); err != nil {
			return nil, fmt.Errorf("restore slot state: %w", err)
		}
	}
	if calcErr != nil {
		return nil, fmt.Errorf("calculate: %w", calcErr)
	}
	return Diff(original, overridden), nil
}

// Diff returns after minus before for every key numeric on both sides,
// treating a missing key as 0, keeping deltas larger than Threshold.
func Diff(before, after Output) map[string]float64 {
	deltas := map[string]float64{}
	visit := func(key string) {
		if _, done := deltas[key]; done {
			return
		}
		b, ok := numeric(before, key)
		if !ok {
			return
		}
		a, ok := numeric(after, key)
		if !ok {
			return
		}
		if d := a - b; math.Abs(d) > Threshold {
			deltas[key] = d
		}
	}
	for key := range before {
		visit(key)
	}
	for key := range after {
		visit(key)
	}
	return deltas
}

func numeric(out Output, key string) (float64, bool) {
	value, ok := out[key]
	if !ok {
		return 0, true
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
