package fit

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
)

// fakeItem is parsed from "Kind|Stat=value|Stat=value".
type fakeItem struct {
	kind  string
	stats map[string]float64
}

func parseFakeItem(descriptor string) (*fakeItem, error) {
	parts := strings.Split(descriptor, "|")
	if len(parts) < 2 || parts[0] == "" {
		return nil, errors.New("unrecognised item text")
	}
	item := &fakeItem{kind: parts[0], stats: map[string]float64{}}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("bad modifier %q", part)
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad modifier %q", part)
		}
		item.stats[key] += n
	}
	return item, nil
}

// fakeBuild sums base stats and the stats of equipped items. A leaky build
// keeps the override equipped after Calculate returns.
type fakeBuild struct {
	slots     []string
	base      Output
	equipped  map[string]*fakeItem
	leaky     bool
	calcs     int
	released  int
	slotsErr  error
	extraKeys func(stats map[string]float64) Output
}

func newFakeBuild() *fakeBuild {
	return &fakeBuild{
		slots:    []string{"Weapon 1", "Body Armour", "Belt", "Ring 1", "Ring 2"},
		base:     Output{"Life": 1000.0, "Mana": 400.0, "ClassName": "Witch", "Aura": true},
		equipped: map[string]*fakeItem{},
	}
}

func (b *fakeBuild) Slots() ([]string, error) {
	if b.slotsErr != nil {
		return nil, b.slotsErr
	}
	return b.slots, nil
}

func (b *fakeBuild) NewItem(descriptor string) (Item, error) {
	return parseFakeItem(descriptor)
}

func (b *fakeBuild) ItemFitsSlot(item Item, slot string) (bool, error) {
	it, ok := item.(*fakeItem)
	if !ok {
		return false, errors.New("not an item")
	}
	return strings.TrimRight(slot, " 12") == it.kind, nil
}

func (b *fakeBuild) Calculator() (Calculator, error) {
	b.calcs++
	return &fakeCalculator{build: b}, nil
}

func (b *fakeBuild) ReleaseItem(Item) error {
	b.released++
	return nil
}

// snapshot renders the committed state, standing in for the saved build.
func (b *fakeBuild) snapshot() string {
	slots := make([]string, 0, len(b.equipped))
	for slot := range b.equipped {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	var sb strings.Builder
	for _, slot := range slots {
		fmt.Fprintf(&sb, "%s=%v;", slot, b.equipped[slot].stats)
	}
	return sb.String()
}

func (b *fakeBuild) compute(equipped map[string]*fakeItem) Output {
	stats := map[string]float64{}
	for key, value := range b.base {
		if n, ok := value.(float64); ok {
			stats[key] = n
		}
	}
	for _, item := range equipped {
		for key, value := range item.stats {
			stats[key] += value
		}
	}
	out := Output{}
	for key, value := range b.base {
		out[key] = value
	}
	for key, value := range stats {
		out[key] = value
	}
	if b.extraKeys != nil {
		maps.Copy(out, b.extraKeys(stats))
	}
	return out
}

type fakeCalculator struct {
	build *fakeBuild
}

func (c *fakeCalculator) Output() Output {
	return c.build.compute(c.build.equipped)
}

func (c *fakeCalculator) Calculate(o Override) (Output, error) {
	item, ok := o.Item.(*fakeItem)
	if !ok {
		return nil, errors.New("override item is not an item")
	}
	equipped := maps.Clone(c.build.equipped)
	equipped[o.Slot] = item
	if c.build.leaky {
		c.build.equipped[o.Slot] = item
	}
	return c.build.compute(equipped), nil
}

// guardedBuild adds slot snapshot and restore to a fakeBuild.
type guardedBuild struct {
	*fakeBuild
	saves, restores int
}

func (g *guardedBuild) SlotState(slot string) (any, error) {
	g.saves++
	return g.equipped[slot], nil
}

func (g *guardedBuild) RestoreSlotState(slot string, state any) error {
	g.restores++
	item, _ := state.(*fakeItem)
	if item == nil {
		delete(g.equipped, slot)
		return nil
	}
	g.equipped[slot] = item
	return nil
}
