package pob

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mephi42/gopob/internal/fit"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// ReportEntry is one candidate in a YAML report.
type ReportEntry struct {
	Item  string                        `yaml:"item"`
	Slots map[string]map[string]float64 `yaml:"slots"`
}

// WriteReport writes fit results for candidates in format.
func WriteReport(w io.Writer, format string, candidates []Candidate, results []fit.Result) error {
	if len(candidates) != len(results) {
		return fmt.Errorf("have %d results for %d candidates", len(results), len(candidates))
	}
	switch format {
	case "yaml":
		return writeYAMLReport(w, candidates, results)
	case "text", "":
		return writeTextReport(w, candidates, results)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeYAMLReport(w io.Writer, candidates []Candidate, results []fit.Result) error {
	entries := make([]ReportEntry, len(candidates))
	for i, c := range candidates {
		entries[i] = ReportEntry{Item: c.Label(), Slots: results[i]}
		if entries[i].Slots == nil {
			entries[i].Slots = map[string]map[string]float64{}
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func writeTextReport(w io.Writer, candidates []Candidate, results []fit.Result) error {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	for i, c := range candidates {
		b.WriteString(c.Label())
		b.WriteString("\n")
		result := results[i]
		if len(result) == 0 {
			b.WriteString("  fits no slot\n")
			continue
		}
		for _, slot := range sortedKeys(result) {
			deltas := result[slot]
			if len(deltas) == 0 {
				b.WriteString(p.Sprintf("  %s: no change\n", slot))
				continue
			}
			b.WriteString(p.Sprintf("  %s\n", slot))
			for _, stat := range sortedKeys(deltas) {
				b.WriteString(p.Sprintf("    %-12s %s\n", stat, signed(p, deltas[stat])))
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// signed formats v with two decimals, digit grouping and an explicit sign.
func signed(p *message.Printer, v float64) string {
	if v > 0 {
		return "+" + p.Sprintf("%.2f", v)
	}
	return p.Sprintf("%.2f", v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
