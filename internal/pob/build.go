package pob

import (
	"context"
	"fmt"
	"math"
	"os"

	apperrors "github.com/mephi42/gopob/internal/platform/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewBuild replaces the current build with an empty one.
func (e *Engine) NewBuild() error {
	_, err := e.call("new_build")
	return err
}

// Load replaces the current build with the given build XML.
func (e *Engine) Load(xml []byte) error {
	if _, err := e.call("load_xml", string(xml), ""); err != nil {
		return fmt.Errorf("load build: %w", err)
	}
	return nil
}

// LoadFile loads build XML from path. A relative path is taken from the
// working directory Open was called in.
func (e *Engine) LoadFile(path string) error {
	data, err := os.ReadFile(e.resolve(path))
	if err != nil {
		return fmt.Errorf("read build: %w", err)
	}
	return e.Load(data)
}

// Save returns the current build as XML.
func (e *Engine) Save() ([]byte, error) {
	res, err := e.call("save_xml")
	if err != nil {
		return nil, fmt.Errorf("save build: %w", err)
	}
	xml, ok := first(res).(string)
	if !ok {
		return nil, scriptResult("save_xml", first(res))
	}
	return []byte(xml), nil
}

// SaveFile writes the current build XML to path, resolved like LoadFile.
func (e *Engine) SaveFile(path string) error {
	data, err := e.Save()
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.resolve(path), data, 0o644); err != nil {
		return fmt.Errorf("write build: %w", err)
	}
	return nil
}

// Import replaces the current build with one decoded from a build code.
func (e *Engine) Import(code string) error {
	if _, err := e.call("import_code", code); err != nil {
		return fmt.Errorf("import build code: %w", err)
	}
	return nil
}

// Export returns the current build as a build code.
func (e *Engine) Export() (string, error) {
	res, err := e.call("export_code")
	if err != nil {
		return "", fmt.Errorf("export build code: %w", err)
	}
	code, ok := first(res).(string)
	if !ok {
		return "", scriptResult("export_code", first(res))
	}
	return code, nil
}

// Refresh runs one engine frame, recomputing outputs.
func (e *Engine) Refresh() error {
	_, err := e.call("refresh")
	return err
}

// MainOutput returns one value of the main skill's calculated output.
func (e *Engine) MainOutput(key string) (any, error) {
	res, err := e.call("main_output", key)
	if err != nil {
		return nil, err
	}
	return first(res), nil
}

// Download imports a character: its character list entry, passive tree and
// items, each phase drained before the next.
func (e *Engine) Download(ctx context.Context, account, character string) error {
	ctx, span := e.tracer.Start(ctx, "pob.download", trace.WithAttributes(
		attribute.String("pob.account", account),
		attribute.String("pob.character", character),
	))
	defer span.End()

	if _, err := e.call("request_characters", account); err != nil {
		return fmt.Errorf("request character list: %w", err)
	}
	if err := e.DrainSubScripts(ctx); err != nil {
		return fmt.Errorf("download character list: %w", err)
	}
	e.logf("character list for %s downloaded", account)

	res, err := e.call("select_character", character)
	if err != nil {
		return fmt.Errorf("select character: %w", err)
	}
	if found, _ := first(res).(bool); !found {
		return apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("no character %q on account %q", character, account),
			map[string]string{"account": account, "character": character})
	}

	if _, err := e.call("download_passive_tree"); err != nil {
		return fmt.Errorf("request passive tree: %w", err)
	}
	if err := e.DrainSubScripts(ctx); err != nil {
		return fmt.Errorf("download passive tree: %w", err)
	}
	e.logf("passive tree for %s downloaded", character)

	if _, err := e.call("download_items"); err != nil {
		return fmt.Errorf("request items: %w", err)
	}
	if err := e.DrainSubScripts(ctx); err != nil {
		return fmt.Errorf("download items: %w", err)
	}
	e.logf("items for %s downloaded", character)
	return nil
}

// AutoselectMainSkill makes the socket group with the highest CombinedDPS
// the main skill. Ties go to the later group. A build without socket groups
// is left as is.
func (e *Engine) AutoselectMainSkill() error {
	res, err := e.call("socket_group_count")
	if err != nil {
		return err
	}
	count := int(number(first(res)))
	if count == 0 {
		return nil
	}

	best, bestDPS := 0, math.Inf(-1)
	for i := 1; i <= count; i++ {
		res, err := e.call("select_socket_group", i)
		if err != nil {
			return fmt.Errorf("select socket group %d: %w", i, err)
		}
		if dps := number(first(res)); dps >= bestDPS {
			best, bestDPS = i, dps
		}
	}
	e.logf("main socket group %d (%.0f combined DPS)", best, bestDPS)
	if _, err := e.call("select_socket_group", best); err != nil {
		return fmt.Errorf("select socket group %d: %w", best, err)
	}
	return nil
}

func number(v any) float64 {
	if n, ok := v.(float64); ok {
		return n
	}
	return 0
}
