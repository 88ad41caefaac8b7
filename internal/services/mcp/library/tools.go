package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mephi42/gopob/internal/fit"
	"github.com/mephi42/gopob/internal/services/library/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FitItemsInput represents the MCP tool input for fitting candidate items.
type FitItemsInput struct {
	Build string   `json:"build" jsonschema:"name of a stored build"`
	Items []string `json:"items" jsonschema:"candidate item texts, lines separated by newlines"`
}

// FitCandidate holds the stat deltas of one candidate per slot it fits.
type FitCandidate struct {
	Item  string                        `json:"item"`
	Slots map[string]map[string]float64 `json:"slots"`
}

// FitItemsResult represents the MCP tool output for fitting candidate items.
type FitItemsResult struct {
	Build      string         `json:"build"`
	Candidates []FitCandidate `json:"candidates"`
}

// ListBuildsInput represents the MCP tool input for listing stored builds.
type ListBuildsInput struct{}

// BuildSummary describes one stored build.
type BuildSummary struct {
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

// ListBuildsResult represents the MCP tool output for listing stored builds.
type ListBuildsResult struct {
	Builds []BuildSummary `json:"builds"`
}

// StoreBuildInput represents the MCP tool input for storing a build.
type StoreBuildInput struct {
	Name string `json:"name" jsonschema:"name to store the build under"`
	Code string `json:"code,omitempty" jsonschema:"build code to import"`
	XML  string `json:"xml,omitempty" jsonschema:"build XML, used when no code is given"`
}

// StoreBuildResult represents the MCP tool output for storing a build.
type StoreBuildResult struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

// ExportBuildInput represents the MCP tool input for exporting a build code.
type ExportBuildInput struct {
	Name string `json:"name" jsonschema:"name of a stored build"`
}

// ExportBuildResult represents the MCP tool output for exporting a build code.
type ExportBuildResult struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// FitItemsTool defines the MCP tool schema for fitting candidate items.
func FitItemsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "fit_items",
		Description: "Evaluates candidate items against a stored build and reports stat changes per slot",
	}
}

// ListBuildsTool defines the MCP tool schema for listing stored builds.
func ListBuildsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_builds",
		Description: "Lists stored builds",
	}
}

// StoreBuildTool defines the MCP tool schema for storing a build.
func StoreBuildTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "store_build",
		Description: "Stores a build from a build code or XML",
	}
}

// ExportBuildTool defines the MCP tool schema for exporting a build code.
func ExportBuildTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "export_build",
		Description: "Exports a stored build as a build code",
	}
}

// FitItemsHandler fits candidates against the named build.
func FitItemsHandler(lib *Library) mcp.ToolHandlerFor[FitItemsInput, FitItemsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input FitItemsInput) (*mcp.CallToolResult, FitItemsResult, error) {
		name := strings.TrimSpace(input.Build)
		if name == "" {
			return nil, FitItemsResult{}, errors.New("build is required")
		}
		if len(input.Items) == 0 {
			return nil, FitItemsResult{}, errors.New("at least one item is required")
		}

		var results []fit.Result
		err := lib.withBuild(ctx, name, func(engine Engine) error {
			var err error
			results, err = engine.Fit(ctx, input.Items)
			return err
		})
		if err != nil {
			return nil, FitItemsResult{}, fmt.Errorf("fit items: %w", err)
		}

		candidates := make([]FitCandidate, 0, len(results))
		for i, result := range results {
			slots := make(map[string]map[string]float64, len(result))
			for slot, deltas := range result {
				slots[slot] = deltas
			}
			candidates = append(candidates, FitCandidate{Item: input.Items[i], Slots: slots})
		}
		return nil, FitItemsResult{Build: name, Candidates: candidates}, nil
	}
}

// ListBuildsHandler lists stored builds.
func ListBuildsHandler(lib *Library) mcp.ToolHandlerFor[ListBuildsInput, ListBuildsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListBuildsInput) (*mcp.CallToolResult, ListBuildsResult, error) {
		builds, err := lib.store.List(ctx)
		if err != nil {
			return nil, ListBuildsResult{}, fmt.Errorf("list builds: %w", err)
		}
		result := ListBuildsResult{Builds: make([]BuildSummary, 0, len(builds))}
		for _, build := range builds {
			result.Builds = append(result.Builds, BuildSummary{
				Name:      build.Name,
				UpdatedAt: build.UpdatedAt.Format(time.RFC3339),
			})
		}
		return nil, result, nil
	}
}

// StoreBuildHandler normalises a build through the engine and stores it.
func StoreBuildHandler(lib *Library) mcp.ToolHandlerFor[StoreBuildInput, StoreBuildResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StoreBuildInput) (*mcp.CallToolResult, StoreBuildResult, error) {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, StoreBuildResult{}, errors.New("name is required")
		}
		code := strings.TrimSpace(input.Code)
		if code == "" && strings.TrimSpace(input.XML) == "" {
			return nil, StoreBuildResult{}, errors.New("code or xml is required")
		}

		lib.mu.Lock()
		defer lib.mu.Unlock()
		var err error
		if code != "" {
			err = lib.engine.Import(code)
		} else {
			err = lib.engine.Load([]byte(input.XML))
		}
		if err != nil {
			return nil, StoreBuildResult{}, fmt.Errorf("read build: %w", err)
		}
		xml, err := lib.engine.Save()
		if err != nil {
			return nil, StoreBuildResult{}, fmt.Errorf("save build: %w", err)
		}
		if err := lib.store.Put(ctx, storage.StoredBuild{Name: name, XML: xml, UpdatedAt: lib.now()}); err != nil {
			return nil, StoreBuildResult{}, fmt.Errorf("store build: %w", err)
		}
		return nil, StoreBuildResult{Name: name, Bytes: len(xml)}, nil
	}
}

// ExportBuildHandler exports a stored build as a build code.
func ExportBuildHandler(lib *Library) mcp.ToolHandlerFor[ExportBuildInput, ExportBuildResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ExportBuildInput) (*mcp.CallToolResult, ExportBuildResult, error) {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, ExportBuildResult{}, errors.New("name is required")
		}
		var code string
		err := lib.withBuild(ctx, name, func(engine Engine) error {
			var err error
			code, err = engine.Export()
			return err
		})
		if err != nil {
			return nil, ExportBuildResult{}, fmt.Errorf("export build: %w", err)
		}
		return nil, ExportBuildResult{Name: name, Code: code}, nil
	}
}
