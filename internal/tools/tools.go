// Package tools defines the ADK function tools of the interactive triage agent.
// They give the model access to the fix memory, the recall policy and the
// working directory.
package tools

import (
	"fmt"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// --- Tool Inputs ---

// SearchPastFixesArgs is the input for search_past_fixes tool.
type SearchPastFixesArgs struct {
	Title       string `json:"title" jsonschema:"Short title of the bug"`
	Description string `json:"description" jsonschema:"Bug description or error log excerpt"`
}

// ReadFileArgs is the input for read_file_content tool.
type ReadFileArgs struct {
	Filepath string `json:"filepath" jsonschema:"Path of the file, relative to the working directory"`
}

// ListDirectoryArgs is the input for list_directory tool.
type ListDirectoryArgs struct {
	Path string `json:"path" jsonschema:"Directory to list; empty for the working directory"`
}

// RememberFixArgs is the input for remember_fix tool.
type RememberFixArgs struct {
	Title       string            `json:"title" jsonschema:"Short title of the bug"`
	Description string            `json:"description" jsonschema:"Bug description"`
	Fix         map[string]string `json:"fix" jsonschema:"Map from file path to the patch that fixed it"`
}

// AnalyzeBugArgs is the input for analyze_bug tool.
type AnalyzeBugArgs struct {
	Title       string   `json:"title" jsonschema:"Short title of the bug"`
	Description string   `json:"description" jsonschema:"Bug description"`
	Files       []string `json:"files" jsonschema:"Files to patch when no remembered fix applies"`
}

// BuildTools creates all agent tools backed by h.
func BuildTools(h *Handler) ([]tool.Tool, error) {
	specs := []struct {
		name string
		make func() (tool.Tool, error)
	}{
		{"search_past_fixes", func() (tool.Tool, error) {
			return functiontool.New(functiontool.Config{
				Name:        "search_past_fixes",
				Description: "Search remembered fixes of past bugs similar to this one. Returns the closest bugs, their patches and a similarity score.",
			}, func(ctx tool.Context, args SearchPastFixesArgs) (Result, error) {
				return h.SearchPastFixes(ctx, args), nil
			})
		}},
		{"read_file_content", func() (tool.Tool, error) {
			return functiontool.New(functiontool.Config{
				Name:        "read_file_content",
				Description: "Read a source file from the working directory.",
			}, func(ctx tool.Context, args ReadFileArgs) (Result, error) {
				return h.ReadFile(ctx, args), nil
			})
		}},
		{"list_directory", func() (tool.Tool, error) {
			return functiontool.New(functiontool.Config{
				Name:        "list_directory",
				Description: "List files and subdirectories to explore the project layout.",
			}, func(ctx tool.Context, args ListDirectoryArgs) (Result, error) {
				return h.ListDirectory(ctx, args), nil
			})
		}},
		{"remember_fix", func() (tool.Tool, error) {
			return functiontool.New(functiontool.Config{
				Name:        "remember_fix",
				Description: "Save a confirmed bug fix so that similar bugs can reuse it.",
			}, func(ctx tool.Context, args RememberFixArgs) (Result, error) {
				return h.RememberFix(ctx, args), nil
			})
		}},
		{"analyze_bug", func() (tool.Tool, error) {
			return functiontool.New(functiontool.Config{
				Name:        "analyze_bug",
				Description: "Propose a patch per file for a bug, reusing a remembered fix when a similar bug was seen before.",
			}, func(ctx tool.Context, args AnalyzeBugArgs) (Result, error) {
				return h.AnalyzeBug(ctx, args), nil
			})
		}},
	}

	tools := make([]tool.Tool, 0, len(specs))
	for _, s := range specs {
		t, err := s.make()
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", s.name, err)
		}
		tools = append(tools, t)
	}
	return tools, nil
}
