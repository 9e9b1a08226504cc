package tools

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/easeaico/bug-triage-agent/internal/analysis"
	"github.com/easeaico/bug-triage-agent/internal/memory"
	"github.com/easeaico/bug-triage-agent/internal/workspace"
)

// maxFileBytes limits file content returned to the model.
const maxFileBytes = 10000

// pastFixLimit is the number of remembered fixes returned by a search.
const pastFixLimit = 3

// FixRanker ranks remembered fixes by similarity.
type FixRanker interface {
	Rank(ctx context.Context, text string, topK int) ([]memory.Match, error)
}

// FileBrowser reads and lists files under the working directory.
type FileBrowser interface {
	Read(ctx context.Context, path string) (string, error)
	List(ctx context.Context, path string) ([]workspace.DirEntry, error)
}

// BugAnalyzer runs the fix recall policy.
type BugAnalyzer interface {
	Analyze(ctx context.Context, title, description string, files []string) (map[string]string, error)
	Remember(ctx context.Context, title, description string, fix map[string]string) error
}

// Handler provides implementations for all agent tools.
type Handler struct {
	fixes    FixRanker
	files    FileBrowser
	analyzer BugAnalyzer
}

// NewHandler creates a new tool handler with the given dependencies.
// fixes may be nil when no fix memory is configured.
func NewHandler(fixes FixRanker, files FileBrowser, analyzer BugAnalyzer) *Handler {
	return &Handler{fixes: fixes, files: files, analyzer: analyzer}
}

// Result is the output of every tool.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// PastFix is one search hit.
type PastFix struct {
	Bug        string            `json:"bug"`
	Fix        map[string]string `json:"fix"`
	Similarity string            `json:"similarity"`
}

// SearchPastFixes ranks remembered fixes against the bug.
func (h *Handler) SearchPastFixes(ctx context.Context, args SearchPastFixesArgs) Result {
	if args.Title == "" && args.Description == "" {
		return failure("title or description is required")
	}
	if h.fixes == nil {
		return Result{Success: true, Data: "Fix memory is disabled."}
	}

	matches, err := h.fixes.Rank(ctx, analysis.BugText(args.Title, args.Description), pastFixLimit)
	if err != nil {
		return failure("failed to search fixes: %v", err)
	}
	if len(matches) == 0 {
		return Result{Success: true, Data: "No similar past bugs found."}
	}

	results := make([]PastFix, 0, len(matches))
	for _, m := range matches {
		results = append(results, PastFix{
			Bug:        m.Text,
			Fix:        m.Solution,
			Similarity: fmt.Sprintf("%.2f%%", m.Score*100),
		})
	}
	return Result{Success: true, Data: results}
}

// ReadFile returns the content of a file, truncated for the model.
func (h *Handler) ReadFile(ctx context.Context, args ReadFileArgs) Result {
	if args.Filepath == "" {
		return failure("filepath is required")
	}

	content, err := h.files.Read(ctx, args.Filepath)
	if err != nil {
		return failure("%v", err)
	}
	if len(content) > maxFileBytes {
		content = truncateString(content, maxFileBytes) + "\n... (truncated)"
	}
	return Result{Success: true, Data: content}
}

// ListDirectory lists a directory under the working directory.
func (h *Handler) ListDirectory(ctx context.Context, args ListDirectoryArgs) Result {
	items, err := h.files.List(ctx, args.Path)
	if err != nil {
		return failure("%v", err)
	}
	return Result{Success: true, Data: items}
}

// RememberFix stores a confirmed fix for future reuse.
func (h *Handler) RememberFix(ctx context.Context, args RememberFixArgs) Result {
	if args.Title == "" || len(args.Fix) == 0 {
		return failure("title and fix are required")
	}
	if h.fixes == nil {
		return failure("fix memory is disabled; the fix was not saved")
	}
	if err := h.analyzer.Remember(ctx, args.Title, args.Description, args.Fix); err != nil {
		return failure("failed to remember fix: %v", err)
	}
	return Result{Success: true, Data: "Fix saved to memory."}
}

// AnalyzeBug runs the fix recall policy for the bug.
func (h *Handler) AnalyzeBug(ctx context.Context, args AnalyzeBugArgs) Result {
	if args.Title == "" {
		return failure("title is required")
	}
	fix, err := h.analyzer.Analyze(ctx, args.Title, args.Description, args.Files)
	if err != nil {
		return failure("failed to analyze bug: %v", err)
	}
	return Result{Success: true, Data: fix}
}

// truncateString cuts s to at most maxBytes bytes without splitting a character.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
