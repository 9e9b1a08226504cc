// Package analysis decides, for an incoming bug, whether a remembered fix can be
// reused or a new one must be generated, and records newly generated fixes.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/chainguard-dev/clog"

	"github.com/easeaico/bug-triage-agent/internal/llm"
	"github.com/easeaico/bug-triage-agent/internal/memory"
	"github.com/easeaico/bug-triage-agent/internal/metrics"
	"github.com/easeaico/bug-triage-agent/internal/workspace"
)

// PatchMarker precedes the patch in generated text.
const PatchMarker = "# Suggested patch:"

// ErrAnalysisUnavailable is returned when the embedding or generation backend fails.
var ErrAnalysisUnavailable = errors.New("analysis unavailable")

// Analyzer implements the fix recall policy.
type Analyzer struct {
	store     memory.Store
	generator llm.Generator
	reader    workspace.Reader
}

// New creates an Analyzer. store may be nil, in which case every bug is
// analyzed from scratch and nothing is remembered.
func New(store memory.Store, generator llm.Generator, reader workspace.Reader) *Analyzer {
	return &Analyzer{
		store:     store,
		generator: generator,
		reader:    reader,
	}
}

// BugText composes the canonical text used both to store and to look up a bug.
func BugText(title, description string) string {
	return "Bug Title: " + title + "\nDescription: " + description
}

// Analyze returns a fix for the bug as a map from file path to patch text.
//
// A remembered fix for the most similar past bug is returned verbatim, without
// looking at files. Otherwise a patch is generated for each file and the new
// fix is remembered.
func (a *Analyzer) Analyze(ctx context.Context, title, description string, files []string) (map[string]string, error) {
	log := clog.FromContext(ctx)
	text := BugText(title, description)

	if a.store != nil {
		matches, err := a.store.Rank(ctx, text, 1)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to search fix memory: %w", ErrAnalysisUnavailable, err)
		}
		if len(matches) > 0 {
			// Any match is reused; there is no similarity threshold.
			metrics.RecordRecall(true)
			log.With("score", matches[0].Score).Infof("reusing remembered fix for %q", title)
			return maps.Clone(matches[0].Solution), nil
		}
	}
	metrics.RecordRecall(false)

	fix := make(map[string]string, len(files))
	for _, file := range files {
		content, err := a.reader.Read(ctx, file)
		if err != nil {
			log.Warnf("failed to read %s, analyzing without content: %v", file, err)
			content = ""
		}

		prompt, err := buildPrompt(text, file, content)
		if err != nil {
			return nil, err
		}

		generated, err := a.generator.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to generate patch for %s: %w", ErrAnalysisUnavailable, file, err)
		}
		fix[file] = ExtractPatch(generated)
	}

	if a.store != nil {
		if err := a.store.Add(ctx, text, fix); err != nil {
			metrics.RecordMemoryWriteFailure()
			log.Errorf("failed to remember fix for %q: %v", title, err)
		}
	}

	return fix, nil
}

// Remember stores fix for the bug. It does nothing when no store is configured.
func (a *Analyzer) Remember(ctx context.Context, title, description string, fix map[string]string) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Add(ctx, BugText(title, description), fix); err != nil {
		return fmt.Errorf("failed to remember fix: %w", err)
	}
	return nil
}

// Generate passes prompt straight to the generator.
func (a *Analyzer) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	return out, nil
}

// ExtractPatch returns the text after the last patch marker, trimmed. Without a
// marker the whole text is the patch.
func ExtractPatch(generated string) string {
	if i := strings.LastIndex(generated, PatchMarker); i >= 0 {
		return strings.TrimSpace(generated[i+len(PatchMarker):])
	}
	return strings.TrimSpace(generated)
}

var promptTmpl = template.Must(template.New("prompt").Parse(`You are fixing a reported bug in a source file.

{{.Bug}}

File: {{.File}}
{{- if .Content}}
Current content:
{{.Content}}
{{- else}}
The file content is unavailable; propose the patch from the bug report alone.
{{- end}}

Reply with a short explanation, then the marker line followed by the patch:
{{.Marker}}
`))

func buildPrompt(bugText, file, content string) (string, error) {
	data := struct {
		Bug, File, Content, Marker string
	}{
		Bug:     bugText,
		File:    file,
		Content: content,
		Marker:  PatchMarker,
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return buf.String(), nil
}
