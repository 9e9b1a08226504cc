// Package triage runs the end-to-end flow for open bugs: find related files,
// obtain a fix, and open a review.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"

	"github.com/easeaico/bug-triage-agent/internal/metrics"
	"github.com/easeaico/bug-triage-agent/internal/tracker"
	"github.com/easeaico/bug-triage-agent/internal/vcs"
)

// BugSource lists open bugs for a project.
type BugSource interface {
	OpenBugs(ctx context.Context, project string) ([]tracker.Issue, error)
}

// Analyzer produces a fix for a bug.
type Analyzer interface {
	Analyze(ctx context.Context, title, description string, files []string) (map[string]string, error)
}

// CodeIndex suggests learned files for a bug.
type CodeIndex interface {
	Query(ctx context.Context, text string, topK int) ([]string, error)
}

// Orchestrator wires the tracker, analyzer and review host together.
type Orchestrator struct {
	bugs     BugSource
	analyzer Analyzer
	host     vcs.ReviewHost
	index    CodeIndex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCodeIndex adds learned code snippets to related-file discovery.
func WithCodeIndex(index CodeIndex) Option {
	return func(o *Orchestrator) { o.index = index }
}

// New creates an Orchestrator. bugs may be nil when only single bugs are
// processed, e.g. from a webhook.
func New(bugs BugSource, analyzer Analyzer, host vcs.ReviewHost, opts ...Option) *Orchestrator {
	o := &Orchestrator{bugs: bugs, analyzer: analyzer, host: host}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Triage processes every open bug of project. A failing bug does not stop the
// others; all failures are returned joined.
func (o *Orchestrator) Triage(ctx context.Context, project string) error {
	if o.bugs == nil {
		return errors.New("no bug source configured")
	}
	log := clog.FromContext(ctx).With("project", project)

	issues, err := o.bugs.OpenBugs(ctx, project)
	if err != nil {
		return fmt.Errorf("failed to list open bugs: %w", err)
	}
	log.Infof("found %d open bugs", len(issues))

	var errs []error
	for _, issue := range issues {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := o.ProcessBug(ctx, issue); err != nil {
			log.Errorf("failed to process %s: %v", issue.Key, err)
			errs = append(errs, fmt.Errorf("%s: %w", issue.Key, err))
		}
	}
	return errors.Join(errs...)
}

// ProcessBug obtains a fix for issue and opens a review for it, returning the
// review URL. Newly generated fixes are remembered by the analyzer.
func (o *Orchestrator) ProcessBug(ctx context.Context, issue tracker.Issue) (string, error) {
	log := clog.FromContext(ctx).With("bug", issue.Key)
	summary := issue.Fields.Summary
	description := issue.Fields.Description

	files := o.RelatedFiles(ctx, summary, description)
	log.Infof("analyzing with %d related files", len(files))

	fix, err := o.analyzer.Analyze(ctx, summary, description, files)
	if err != nil {
		metrics.RecordBug("analysis_failed")
		return "", fmt.Errorf("failed to analyze bug: %w", err)
	}

	reviewURL, err := o.host.CreateReview(ctx, vcs.ReviewRequest{
		BugKey:  issue.Key,
		Summary: summary,
		Fix:     fix,
	})
	if err != nil {
		metrics.RecordBug("review_failed")
		return "", fmt.Errorf("failed to create review: %w", err)
	}

	metrics.RecordBug("processed")
	log.Infof("Created review for %s: %s", issue.Key, reviewURL)
	return reviewURL, nil
}

// RelatedFiles returns repository paths likely involved in the bug: host code
// search results followed by code index matches, without duplicates. Lookup
// failures are logged and yield fewer files.
func (o *Orchestrator) RelatedFiles(ctx context.Context, title, description string) []string {
	log := clog.FromContext(ctx)

	var files []string
	seen := make(map[string]bool)
	add := func(paths []string) {
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
		}
	}

	if found, err := o.host.SearchCode(ctx, Keywords(title, description)); err != nil {
		log.Warnf("code search failed: %v", err)
	} else {
		add(found)
	}

	if o.index != nil {
		if found, err := o.index.Query(ctx, title+" "+description, 0); err != nil {
			log.Warnf("code index query failed: %v", err)
		} else {
			add(found)
		}
	}
	return files
}

// Keywords extracts search terms from the bug text: words longer than three
// runes, stripped of surrounding periods and commas, lower-cased and
// deduplicated in order of first appearance.
func Keywords(title, description string) []string {
	var words []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(title + " " + description) {
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		w = strings.ToLower(strings.Trim(w, ".,"))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}
