// Package app assembles the triage components selected by the configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/easeaico/bug-triage-agent/internal/analysis"
	"github.com/easeaico/bug-triage-agent/internal/codeindex"
	"github.com/easeaico/bug-triage-agent/internal/config"
	"github.com/easeaico/bug-triage-agent/internal/llm"
	"github.com/easeaico/bug-triage-agent/internal/memory"
	"github.com/easeaico/bug-triage-agent/internal/server"
	"github.com/easeaico/bug-triage-agent/internal/tracker"
	"github.com/easeaico/bug-triage-agent/internal/triage"
	"github.com/easeaico/bug-triage-agent/internal/vcs"
	"github.com/easeaico/bug-triage-agent/internal/workspace"
)

// App holds the long-lived components shared by every command.
type App struct {
	Config *config.Config

	// Store is nil when MEMORY_BACKEND=none.
	Store memory.Store
	// Index is nil when CODE_INDEX_PATH is empty.
	Index *codeindex.Index

	Dir      *workspace.DirReader
	Reader   workspace.Reader
	Analyzer *analysis.Analyzer

	closers []func() error
}

// New builds the fix memory, file reader, code index and analyzer.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	log := clog.FromContext(ctx)
	cfg := a.Config
	settings := cfg.LLMSettings()

	generator, err := llm.NewGenerator(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	var embedder llm.Embedder
	if cfg.MemoryBackend != "none" || cfg.CodeIndexPath != "" {
		embedder, err = llm.NewEmbedder(ctx, settings)
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	switch cfg.MemoryBackend {
	case "file":
		fs := memory.NewFileStore(ctx, cfg.MemoryFile, embedder)
		log.Infof("Fix memory: %s (%d entries)", fs.Path(), fs.Len())
		a.Store = fs
	case "postgres":
		ps, err := memory.NewPostgresStore(ctx, cfg.DatabaseURL, embedder)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, ps.Close)
		if err := ps.InitSchema(ctx); err != nil {
			return err
		}
		log.Infof("Fix memory: postgres")
		a.Store = ps
	default:
		log.Infof("Fix memory disabled")
	}

	a.Dir, err = workspace.NewDirReader(cfg.WorkDir)
	if err != nil {
		return err
	}
	a.Reader = a.Dir
	if cfg.FileSource == "git" {
		a.Reader, err = workspace.NewGitReader(a.Dir.Root())
		if err != nil {
			return err
		}
	}

	if cfg.CodeIndexPath != "" {
		a.Index, err = codeindex.Open(ctx, cfg.CodeIndexPath, embedder)
		if err != nil {
			return fmt.Errorf("failed to open code index: %w", err)
		}
		a.closers = append(a.closers, a.Index.Close)
	}

	a.Analyzer = analysis.New(a.Store, generator, a.Reader)
	return nil
}

// ReviewHost returns the review host selected by VCS_TYPE.
func (a *App) ReviewHost(ctx context.Context) (vcs.ReviewHost, error) {
	if err := a.Config.ValidateReviewHost(); err != nil {
		return nil, err
	}
	if a.Config.VCSType == "perforce" {
		p := a.Config.Perforce
		return vcs.NewPerforceHost(p.SwarmURL, p.User, p.Ticket)
	}
	g := a.Config.GitHub
	return vcs.NewGitHubHost(ctx, g.Repo, g.Token, g.BaseBranch)
}

// Tracker returns the Jira REST client.
func (a *App) Tracker() (*tracker.JiraClient, error) {
	if err := a.Config.ValidateTracker(); err != nil {
		return nil, err
	}
	j := a.Config.Jira
	return tracker.NewJiraClient(j.URL, j.User, j.Token)
}

// Orchestrator returns an orchestrator over the configured review host. With
// withTracker it can also list open bugs from Jira.
func (a *App) Orchestrator(ctx context.Context, withTracker bool) (*triage.Orchestrator, error) {
	host, err := a.ReviewHost(ctx)
	if err != nil {
		return nil, err
	}

	var bugs triage.BugSource
	if withTracker {
		client, err := a.Tracker()
		if err != nil {
			return nil, err
		}
		bugs = client
	}

	var opts []triage.Option
	if a.Index != nil {
		opts = append(opts, triage.WithCodeIndex(a.Index))
	}
	return triage.New(bugs, a.Analyzer, host, opts...), nil
}

// Server returns the HTTP surface. processor may be nil, in which case
// webhooks are rejected as unavailable.
func (a *App) Server(processor *triage.Orchestrator) *server.Server {
	var p server.BugProcessor
	if processor != nil {
		p = processor
	}
	var idx server.CodeIndex
	if a.Index != nil {
		idx = a.Index
	}
	return server.New(a.Analyzer, p, idx)
}

// Close releases the store and index.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
