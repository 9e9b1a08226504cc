package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/easeaico/bug-triage-agent/internal/tracker"
	"github.com/easeaico/bug-triage-agent/internal/triage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, the scheduled poller and the event listener",
	Long: `Start the HTTP server with the webhook and analysis endpoints. When
POLL_SCHEDULE is set, open bugs of JIRA_PROJECT are triaged on that cron
schedule. When JIRA_WS_URL is set, bugs pushed over the Jira event feed are
triaged as they arrive.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := clog.FromContext(ctx)

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		cfg := a.Config

		var orch *triage.Orchestrator
		if err := cfg.ValidateReviewHost(); err != nil {
			log.Warnf("Bug processing disabled: %v", err)
		} else {
			orch, err = a.Orchestrator(ctx, cfg.PollSchedule != "")
			if err != nil {
				return err
			}
		}

		if orch != nil && cfg.PollSchedule != "" && cfg.Jira.Project == "" {
			return errors.New("JIRA_PROJECT is required when POLL_SCHEDULE is set")
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return a.Server(orch).Run(ctx, cfg.Addr())
		})

		if orch != nil && cfg.PollSchedule != "" {
			g.Go(func() error {
				return runSchedule(ctx, cfg.PollSchedule, func(ctx context.Context) {
					if err := orch.Triage(ctx, cfg.Jira.Project); err != nil {
						clog.FromContext(ctx).Errorf("Scheduled triage failed: %v", err)
					}
				})
			})
		}

		if orch != nil && cfg.Jira.WSURL != "" {
			listener, err := tracker.NewListener(cfg.Jira.WSURL)
			if err != nil {
				return err
			}
			g.Go(func() error {
				return superviseListener(ctx, listener, processIssue(orch), listenRetryDelay)
			})
		}

		return g.Wait()
	},
}

// runSchedule runs job on the cron schedule until ctx is done. A run
// still in progress when the next one is due causes that one to be skipped.
func runSchedule(ctx context.Context, schedule string, job func(context.Context)) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() { job(ctx) }); err != nil {
		return fmt.Errorf("invalid POLL_SCHEDULE %q: %w", schedule, err)
	}

	clog.FromContext(ctx).Infof("Triage scheduled: %s", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

const (
	listenRetryDelay    = time.Second
	maxListenRetryDelay = time.Minute
)

// superviseListener keeps the event feed connected until ctx is done. A failed
// or dropped connection is logged and retried after delay, doubling up to
// maxListenRetryDelay. It always returns nil so the feed never stops the server.
func superviseListener(ctx context.Context, l *tracker.Listener, onBug func(context.Context, tracker.Issue) error, delay time.Duration) error {
	log := clog.FromContext(ctx)
	wait := delay
	for {
		started := time.Now()
		err := l.Listen(ctx, onBug)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("connection closed")
		}
		// A connection that stayed up for a while starts the backoff over.
		if time.Since(started) > maxListenRetryDelay {
			wait = delay
		}
		log.Warnf("Jira event feed unavailable, retrying in %s: %v", wait, err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait = min(wait*2, maxListenRetryDelay)
	}
}

// processIssue adapts an orchestrator to the listener callback.
func processIssue(orch *triage.Orchestrator) func(context.Context, tracker.Issue) error {
	return func(ctx context.Context, issue tracker.Issue) error {
		_, err := orch.ProcessBug(ctx, issue)
		return err
	}
}
