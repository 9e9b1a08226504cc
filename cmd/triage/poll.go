package main

import (
	"errors"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/easeaico/bug-triage-agent/internal/tracker"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Triage every open bug of JIRA_PROJECT once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		project := a.Config.Jira.Project
		if project == "" {
			return errors.New("JIRA_PROJECT is required")
		}

		orch, err := a.Orchestrator(ctx, true)
		if err != nil {
			return err
		}
		if err := orch.Triage(ctx, project); err != nil {
			return err
		}
		clog.InfoContextf(ctx, "Triage of %s complete", project)
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Triage bugs pushed over the Jira event feed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		listener, err := tracker.NewListener(a.Config.Jira.WSURL)
		if err != nil {
			return err
		}
		orch, err := a.Orchestrator(ctx, false)
		if err != nil {
			return err
		}
		return listener.Listen(ctx, processIssue(orch))
	},
}
