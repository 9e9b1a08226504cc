package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

var (
	bugTitle       string
	bugDescription string
	bugFiles       []string
	fixFlags       []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Propose a fix for one bug and print it as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		fix, err := a.Analyzer.Analyze(ctx, bugTitle, bugDescription, bugFiles)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(fix)
	},
}

var rememberCmd = &cobra.Command{
	Use:   "remember",
	Short: "Store a confirmed fix in the fix memory",
	Example: `  triage remember --title "Crash on save" \
    --description "NullPointerException in save()" \
    --fix src/save.py=save.patch`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		fix, err := readFixes(fixFlags)
		if err != nil {
			return err
		}

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Store == nil {
			return errors.New("fix memory is disabled (MEMORY_BACKEND=none)")
		}
		if err := a.Analyzer.Remember(ctx, bugTitle, bugDescription, fix); err != nil {
			return err
		}
		clog.InfoContextf(ctx, "Remembered fix for %q touching %d files", bugTitle, len(fix))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{analyzeCmd, rememberCmd} {
		cmd.Flags().StringVar(&bugTitle, "title", "", "bug title")
		cmd.Flags().StringVar(&bugDescription, "description", "", "bug description")
		_ = cmd.MarkFlagRequired("title")
	}
	analyzeCmd.Flags().StringSliceVar(&bugFiles, "file", nil, "file to patch when no remembered fix applies (repeatable)")
	rememberCmd.Flags().StringArrayVar(&fixFlags, "fix", nil, "path=patchfile pair (repeatable)")
	_ = rememberCmd.MarkFlagRequired("fix")
}

// readFixes turns path=patchfile pairs into a fix, reading each patch file.
func readFixes(pairs []string) (map[string]string, error) {
	fix := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		path, patchFile, ok := strings.Cut(pair, "=")
		if !ok || path == "" || patchFile == "" {
			return nil, fmt.Errorf("invalid --fix %q, want path=patchfile", pair)
		}
		patch, err := os.ReadFile(patchFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read patch for %s: %w", path, err)
		}
		fix[path] = string(patch)
	}
	return fix, nil
}
