package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gamefetch/internal/store"
	"gamefetch/internal/ui"
)

var errRunNotFound = errors.New("run not found")

func newHistoryCmd(a *app) *cobra.Command {
	var (
		f      store.ListFilter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded install runs",
		Args:  positional(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(c.Context(), f)
			if err != nil {
				return withCode(ExitStorageError, err)
			}
			out := c.OutOrStdout()
			if asJSON {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			ui.WriteRuns(out, runs, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Status, "status", "s", "", "Only runs with this status")
	cmd.Flags().StringVar(&f.VersionID, "version", "", "Only runs of this version")
	cmd.Flags().StringVar(&f.Order, "order", "desc", "Sort by start time: asc|desc")
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 20, "Show at most n runs (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")

	cmd.AddCommand(newHistoryShowCmd(a), newHistoryDeleteCmd(a), newHistoryMarkAbandonedCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its failed files",
		Args:  positional(cobra.ExactArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := findRun(c, st, args[0])
			if err != nil {
				return err
			}
			failures, err := st.ListFailures(ctx, run.ID)
			if err != nil {
				return withCode(ExitStorageError, err)
			}

			out := c.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]any{"run": run, "failures": failures})
			}
			fmt.Fprintf(out, "Run:        %s\n", run.ID)
			fmt.Fprintf(out, "Version:    %s\n", run.VersionID)
			fmt.Fprintf(out, "Root:       %s\n", run.Root)
			fmt.Fprintf(out, "Status:     %s\n", run.Status)
			fmt.Fprintf(out, "Started:    %s\n", run.StartedAt.Local().Format(time.RFC3339))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "Finished:   %s (%s)\n", run.FinishedAt.Local().Format(time.RFC3339),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
			}
			fmt.Fprintf(out, "Rounds:     %d\n", run.Rounds)
			fmt.Fprintf(out, "Files:      %d ok / %d dispatched, %d failed, %d mismatches\n",
				run.Succeeded, run.Dispatched, run.FailedCount, run.Mismatches)
			if run.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:      %s\n", run.ErrorMessage)
			}
			if len(failures) > 0 {
				fmt.Fprintln(out)
				ui.WriteRunFailures(out, failures)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run as JSON")
	return cmd
}

func newHistoryDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its failures",
		Args:  positional(cobra.ExactArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := findRun(c, st, args[0])
			if err != nil {
				return err
			}
			if err := st.DeleteRun(c.Context(), run.ID); err != nil {
				return withCode(ExitStorageError, err)
			}
			fmt.Fprintf(c.OutOrStdout(), "deleted %s\n", run.ID)
			return nil
		},
	}
}

func newHistoryMarkAbandonedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-abandoned",
		Short: "Mark runs left in the running state as interrupted",
		Long: `A process killed mid-install leaves its run in the running state.
mark-abandoned flips every such run to interrupted. Do not use it while an
install is in progress.`,
		Args: positional(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.MarkAbandoned(c.Context())
			if err != nil {
				return withCode(ExitStorageError, err)
			}
			fmt.Fprintf(c.OutOrStdout(), "marked %d run(s) interrupted\n", n)
			return nil
		},
	}
}

// findRun resolves a full run id or a unique prefix of one, as printed by
// the history listing.
func findRun(c *cobra.Command, st *store.Store, id string) (store.Run, error) {
	ctx := c.Context()
	run, ok, err := st.GetRun(ctx, id)
	if err != nil {
		return store.Run{}, withCode(ExitStorageError, err)
	}
	if ok {
		return run, nil
	}

	runs, err := st.ListRuns(ctx, store.ListFilter{})
	if err != nil {
		return store.Run{}, withCode(ExitStorageError, err)
	}
	var matches []store.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return store.Run{}, withCode(ExitInvalidArgs, fmt.Errorf("%w: %s", errRunNotFound, id))
	case 1:
		return matches[0], nil
	default:
		return store.Run{}, withCode(ExitInvalidArgs, fmt.Errorf("run id %q is ambiguous (%d matches)", id, len(matches)))
	}
}
