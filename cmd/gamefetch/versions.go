package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gamefetch/internal/manifest"
	"gamefetch/internal/ui"
)

func newVersionsCmd(a *app) *cobra.Command {
	var (
		kind   string
		limit  int
		pick   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List published versions",
		Args:  positional(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			vi, err := a.listVersions(c)
			if err != nil {
				return err
			}
			refs := filterVersions(vi.Versions, kind, limit)

			out := c.OutOrStdout()
			if pick {
				id, err := ui.PickVersion(refs, "")
				if err != nil {
					return pickError(err)
				}
				fmt.Fprintln(out, id)
				return nil
			}
			if asJSON {
				return writeJSON(out, refs)
			}

			fmt.Fprintf(out, "latest release: %s  latest snapshot: %s\n\n", vi.Latest.Release, vi.Latest.Snapshot)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tRELEASED")
			for _, v := range refs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Type, v.ReleaseTime)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "Only list versions of this type (release, snapshot, ...)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n versions (0 for all)")
	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "Choose a version interactively and print its id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print versions as JSON")
	return cmd
}

func (a *app) listVersions(c *cobra.Command) (*manifest.VersionIndex, error) {
	vi, err := a.source(a.httpClient()).ListVersions(c.Context())
	if err != nil {
		if isInterrupt(err) {
			return nil, withCode(ExitInterrupted, err)
		}
		return nil, withCode(ExitManifestError, err)
	}
	return vi, nil
}

// pickVersion runs the interactive picker over every published version.
func (a *app) pickVersion(c *cobra.Command, query string) (string, error) {
	vi, err := a.listVersions(c)
	if err != nil {
		return "", err
	}
	id, err := ui.PickVersion(vi.Versions, query)
	if err != nil {
		return "", pickError(err)
	}
	return id, nil
}

func pickError(err error) error {
	if errors.Is(err, ui.ErrNoSelection) {
		return withCode(ExitInterrupted, errors.New("no version selected"))
	}
	return withCode(ExitInvalidArgs, err)
}

// filterVersions keeps index order, which lists the newest first.
func filterVersions(refs []manifest.VersionRef, kind string, limit int) []manifest.VersionRef {
	out := make([]manifest.VersionRef, 0, len(refs))
	for _, v := range refs {
		if kind != "" && v.Type != kind {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
