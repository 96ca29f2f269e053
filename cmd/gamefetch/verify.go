package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gamefetch/internal/ui"
)

func newVerifyCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify [version]",
		Short: "Check an installed version against its manifest hashes",
		Args:  positional(cobra.MaximumNArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			versionID := "latest"
			if len(args) == 1 {
				versionID = args[0]
			}

			deps, err := a.installer(ctx, false, nil)
			if err != nil {
				return err
			}
			defer deps.close()

			ms, err := deps.installer.VerifyVersion(ctx, versionID)
			if err != nil {
				return installError(err)
			}

			out := c.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, ms); err != nil {
					return err
				}
			} else if len(ms) == 0 {
				fmt.Fprintf(out, "%s: all files verified\n", versionID)
			} else {
				ui.WriteMismatches(out, ms)
			}
			if len(ms) > 0 {
				return withCode(ExitAuditFailed, errAuditFailed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print mismatches as JSON")
	return cmd
}
