package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gamefetch/internal/download"
	"gamefetch/internal/install"
	"gamefetch/internal/manifest"
	"gamefetch/internal/ui"
)

func newInstallCmd(a *app) *cobra.Command {
	var (
		pick      bool
		noRuntime bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "install [version]",
		Short: "Download and verify a game version",
		Long: `Install downloads every library, asset and the client artifact of a
version into the installation directory, retrying failed files in rounds,
then audits the result against the manifest hashes.

The version may be an id or one of the aliases latest, release and snapshot.`,
		Args: positional(cobra.MaximumNArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			versionID := "latest"
			if len(args) == 1 {
				versionID = args[0]
			}
			if pick {
				query := ""
				if len(args) == 1 {
					query = args[0]
				}
				id, err := a.pickVersion(c, query)
				if err != nil {
					return err
				}
				versionID = id
			}

			progressOut := c.ErrOrStderr()
			if asJSON {
				progressOut = nil
			}
			deps, err := a.installer(ctx, !noRuntime, progressOut)
			if err != nil {
				return err
			}
			defer deps.close()

			rep, err := deps.installer.Install(ctx, versionID)
			if deps.bar != nil {
				deps.bar.Finish()
			}
			if err != nil {
				// An interrupted run still reports what it got done.
				if rep != nil && rep.Download != nil {
					_ = writeInstallReport(c.OutOrStdout(), rep, asJSON)
				}
				return installError(err)
			}

			if err := writeInstallReport(c.OutOrStdout(), rep, asJSON); err != nil {
				return err
			}
			if !rep.OK() {
				return withCode(ExitIncomplete, errIncomplete)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "Choose the version interactively")
	cmd.Flags().BoolVar(&noRuntime, "no-runtime", false, "Skip the Java runtime bundle")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func writeInstallReport(w io.Writer, rep *install.Report, asJSON bool) error {
	if asJSON {
		return writeJSON(w, rep)
	}
	ui.WriteInstallSummary(w, rep)
	return nil
}

// installError maps an aborted install to its exit code.
func installError(err error) error {
	switch {
	case errors.Is(err, manifest.ErrVersionNotFound), errors.Is(err, manifest.ErrInvalidDocument):
		return withCode(ExitManifestError, err)
	case isInterrupt(err):
		return withCode(ExitInterrupted, err)
	case errors.Is(err, download.ErrIO):
		return withCode(ExitStorageError, err)
	default:
		return withCode(ExitManifestError, fmt.Errorf("install: %w", err))
	}
}
