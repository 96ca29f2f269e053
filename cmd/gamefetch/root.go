package main

import (
	"time"

	"github.com/spf13/cobra"

	"gamefetch/internal/config"
	"gamefetch/internal/logging"
)

// app is shared by every subcommand. cfg is populated in PersistentPreRunE.
type app struct {
	configPath string
	cfg        *config.Config

	// flag-backed overrides, applied only when set on the command line
	flags  config.Config
	noProg bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "gamefetch",
		Short:         "gamefetch - download and verify game installations",
		Version:       config.New().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          positional(cobra.NoArgs),
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if !c.HasParent() {
				return nil
			}
			return a.loadConfig(c)
		},
		RunE: func(c *cobra.Command, args []string) error {
			return c.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return withCode(ExitInvalidArgs, err)
	})

	pf := cmd.PersistentFlags()
	defaults := config.New()
	pf.StringVarP(&a.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	pf.StringVarP(&a.flags.RootDir, "root", "r", "", "Installation directory (default ~/.gamefetch)")
	pf.IntVarP(&a.flags.Workers, "workers", "w", defaults.Workers, "Concurrent transfers per round")
	pf.IntVar(&a.flags.MaxRetries, "max-retries", defaults.MaxRetries, "Retries per file after the first attempt")
	pf.DurationVar(&a.flags.RoundDelay, "round-delay", 0, "Pause before each retry round")
	pf.DurationVar(&a.flags.RequestTimeout, "timeout", defaults.RequestTimeout, "Per-request timeout")
	pf.BoolVar(&a.flags.VerifyExisting, "verify-existing", false, "Re-hash files that are already present")
	pf.StringVar(&a.flags.ManifestURL, "manifest-url", defaults.ManifestURL, "Version index URL")
	pf.StringVar(&a.flags.AssetBaseURL, "asset-base-url", defaults.AssetBaseURL, "Asset object base URL")
	pf.StringVar(&a.flags.RuntimeAPIURL, "runtime-api-url", defaults.RuntimeAPIURL, "Runtime metadata API URL")
	pf.StringSliceVar(&a.flags.Mirrors, "mirror", nil, "Hash-addressed mirror server (repeatable)")
	pf.StringVar(&a.flags.CacheURL, "cache", "", "Shared object cache bucket URL (file:///path or mem://)")
	pf.StringVar(&a.flags.DBPath, "db", "", "History database path")
	pf.BoolVar(&a.flags.History, "history", false, "Record runs in the history database")
	pf.BoolVar(&a.noProg, "no-progress", false, "Disable the progress bar")
	pf.StringVar(&a.flags.LogLevel, "log-level", defaults.LogLevel, "Log level: debug|info|warn|error")

	cmd.AddCommand(
		newInstallCmd(a),
		newVerifyCmd(a),
		newVersionsCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// positional makes a failed argument check exit with ExitInvalidArgs.
func positional(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(c *cobra.Command, args []string) error {
		return withCode(ExitInvalidArgs, check(c, args))
	}
}

// loadConfig layers defaults, the config file, GAMEFETCH_* variables and
// explicitly set flags, in that order.
func (a *app) loadConfig(c *cobra.Command) error {
	fs := c.Flags()
	cfg := config.New()
	if a.configPath != "" {
		loaded, err := config.LoadFromFile(a.configPath)
		if err != nil {
			return withCode(ExitInvalidArgs, err)
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return withCode(ExitInvalidArgs, err)
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	f := &a.flags
	set("root", func() { cfg.RootDir = f.RootDir })
	set("workers", func() { cfg.Workers = f.Workers })
	set("max-retries", func() { cfg.MaxRetries = f.MaxRetries })
	set("round-delay", func() { cfg.RoundDelay = f.RoundDelay })
	set("timeout", func() { cfg.RequestTimeout = f.RequestTimeout })
	set("verify-existing", func() { cfg.VerifyExisting = f.VerifyExisting })
	set("manifest-url", func() { cfg.ManifestURL = f.ManifestURL })
	set("asset-base-url", func() { cfg.AssetBaseURL = f.AssetBaseURL })
	set("runtime-api-url", func() { cfg.RuntimeAPIURL = f.RuntimeAPIURL })
	set("mirror", func() { cfg.Mirrors = f.Mirrors })
	set("cache", func() { cfg.CacheURL = f.CacheURL })
	set("db", func() { cfg.DBPath = f.DBPath })
	set("host", func() { cfg.Host = f.Host })
	set("port", func() { cfg.Port = f.Port })
	set("log-level", func() { cfg.LogLevel = f.LogLevel })
	set("history", func() { cfg.History = f.History })
	set("no-progress", func() { cfg.Progress = !a.noProg })

	if err := cfg.Validate(); err != nil {
		return withCode(ExitInvalidArgs, err)
	}
	if err := cfg.ResolveRootDir(); err != nil {
		return withCode(ExitInvalidArgs, err)
	}
	if err := cfg.ResolveDBPath(); err != nil {
		return withCode(ExitInvalidArgs, err)
	}
	cfg.StartTime = time.Now()

	logging.InitWithWriter(logging.ParseLevel(cfg.LogLevel), c.ErrOrStderr())
	logging.Logger.Debug("configuration loaded", "event", "config_loaded", "config", cfg.Summary())
	a.cfg = cfg
	return nil
}

