package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"gamefetch/internal/download"
	"gamefetch/internal/jre"
	"gamefetch/internal/layout"
	"gamefetch/internal/logging"
	"gamefetch/internal/manifest"
	"gamefetch/internal/store"
)

// History records install runs. *store.Store satisfies it.
type History interface {
	InsertRun(ctx context.Context, id, versionID, root string) error
	FinishRun(ctx context.Context, id string, res store.Result) error
}

// RuntimeResolver finds the runtime archive for a Java major version.
// *jre.Resolver satisfies it.
type RuntimeResolver interface {
	ArchiveURL(ctx context.Context, major int) (string, error)
}

// Options configures an Installer.
type Options struct {
	Workers    int
	MaxRetries int
	RoundDelay time.Duration

	AssetBaseURL   string
	OS             string
	VerifyExisting bool

	// Runtime is consulted when the version names a Java major version and
	// no runtime is extracted yet. Nil skips the runtime bundle.
	Runtime RuntimeResolver

	// History is optional.
	History History

	Hooks download.Hooks
}

// Mismatch is a file the post-install audit found missing or corrupt.
type Mismatch struct {
	Kind     string `json:"kind"`
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Missing  bool   `json:"missing,omitempty"`
}

// Report summarises one Install.
type Report struct {
	RunID        string           `json:"run_id"`
	VersionID    string           `json:"version_id"`
	Root         string           `json:"root"`
	Queued       int              `json:"queued"`
	Skipped      int              `json:"skipped"`
	Download     *download.Report `json:"download"`
	RuntimeFiles int              `json:"runtime_files,omitempty"`
	RuntimeError string           `json:"runtime_error,omitempty"`
	Mismatches   []Mismatch       `json:"mismatches"`
	Elapsed      time.Duration    `json:"elapsed"`
}

// OK reports whether every file was installed and verified.
func (r *Report) OK() bool {
	return r.Download != nil && r.Download.OK() && r.RuntimeError == "" && len(r.Mismatches) == 0
}

// Installer drives one version installation into a layout.
type Installer struct {
	source  manifest.Source
	layout  layout.Layout
	fetcher download.Fetcher
	opts    Options
}

// New creates an Installer. f performs every file fetch.
func New(src manifest.Source, l layout.Layout, f download.Fetcher, opts Options) *Installer {
	if opts.Workers <= 0 {
		opts.Workers = max(runtime.NumCPU(), 1)
	}
	return &Installer{source: src, layout: l, fetcher: f, opts: opts}
}

// Install resolves versionID, downloads everything it needs and audits the
// result. Per-file failures do not abort the install; they are listed in
// the returned report. An error is returned only when the install could not
// run at all or ctx ended.
func (i *Installer) Install(ctx context.Context, versionID string) (*Report, error) {
	start := time.Now()
	rep := &Report{
		RunID:     uuid.NewString(),
		VersionID: versionID,
		Root:      i.layout.Root,
	}
	logging.LogInstallStart(rep.RunID, versionID, i.layout.Root)
	i.beginHistory(ctx, rep)

	err := i.install(ctx, rep)
	rep.Elapsed = time.Since(start)
	i.finishHistory(ctx, rep, err)

	if rep.Download != nil {
		logging.LogInstallComplete(rep.RunID, rep.VersionID, rep.Download.Succeeded, len(rep.Download.Failed), len(rep.Mismatches), rep.Elapsed)
	}
	return rep, err
}

func (i *Installer) install(ctx context.Context, rep *Report) error {
	v, err := i.source.ResolveVersion(ctx, rep.VersionID)
	if err != nil {
		return fmt.Errorf("resolve version %s: %w", rep.VersionID, err)
	}
	rep.VersionID = v.ID

	idx, err := i.source.LoadAssetIndex(ctx, v.AssetIndex)
	if err != nil {
		return fmt.Errorf("load asset index %s: %w", v.AssetIndex.ID, err)
	}

	if err := i.layout.Ensure(); err != nil {
		return fmt.Errorf("%w: %v", download.ErrIO, err)
	}

	b := download.NewSetBuilder(i.layout, download.BuilderOptions{
		AssetBaseURL:   i.opts.AssetBaseURL,
		OS:             i.opts.OS,
		VerifyExisting: i.opts.VerifyExisting,
	})
	if err := b.PopulateLibraries(v); err != nil {
		return err
	}
	if err := b.PopulateAssets(idx); err != nil {
		return err
	}
	runtimePending := false
	if url := i.runtimeURL(ctx, v, rep); url != "" {
		if runtimePending, err = b.PopulateRuntime(url); err != nil {
			return err
		}
	}
	if err := b.PopulateGameArtifact(v); err != nil {
		return err
	}

	pending := b.Entries()
	rep.Queued = len(pending)
	rep.Skipped = b.Skipped()

	orch := download.NewOrchestrator(i.fetcher, download.OrchestratorOptions{
		Workers:    i.opts.Workers,
		MaxRetries: i.opts.MaxRetries,
		RoundDelay: i.opts.RoundDelay,
		Hooks:      i.opts.Hooks,
	})
	dl, runErr := orch.Run(ctx, pending)
	rep.Download = dl
	if runErr != nil {
		return runErr
	}

	if runtimePending {
		i.extractRuntime(ctx, rep)
	}
	rep.Mismatches = i.Audit(ctx, v, idx)
	return ctx.Err()
}

// runtimeURL returns the archive URL to queue, or "" when no runtime is
// needed. Lookup failures are recorded on rep and do not abort the install.
func (i *Installer) runtimeURL(ctx context.Context, v *manifest.Version, rep *Report) string {
	if i.opts.Runtime == nil || v.JavaVersion.MajorVersion <= 0 {
		return ""
	}
	if info, err := os.Stat(i.layout.RuntimeBinDir()); err == nil && info.IsDir() {
		return ""
	}
	url, err := i.opts.Runtime.ArchiveURL(ctx, v.JavaVersion.MajorVersion)
	if err != nil {
		rep.RuntimeError = err.Error()
		logging.With(ctx).Warn("runtime lookup failed",
			"event", "runtime_lookup_error",
			"java_major", v.JavaVersion.MajorVersion,
			"error", err)
		return ""
	}
	return url
}

// extractRuntime unpacks the runtime archive. A failed extraction clears
// runtime/ so the next install looks the bundle up and downloads it again.
func (i *Installer) extractRuntime(ctx context.Context, rep *Report) {
	log := logging.With(ctx, "run_id", rep.RunID)
	archive := i.layout.RuntimeArchivePath()
	if _, err := os.Stat(archive); err != nil {
		// Dropped by the orchestrator; already in the failure report.
		return
	}
	n, err := jre.Extract(archive, i.layout.RuntimeDir())
	if err != nil {
		rep.RuntimeError = err.Error()
		log.Error("runtime extraction failed", "event", "runtime_extract_error", "archive", archive, "error", err)
		if rerr := os.RemoveAll(i.layout.RuntimeDir()); rerr != nil {
			log.Warn("could not clear runtime directory", "event", "runtime_cleanup_error", "dir", i.layout.RuntimeDir(), "error", rerr)
		}
		return
	}
	rep.RuntimeFiles = n
	if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not remove runtime archive", "event", "runtime_cleanup_error", "archive", archive, "error", err)
	}
}

func (i *Installer) beginHistory(ctx context.Context, rep *Report) {
	if i.opts.History == nil {
		return
	}
	if err := i.opts.History.InsertRun(context.WithoutCancel(ctx), rep.RunID, rep.VersionID, rep.Root); err != nil {
		logging.LogDBOperation("insert_run", rep.RunID, err)
	}
}

// History writes ignore cancellation of ctx so an interrupted install is
// still recorded.
func (i *Installer) finishHistory(parent context.Context, rep *Report, installErr error) {
	if i.opts.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
	defer cancel()
	if err := i.opts.History.FinishRun(ctx, rep.RunID, historyResult(rep, installErr)); err != nil {
		logging.LogDBOperation("finish_run", rep.RunID, err)
	}
}

func historyResult(rep *Report, installErr error) store.Result {
	res := store.Result{
		VersionID:  rep.VersionID,
		Status:     store.StatusCompleted,
		Mismatches: len(rep.Mismatches),
	}
	if dl := rep.Download; dl != nil {
		res.Rounds = dl.Rounds
		res.Dispatched = dl.Dispatched
		res.Succeeded = dl.Succeeded
		res.BytesWritten = dl.BytesWritten
		for _, f := range dl.Failed {
			kind := ""
			if k := download.Kind(f.Err); k != nil {
				kind = k.Error()
			}
			res.Failures = append(res.Failures, store.Failure{
				URL:      f.Entry.URL,
				Path:     f.Entry.Path,
				Attempts: f.Entry.Attempts,
				Kind:     kind,
				Message:  f.Message(),
			})
		}
	}
	switch {
	case errors.Is(installErr, context.Canceled), errors.Is(installErr, context.DeadlineExceeded):
		res.Status = store.StatusInterrupted
		res.Error = installErr.Error()
	case installErr != nil:
		res.Status = store.StatusFailed
		res.Error = installErr.Error()
	case !rep.OK():
		res.Status = store.StatusIncomplete
		res.Error = rep.RuntimeError
	}
	return res
}
