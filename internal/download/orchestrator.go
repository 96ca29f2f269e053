package download

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"gamefetch/internal/logging"
)

// DefaultMaxRetries bounds re-dispatches of one entry: four attempts in total.
const DefaultMaxRetries = 3

// TransferFunc performs one attempt for e and returns the bytes written.
type TransferFunc func(ctx context.Context, e Entry) (int64, error)

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	// Workers bounds concurrent transfers within a round. <= 0 means NumCPU.
	Workers int

	// MaxRetries is the number of re-dispatches after the first attempt.
	MaxRetries int

	// RoundDelay is slept before every round after the first.
	RoundDelay time.Duration

	Hooks Hooks

	// Transfer replaces the default fetch-write-verify attempt.
	Transfer TransferFunc
}

// DefaultOrchestratorOptions returns the reference retry policy: NumCPU
// workers, three retries and no delay between rounds.
func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		Workers:    runtime.NumCPU(),
		MaxRetries: DefaultMaxRetries,
	}
}

// Report summarises one Run.
type Report struct {
	Rounds       int       `json:"rounds"`
	Dispatched   int       `json:"dispatched"`
	Succeeded    int       `json:"succeeded"`
	BytesWritten int64     `json:"bytes_written"`
	Failed       []Failure `json:"failed"`
}

// OK reports whether every entry completed.
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

// Orchestrator drives pending entries through rounds of concurrent transfers
// until every entry succeeded or was dropped.
type Orchestrator struct {
	opts     OrchestratorOptions
	transfer TransferFunc
	failures *FailureSet
}

// NewOrchestrator creates an orchestrator fetching through f. f may be nil
// when opts.Transfer is set.
func NewOrchestrator(f Fetcher, opts OrchestratorOptions) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = max(runtime.NumCPU(), 1)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	o := &Orchestrator{
		opts:     opts,
		transfer: opts.Transfer,
		failures: NewFailureSet(0),
	}
	if o.transfer == nil {
		o.transfer = func(ctx context.Context, e Entry) (int64, error) {
			return Transfer(ctx, f, e.URL, e.Path, e.ExpectedHash)
		}
	}
	return o
}

// Run processes pending until the failure set is empty. Permanent failures
// are returned in the report, never as an error. The returned error is
// non-nil only when ctx ends; the round in flight still completes and the
// failures that would have been retried are reported with the context error.
func (o *Orchestrator) Run(ctx context.Context, pending []Entry) (*Report, error) {
	report := &Report{}
	pending = uniqueByPath(pending)
	var interrupted error

	for round := 1; len(pending) > 0; round++ {
		if round > 1 && o.opts.RoundDelay > 0 {
			t := time.NewTimer(o.opts.RoundDelay)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			for _, e := range pending {
				o.drop(report, Failure{Entry: e, Err: err})
			}
			return report, err
		}

		report.Rounds = round
		logging.LogRoundStart(round, len(pending))
		if o.opts.Hooks != nil {
			o.opts.Hooks.OnRoundStart(round, len(pending))
		}

		start := time.Now()
		succeeded, written := o.dispatch(ctx, pending)
		failed := o.failures.Drain()

		report.Dispatched += len(pending)
		report.Succeeded += succeeded
		report.BytesWritten += written
		logging.LogRoundComplete(round, len(pending), len(failed), time.Since(start))

		pending = make([]Entry, 0, len(failed))
		for _, f := range failed {
			if err := os.Remove(f.Entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logging.With(ctx).Warn("remove failed destination",
					"event", "cleanup_error",
					"path", f.Entry.Path,
					"error", err)
			}
			switch {
			case !Retryable(f.Err):
				o.drop(report, f)
			case f.Entry.Attempts > o.opts.MaxRetries:
				o.drop(report, f)
			case ctx.Err() != nil:
				interrupted = ctx.Err()
				o.drop(report, Failure{Entry: f.Entry, Err: errors.Join(interrupted, f.Err)})
			default:
				pending = append(pending, f.Entry)
			}
		}
	}

	return report, interrupted
}

// dispatch runs one round: every entry in its own goroutine, at most Workers
// at a time, then waits for all of them. Failures land in o.failures with
// their attempt count incremented.
func (o *Orchestrator) dispatch(ctx context.Context, pending []Entry) (int, int64) {
	o.failures.Reset()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		written   atomic.Int64
		sem       = make(chan struct{}, o.opts.Workers)
	)
	for _, e := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(e Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			logging.LogTransferStart(e.URL, e.Path, e.Attempts+1)
			n, err := o.transfer(ctx, e)
			if o.opts.Hooks != nil {
				o.opts.Hooks.OnTransferDone(e, n, err)
			}
			if err != nil {
				logging.LogTransferError(e.URL, e.Path, e.Attempts+1, err)
				o.failures.Add(Failure{Entry: e.Retry(), Err: err})
				return
			}
			succeeded.Add(1)
			written.Add(n)
		}(e)
	}
	wg.Wait()

	return int(succeeded.Load()), written.Load()
}

func (o *Orchestrator) drop(report *Report, f Failure) {
	logging.LogEntryDropped(f.Entry.URL, f.Entry.Path, f.Entry.Attempts, f.Err)
	if o.opts.Hooks != nil {
		o.opts.Hooks.OnDropped(f)
	}
	report.Failed = append(report.Failed, f)
}

// uniqueByPath keeps the first entry per destination path.
func uniqueByPath(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Path]; ok {
			continue
		}
		seen[e.Path] = struct{}{}
		out = append(out, e)
	}
	return out
}
