package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"gamefetch/internal/download"
)

// Bar renders aggregate transfer counts as a terminal progress bar. It
// implements download.Hooks.
type Bar struct {
	w   io.Writer
	bar *progressbar.ProgressBar

	mu    sync.Mutex
	total int

	bytes   atomic.Int64
	done    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

var _ download.Hooks = (*Bar)(nil)

// New returns a Bar writing to w.
func New(w io.Writer, description string) *Bar {
	b := &Bar{w: w}
	b.bar = progressbar.NewOptions(
		0,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
	return b
}

// OnRoundStart grows the bar by the entries dispatched in this round.
func (b *Bar) OnRoundStart(round, pending int) {
	b.mu.Lock()
	b.total += pending
	total := b.total
	b.mu.Unlock()
	b.bar.ChangeMax(total)
	if round > 1 {
		b.bar.Describe(fmt.Sprintf("retry round %d", round))
	}
}

func (b *Bar) OnTransferDone(_ download.Entry, n int64, err error) {
	if err != nil {
		b.failed.Add(1)
	} else {
		b.done.Add(1)
		b.bytes.Add(n)
	}
	_ = b.bar.Add(1)
}

func (b *Bar) OnDropped(download.Failure) {
	b.dropped.Add(1)
}

// Bytes returns the bytes written by successful transfers so far.
func (b *Bar) Bytes() int64 { return b.bytes.Load() }

// Finish completes the bar and prints a one-line summary.
func (b *Bar) Finish() {
	_ = b.bar.Finish()
	fmt.Fprintf(b.w, "%d ok, %d attempts failed, %d dropped, %s written\n",
		b.done.Load(), b.failed.Load(), b.dropped.Load(), humanize.Bytes(uint64(b.bytes.Load())))
}
