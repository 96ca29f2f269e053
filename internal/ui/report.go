package ui

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"gamefetch/internal/download"
	"gamefetch/internal/install"
	"gamefetch/internal/store"
)

const (
	urlWidth  = 48
	pathWidth = 56
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteInstallSummary prints the outcome of one install.
func WriteInstallSummary(w io.Writer, rep *install.Report) {
	fmt.Fprintf(w, "run %s: version %s into %s\n", ShortID(rep.RunID), rep.VersionID, rep.Root)
	fmt.Fprintf(w, "  queued %s, already present %s\n", humanize.Comma(int64(rep.Queued)), humanize.Comma(int64(rep.Skipped)))
	if dl := rep.Download; dl != nil {
		fmt.Fprintf(w, "  %s transfers in %d round(s), %s written, %d failed\n",
			humanize.Comma(int64(dl.Succeeded)), dl.Rounds, humanize.Bytes(uint64(dl.BytesWritten)), len(dl.Failed))
	}
	if rep.RuntimeFiles > 0 {
		fmt.Fprintf(w, "  runtime extracted (%d files)\n", rep.RuntimeFiles)
	}
	if rep.RuntimeError != "" {
		fmt.Fprintf(w, "  runtime: %s\n", rep.RuntimeError)
	}
	fmt.Fprintf(w, "  finished in %s\n", rep.Elapsed.Round(time.Millisecond))
	if rep.Download != nil && len(rep.Download.Failed) > 0 {
		fmt.Fprintln(w)
		WriteFailures(w, rep.Download.Failed)
	}
	if len(rep.Mismatches) > 0 {
		fmt.Fprintln(w)
		WriteMismatches(w, rep.Mismatches)
	}
}

// WriteFailures prints the permanent failure report of a download run.
func WriteFailures(w io.Writer, failed []download.Failure) {
	tw := newTable(w)
	fmt.Fprintln(tw, "KIND\tATTEMPTS\tURL\tPATH")
	for _, f := range failed {
		kind := "error"
		if k := download.Kind(f.Err); k != nil {
			kind = k.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", kind, f.Entry.Attempts,
			TruncateLeft(f.Entry.URL, urlWidth), TruncateLeft(f.Entry.Path, pathWidth))
	}
	_ = tw.Flush()
}

// WriteMismatches prints audit findings.
func WriteMismatches(w io.Writer, ms []install.Mismatch) {
	tw := newTable(w)
	fmt.Fprintln(tw, "KIND\tSTATE\tEXPECTED\tPATH")
	for _, m := range ms {
		state := "corrupt"
		if m.Missing {
			state = "missing"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Kind, state, ShortID(m.Expected), TruncateLeft(m.Path, pathWidth))
	}
	_ = tw.Flush()
}

// WriteRuns prints a history listing, newest first as given.
func WriteRuns(w io.Writer, runs []store.Run, now time.Time) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tVERSION\tSTATUS\tOK\tFAILED\tWRITTEN\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			ShortID(r.ID), TruncateWithEllipsis(r.VersionID, 24), r.Status, r.Succeeded, r.FailedCount,
			humanize.Bytes(uint64(r.BytesWritten)), humanize.RelTime(r.StartedAt, now, "ago", "from now"))
	}
	_ = tw.Flush()
}

// WriteRunFailures prints the stored failures of one run.
func WriteRunFailures(w io.Writer, failures []store.Failure) {
	tw := newTable(w)
	fmt.Fprintln(tw, "KIND\tATTEMPTS\tURL\tMESSAGE")
	for _, f := range failures {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.Kind, f.Attempts,
			TruncateLeft(f.URL, urlWidth), TruncateWithEllipsis(f.Message, 60))
	}
	_ = tw.Flush()
}
