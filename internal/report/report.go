// Package report accumulates per-run counters and prints human-readable progress.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/fatih/color"
)

// Summary holds the counters of one invocation.
type Summary struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
}

// Add counts one file outcome.
func (s *Summary) Add(res model.FileResult) {
	s.Total++
	switch {
	case res.OK:
		s.Succeeded++
	case res.Skipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Reporter writes progress lines. Colours are dropped automatically when the
// output is not a terminal (fatih/color.NoColor).
type Reporter struct {
	out     io.Writer
	label   *color.Color
	success *color.Color
	failure *color.Color
	muted   *color.Color
}

func New(out io.Writer) *Reporter {
	return &Reporter{
		out:     out,
		label:   color.New(color.FgCyan, color.Bold),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		muted:   color.New(color.FgHiBlack),
	}
}

// Workflow prints the one-line summary of an extracted workflow document.
func (r *Reporter) Workflow(base string, nodes, links int, sample []string) {
	r.label.Fprint(r.out, "[WORKFLOW]")
	fmt.Fprintf(r.out, " %s: %d nodes, %d links, sample: [%s]\n", base, nodes, links, strings.Join(sample, ", "))
}

// Prompt prints the one-line summary of an extracted prompt document.
func (r *Reporter) Prompt(base string, entries int) {
	r.label.Fprint(r.out, "[PROMPT]")
	fmt.Fprintf(r.out, "   %s: %d entries\n", base, entries)
}

// Metadata describes what is about to be stripped.
func (r *Reporter) Metadata(info model.Info, exifTags int) {
	if exifTags > 0 {
		r.muted.Fprintf(r.out, "Original image has %d EXIF tags\n", exifTags)
	}
	if info.Len() == 0 {
		return
	}
	r.muted.Fprintf(r.out, "Original image has %d info tags\n", info.Len())
	if info.Has(string(model.KeyWorkflow)) {
		r.muted.Fprintln(r.out, "  - Contains ComfyUI workflow metadata")
	}
	if info.Has(string(model.KeyPrompt)) {
		r.muted.Fprintln(r.out, "  - Contains ComfyUI prompt metadata")
	}
}

// Cleaned reports a sanitized file.
func (r *Reporter) Cleaned(in, out string) {
	r.success.Fprintf(r.out, "Successfully removed metadata from: %s\n", in)
	if out != in {
		fmt.Fprintf(r.out, "Clean image saved as: %s\n", out)
	}
}

// Failed reports a per-file failure.
func (r *Reporter) Failed(path string, err error) {
	r.failure.Fprintf(r.out, "Error processing %s: %v\n", path, err)
}

// Totals prints the closing line of a batch.
func (r *Reporter) Totals(s Summary, noun string) {
	fmt.Fprintln(r.out)
	r.label.Fprintf(r.out, "Processed %d %s total", s.Succeeded, noun)
	if s.Failed > 0 || s.Skipped > 0 {
		fmt.Fprintf(r.out, " (%d failed, %d skipped)", s.Failed, s.Skipped)
	}
	fmt.Fprintln(r.out)
}
