package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

// ListWriter prints one line per check and the failing steps beneath it.
type ListWriter struct {
	baseWriter
}

// NewListWriter creates a ListWriter that outputs to output.
func NewListWriter(output io.Writer) *ListWriter {
	return &ListWriter{baseWriter: newBaseWriter(output)}
}

func (w *ListWriter) Write(run *smoke.Run) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "\nRunning %d check(s) against %s\n\n", len(run.Results), run.BaseURL)

	for i, res := range run.Results {
		mark := "✓"
		if !res.Passed() {
			mark = "✘"
		}
		fmt.Fprintf(&b, "  %s  %d %s › %s (%dms)\n", mark, i+1, res.Kind, res.Check, res.DurationMS)
	}

	failures := 0
	for _, res := range run.Results {
		if res.Passed() {
			continue
		}
		failures++
		fmt.Fprintf(&b, "\n  %d) %s › %s\n\n", failures, res.Kind, res.Check)
		fmt.Fprintf(&b, "    url: %s\n", res.URL)
		fmt.Fprintf(&b, "    %s [%s]\n", res.Error, res.ErrorCode)
		for _, s := range res.Steps {
			fmt.Fprintf(&b, "      %-8s %s", s.Status, s.Name)
			if s.Detail != "" {
				fmt.Fprintf(&b, " (%s)", s.Detail)
			}
			b.WriteString("\n")
		}
		if res.ArtifactID != "" {
			fmt.Fprintf(&b, "    screenshot: %s\n", res.ArtifactID)
		}
		for _, e := range res.ConsoleErrors {
			fmt.Fprintf(&b, "    console: %s\n", e)
		}
	}

	fmt.Fprintf(&b, "\n  %d passed", run.Passed)
	if run.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", run.Failed)
	}
	fmt.Fprintf(&b, " (%dms)\n", run.DurationMS)

	return io.WriteString(w.output, b.String())
}
