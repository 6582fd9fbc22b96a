package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

// MarkdownWriter outputs a run as a GitHub-flavored Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

func (w *MarkdownWriter) Write(run *smoke.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeResults(md, run)
	w.writeFailures(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *smoke.Run) {
	md.H1("Docs Smoke Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + run.ID + "`"},
			{"Base URL", run.BaseURL},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", strconv.FormatInt(run.DurationMS, 10) + " ms"},
			{"Passed", strconv.Itoa(run.Passed)},
			{"Failed", strconv.Itoa(run.Failed)},
		},
	})
	md.PlainText("")

	if run.OK() {
		md.Tip("All checks passed.")
	} else {
		md.Cautionf("%d of %d check(s) failed.", run.Failed, len(run.Results))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, run *smoke.Run) {
	md.H2("Checks")
	md.PlainText("")

	rows := make([][]string, len(run.Results))
	for i, res := range run.Results {
		status := "✅ passed"
		if !res.Passed() {
			status = "❌ failed"
		}
		failed := res.FailedStep
		if failed == "" {
			failed = "-"
		}
		rows[i] = []string{res.Check, res.Kind, status, failed, strconv.FormatInt(res.DurationMS, 10)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Check", "Kind", "Status", "Failed step", "ms"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, run *smoke.Run) {
	if run.OK() {
		return
	}
	md.H2("Failures")
	md.PlainText("")

	for _, res := range run.Results {
		if res.Passed() {
			continue
		}
		md.PlainText("### " + res.Check)
		md.PlainText("")
		md.Warningf("`%s` at step **%s**: %s", res.ErrorCode, res.FailedStep, truncateString(res.Error, 300))
		md.PlainText("")

		rows := make([][]string, 0, len(res.Steps))
		for _, s := range res.Steps {
			detail := s.Detail
			if s.Error != "" {
				detail = s.Error
			}
			if detail == "" {
				detail = "-"
			}
			rows = append(rows, []string{s.Name, string(s.Status), truncateString(detail, 80)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Step", "Status", "Detail"},
			Rows:   rows,
		})
		md.PlainText("")
		md.BulletList("Page: " + res.URL)
		if res.ArtifactID != "" {
			md.BulletList("Screenshot: `" + res.ArtifactID + "`")
		}
		if len(res.ConsoleErrors) > 0 {
			md.PlainText("")
			md.PlainText("Console errors:")
			md.CodeBlocks(markdown.SyntaxHighlight("text"), strings.Join(res.ConsoleErrors, "\n"))
		}
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by docsmoke*")
}
