package report

import (
	"bytes"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

var htmlPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Docs Smoke Report {{.RunID}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 960px; }
    table { border-collapse: collapse; }
    th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
    code { background: #f4f4f4; padding: 0 0.2rem; }
  </style>
</head>
<body>
  <article>{{.Content}}</article>
</body>
</html>
`))

// HTMLWriter renders the Markdown report to a standalone HTML page.
type HTMLWriter struct {
	baseWriter
	md goldmark.Markdown
}

// NewHTMLWriter creates an HTMLWriter that outputs to output.
func NewHTMLWriter(output io.Writer) *HTMLWriter {
	return &HTMLWriter{
		baseWriter: newBaseWriter(output),
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Table,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

func (w *HTMLWriter) Write(run *smoke.Run) (int, error) {
	var src bytes.Buffer
	if _, err := NewMarkdownWriter(&src).Write(run); err != nil {
		return 0, err
	}

	var body bytes.Buffer
	if err := w.md.Convert(src.Bytes(), &body); err != nil {
		return 0, err
	}

	var page bytes.Buffer
	// Raw HTML in the markdown is escaped by goldmark's default renderer, so
	// the converted body is safe to embed.
	if err := htmlPage.Execute(&page, struct {
		RunID   string
		Content template.HTML
	}{RunID: run.ID, Content: template.HTML(body.String())}); err != nil {
		return 0, err
	}
	return w.output.Write(page.Bytes())
}
