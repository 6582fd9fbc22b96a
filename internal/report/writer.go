// Package report renders smoke runs as a terminal list, JUnit XML, Markdown
// and HTML.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

// Output formats.
const (
	FormatList     = "list"
	FormatJUnit    = "junit"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Writer renders a run to its destination and returns the bytes written.
type Writer interface {
	Write(run *smoke.Run) (int, error)
}

// MultiWriter writes a run to several Writers in order and stops at the
// first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a Writer that writes to every w.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Write(run *smoke.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// NewWriter returns the writer for format.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch format {
	case FormatList:
		return NewListWriter(output), nil
	case FormatJUnit:
		return NewJUnitWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatHTML:
		return NewHTMLWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// ContentType returns the HTTP content type of format.
func ContentType(format string) string {
	switch format {
	case FormatJUnit:
		return "application/xml; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render renders run in format into memory.
func Render(format string, run *smoke.Run) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(format, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fileNames maps file formats to their names under the report directory.
var fileNames = map[string]string{
	FormatJUnit:    "results.xml",
	FormatMarkdown: "report.md",
	FormatHTML:     "report.html",
}

// WriteFiles renders run into dir once per format and returns the paths
// written. The list format has no file form and is skipped.
func WriteFiles(dir string, run *smoke.Run, formats ...string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report dir %s: %w", dir, err)
	}
	var paths []string
	for _, format := range formats {
		name, ok := fileNames[format]
		if !ok {
			continue
		}
		data, err := Render(format, run)
		if err != nil {
			return paths, fmt.Errorf("render %s: %w", format, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.3f", (time.Duration(ms) * time.Millisecond).Seconds())
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
