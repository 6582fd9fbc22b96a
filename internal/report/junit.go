package report

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	ID       string           `xml:"id,attr"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Errors   int              `xml:"errors,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Hostname  string          `xml:"hostname,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	Errors    int             `xml:"errors,attr"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitWriter writes one testsuite per check kind in the JUnit XML layout CI
// systems ingest.
type JUnitWriter struct {
	baseWriter
}

// NewJUnitWriter creates a JUnitWriter that outputs to output.
func NewJUnitWriter(output io.Writer) *JUnitWriter {
	return &JUnitWriter{baseWriter: newBaseWriter(output)}
}

func (w *JUnitWriter) Write(run *smoke.Run) (int, error) {
	doc := junitTestSuites{
		ID:       run.ID,
		Name:     "docsmoke",
		Tests:    len(run.Results),
		Failures: run.Failed,
		Time:     seconds(run.DurationMS),
	}

	index := map[string]int{}
	for _, res := range run.Results {
		i, ok := index[res.Kind]
		if !ok {
			i = len(doc.Suites)
			index[res.Kind] = i
			doc.Suites = append(doc.Suites, junitTestSuite{
				Name:      res.Kind,
				Timestamp: res.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		suite := &doc.Suites[i]
		suite.Tests++

		tc := junitTestCase{
			Name:      res.Check,
			ClassName: res.Kind,
			Time:      seconds(res.DurationMS),
			SystemOut: stepLog(res),
		}
		if !res.Passed() {
			suite.Failures++
			tc.Failure = &junitFailure{
				Message: res.Error,
				Type:    res.ErrorCode,
				Body:    res.Error,
			}
		}
		suite.Cases = append(suite.Cases, tc)
	}
	for i := range doc.Suites {
		var ms int64
		for _, tc := range run.Results {
			if tc.Kind == doc.Suites[i].Name {
				ms += tc.DurationMS
			}
		}
		doc.Suites[i].Time = seconds(ms)
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	enc := xml.NewEncoder(&b)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, err
	}
	b.WriteString("\n")
	return io.WriteString(w.output, b.String())
}

func stepLog(res smoke.Result) string {
	var b strings.Builder
	for _, s := range res.Steps {
		b.WriteString(string(s.Status))
		b.WriteString(" ")
		b.WriteString(s.Name)
		if s.Detail != "" {
			b.WriteString(": ")
			b.WriteString(s.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}
