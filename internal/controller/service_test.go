package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/dgnsrekt/docsmoke/internal/artifact"
	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
	"github.com/dgnsrekt/docsmoke/internal/config"
	"github.com/dgnsrekt/docsmoke/internal/report"
	"github.com/dgnsrekt/docsmoke/internal/runstore"
	"github.com/dgnsrekt/docsmoke/internal/smoke"
	"github.com/dgnsrekt/docsmoke/internal/smoke/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newStores(t *testing.T) (*runstore.Store, *artifact.Store) {
	t.Helper()
	runs, err := runstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("runstore.Open() = %v; want nil", err)
	}
	t.Cleanup(func() { _ = runs.Close() })
	arts, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.NewStore() = %v; want nil", err)
	}
	return runs, arts
}

// passingPages returns pages on which every setup guide step succeeds.
func passingPages(ctrl *gomock.Controller) smoke.PageFactory {
	return func(context.Context) (smoke.Page, error) {
		p := mocks.NewMockPage(ctrl)
		p.EXPECT().Navigate(gomock.Any(), gomock.Any()).Return(cdpcontrol.NavigationResult{StatusCode: 200}, nil)
		p.EXPECT().WaitVisible(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		p.EXPECT().Count(gomock.Any(), gomock.Any()).Return(3, nil).AnyTimes()
		p.EXPECT().Attribute(gomock.Any(), gomock.Any(), "href").Return("#intro", true, nil)
		p.EXPECT().Click(gomock.Any(), gomock.Any()).Return(nil)
		p.EXPECT().Close()
		return p, nil
	}
}

func refusingPages(context.Context) (smoke.Page, error) {
	return nil, errors.New("dial tcp 127.0.0.1:9222: connection refused")
}

func codeOf(err error) string {
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("abc", "run_id"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}

	if err := s.requireNonEmpty("   ", "run_id"); err == nil {
		t.Fatalf("requireNonEmpty() = nil; want validation error")
	} else if got, ok := err.(*cdpcontrol.CodedError); !ok {
		t.Fatalf("requireNonEmpty() = %T; want *cdpcontrol.CodedError", err)
	} else if got.Code != cdpcontrol.CodeValidation {
		t.Fatalf("requireNonEmpty() code = %q; want %q", got.Code, cdpcontrol.CodeValidation)
	} else if got.Message != "run_id is required" {
		t.Fatalf("requireNonEmpty() message = %q; want %q", got.Message, "run_id is required")
	}
}

func TestRunSuite_StoresRunAndWritesReports(t *testing.T) {
	ctrl := gomock.NewController(t)
	runs, arts := newStores(t)
	reportDir := filepath.Join(t.TempDir(), "test-results")

	var events []smoke.Event
	s := NewService(passingPages(ctrl), runs, arts, Options{
		BaseURL:         "http://localhost:8001",
		StrictFragments: true,
		ReportDir:       reportDir,
		ReportFormats:   []string{report.FormatJUnit},
		Observer:        func(e smoke.Event) { events = append(events, e) },
	})

	run, err := s.RunSuite(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("RunSuite() = %v; want nil", err)
	}
	if !run.OK() || run.Passed != 1 {
		t.Fatalf("run = %+v; want one passing check", run)
	}
	if len(events) == 0 || events[len(events)-1].Type != smoke.EventRunFinished {
		t.Fatalf("events = %+v; want trailing run_finished", events)
	}

	stored, err := s.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun() = %v; want nil", err)
	}
	if stored.Results[0].Check != config.CheckSetupGuide {
		t.Fatalf("stored check = %q; want %q", stored.Results[0].Check, config.CheckSetupGuide)
	}

	list, err := s.ListRuns(context.Background(), 10)
	if err != nil || len(list) != 1 || list[0].ID != run.ID {
		t.Fatalf("ListRuns() = %+v, %v; want the run", list, err)
	}

	if _, err := os.Stat(filepath.Join(reportDir, "results.xml")); err != nil {
		t.Fatalf("results.xml not written: %v", err)
	}
	data, ctype, err := s.RenderReport(context.Background(), run.ID, "junit")
	if err != nil {
		t.Fatalf("RenderReport() = %v; want nil", err)
	}
	if !strings.Contains(string(data), "<testsuites") || !strings.HasPrefix(ctype, "application/xml") {
		t.Fatalf("RenderReport() = %q (%s); want junit xml", data, ctype)
	}
}

func TestRunSuite_OpenPageFailureIsAResult(t *testing.T) {
	runs, arts := newStores(t)
	s := NewService(refusingPages, runs, arts, Options{BaseURL: "http://localhost:8001"})

	run, err := s.RunSuite(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("RunSuite() = %v; want nil", err)
	}
	if run.OK() || run.Results[0].ErrorCode != cdpcontrol.CodeCDPUnavailable {
		t.Fatalf("run = %+v; want CDP_UNAVAILABLE failure", run.Results)
	}
}

func TestRunSuite_Validation(t *testing.T) {
	s := NewService(refusingPages, nil, nil, Options{BaseURL: "http://localhost:8001"})

	tests := []struct {
		name string
		req  RunRequest
	}{
		{name: "relative base url", req: RunRequest{BaseURL: "localhost:8001"}},
		{name: "ftp base url", req: RunRequest{BaseURL: "ftp://docs.test"}},
		{name: "unknown check", req: RunRequest{Checks: []string{"nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.RunSuite(context.Background(), tt.req)
			if codeOf(err) != cdpcontrol.CodeValidation {
				t.Fatalf("RunSuite() = %v; want VALIDATION", err)
			}
		})
	}
}

func TestRunSuite_RejectsConcurrentRun(t *testing.T) {
	s := NewService(refusingPages, nil, nil, Options{BaseURL: "http://localhost:8001"})
	s.running = true

	_, err := s.RunSuite(context.Background(), RunRequest{})
	if codeOf(err) != CodeRunInProgress {
		t.Fatalf("RunSuite() = %v; want %s", err, CodeRunInProgress)
	}
}

func TestChecks_SelectsAndOverrides(t *testing.T) {
	suite := &config.Suite{BaseURL: "http://suite.test", Checks: []config.CheckEntry{
		{Name: "guide", Kind: config.CheckSetupGuide, Page: "setup-guide.html", ContentID: "markdown-content", TOCSelector: "#toc a"},
		{Name: "quick", Kind: config.CheckQuickLink, Page: "index.html", URLPattern: "x", ContentID: "markdown-content", LinkSelector: "a", Text: "t"},
	}}
	s := NewService(refusingPages, nil, nil, Options{BaseURL: "http://localhost:8001", Suite: suite, StrictFragments: true})

	lenient := false
	checks, err := s.Checks(RunRequest{BaseURL: "http://override.test/", Checks: []string{"guide"}, StrictFragments: &lenient})
	if err != nil {
		t.Fatalf("Checks() = %v; want nil", err)
	}
	if len(checks) != 1 {
		t.Fatalf("len(checks) = %d; want 1", len(checks))
	}
	guide := checks[0].(*smoke.SetupGuideCheck)
	if guide.BaseURL != "http://override.test" || guide.StrictFragments {
		t.Fatalf("guide = %+v; want override url and lenient fragments", guide)
	}

	checks, err = s.Checks(RunRequest{})
	if err != nil {
		t.Fatalf("Checks() = %v; want nil", err)
	}
	if len(checks) != 2 || checks[0].(*smoke.SetupGuideCheck).BaseURL != "http://suite.test" {
		t.Fatalf("default checks = %+v; want both with suite base url", checks)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	runs, _ := newStores(t)
	s := NewService(refusingPages, runs, nil, Options{BaseURL: "http://localhost:8001"})

	if _, err := s.GetRun(context.Background(), "missing"); !errors.Is(err, runstore.ErrNotFound) {
		t.Fatalf("GetRun() = %v; want ErrNotFound", err)
	}
	if _, err := s.GetRun(context.Background(), " "); codeOf(err) != cdpcontrol.CodeValidation {
		t.Fatalf("GetRun(blank) = %v; want VALIDATION", err)
	}
}

func TestRenderReport_UnknownFormat(t *testing.T) {
	s := NewService(refusingPages, nil, nil, Options{BaseURL: "http://localhost:8001"})
	if _, _, err := s.RenderReport(context.Background(), "id", "pdf"); codeOf(err) != cdpcontrol.CodeValidation {
		t.Fatalf("RenderReport() = %v; want VALIDATION", err)
	}
}

func TestReadArtifact(t *testing.T) {
	_, arts := newStores(t)
	id, err := arts.SaveScreenshot(context.Background(), "r1", "setup-guide", []byte("png"))
	if err != nil {
		t.Fatalf("SaveScreenshot() = %v; want nil", err)
	}
	s := NewService(refusingPages, nil, arts, Options{BaseURL: "http://localhost:8001"})

	data, meta, err := s.ReadArtifact(id)
	if err != nil {
		t.Fatalf("ReadArtifact() = %v; want nil", err)
	}
	if string(data) != "png" || meta.Check != "setup-guide" {
		t.Fatalf("ReadArtifact() = %q %+v", data, meta)
	}

	none := NewService(refusingPages, nil, nil, Options{BaseURL: "http://localhost:8001"})
	if _, _, err := none.ReadArtifact(id); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("ReadArtifact() without store = %v; want ErrNotFound", err)
	}
}
