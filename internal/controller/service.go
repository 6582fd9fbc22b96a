package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/dgnsrekt/docsmoke/internal/artifact"
	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
	"github.com/dgnsrekt/docsmoke/internal/config"
	"github.com/dgnsrekt/docsmoke/internal/report"
	"github.com/dgnsrekt/docsmoke/internal/runstore"
	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

// CodeRunInProgress is returned when a run is requested while another is
// still executing.
const CodeRunInProgress = "RUN_IN_PROGRESS"

// RunStore persists finished runs.
type RunStore interface {
	Save(ctx context.Context, run *smoke.Run) error
	Get(ctx context.Context, id string) (*smoke.Run, error)
	List(ctx context.Context, limit int) ([]runstore.Summary, error)
}

// ArtifactStore stores and serves failure screenshots.
type ArtifactStore interface {
	smoke.ArtifactSaver
	ReadImage(id string) ([]byte, artifact.Meta, error)
}

// Options are the defaults a Service applies to every run.
type Options struct {
	BaseURL         string
	Suite           *config.Suite
	StrictFragments bool
	Parallelism     int
	// ReportDir receives ReportFormats files after each run; empty disables.
	ReportDir     string
	ReportFormats []string
	Observer      smoke.Observer
}

// RunRequest overrides Options for one run.
type RunRequest struct {
	BaseURL         string
	Checks          []string
	StrictFragments *bool
}

// Service runs smoke suites and serves their history.
type Service struct {
	pages     smoke.PageFactory
	runs      RunStore
	artifacts ArtifactStore
	opts      Options

	mu      sync.Mutex
	running bool
}

func NewService(pages smoke.PageFactory, runs RunStore, artifacts ArtifactStore, opts Options) *Service {
	if opts.Suite == nil {
		opts.Suite = config.DefaultSuite()
	}
	return &Service{pages: pages, runs: runs, artifacts: artifacts, opts: opts}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: fmt.Sprintf("base_url %q must be an absolute http(s) URL", raw)}
	}
	return nil
}

// Checks builds the checks a request selects, in suite order.
func (s *Service) Checks(req RunRequest) ([]smoke.Check, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(req.BaseURL), "/")
	if baseURL == "" {
		baseURL = s.opts.BaseURL
	}
	if err := validateBaseURL(baseURL); err != nil {
		return nil, err
	}
	strict := s.opts.StrictFragments
	if req.StrictFragments != nil {
		strict = *req.StrictFragments
	}

	suite := *s.opts.Suite
	if req.BaseURL != "" {
		suite.BaseURL = ""
	}
	all, err := smoke.FromSuite(&suite, baseURL, strict)
	if err != nil {
		return nil, err
	}
	if len(req.Checks) == 0 {
		return all, nil
	}

	byName := make(map[string]smoke.Check, len(all))
	for _, c := range all {
		byName[c.Name()] = c
	}
	want := make(map[string]bool, len(req.Checks))
	for _, name := range req.Checks {
		name = strings.TrimSpace(name)
		if _, ok := byName[name]; !ok {
			return nil, &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: fmt.Sprintf("unknown check %q", name)}
		}
		want[name] = true
	}
	selected := make([]smoke.Check, 0, len(want))
	for _, c := range all {
		if want[c.Name()] {
			selected = append(selected, c)
		}
	}
	return selected, nil
}

// RunSuite executes the selected checks, stores the run and writes report
// files. Only one run executes at a time.
func (s *Service) RunSuite(ctx context.Context, req RunRequest) (*smoke.Run, error) {
	checks, err := s.Checks(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, &cdpcontrol.CodedError{Code: CodeRunInProgress, Message: "another run is in progress"}
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runner := &smoke.Runner{
		Pages:       s.pages,
		Parallelism: s.opts.Parallelism,
		Observer:    s.opts.Observer,
		BaseURL:     checksBaseURL(checks, s.opts.BaseURL),
	}
	if s.artifacts != nil {
		runner.Artifacts = s.artifacts
	}
	run, runErr := runner.Run(ctx, checks)
	if run == nil {
		return nil, runErr
	}

	if s.runs != nil {
		// Store even cancelled runs so their partial results stay visible.
		if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
			slog.Warn("save run failed", "run_id", run.ID, "error", err)
		}
	}
	if s.opts.ReportDir != "" && len(s.opts.ReportFormats) > 0 {
		paths, err := report.WriteFiles(s.opts.ReportDir, run, s.opts.ReportFormats...)
		if err != nil {
			slog.Warn("write report files failed", "run_id", run.ID, "error", err)
		} else {
			slog.Debug("report files written", "run_id", run.ID, "paths", paths)
		}
	}
	return run, runErr
}

func checksBaseURL(checks []smoke.Check, fallback string) string {
	for _, c := range checks {
		switch c := c.(type) {
		case *smoke.SetupGuideCheck:
			return c.BaseURL
		case *smoke.QuickLinkCheck:
			return c.BaseURL
		}
	}
	return fallback
}

// ListRuns returns stored run summaries, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]runstore.Summary, error) {
	if s.runs == nil {
		return []runstore.Summary{}, nil
	}
	return s.runs.List(ctx, limit)
}

// GetRun returns one stored run.
func (s *Service) GetRun(ctx context.Context, runID string) (*smoke.Run, error) {
	if err := s.requireNonEmpty(runID, "run_id"); err != nil {
		return nil, err
	}
	if s.runs == nil {
		return nil, fmt.Errorf("%w: %s", runstore.ErrNotFound, runID)
	}
	return s.runs.Get(ctx, strings.TrimSpace(runID))
}

// RenderReport renders a stored run. An empty format means markdown.
func (s *Service) RenderReport(ctx context.Context, runID, format string) ([]byte, string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = report.FormatMarkdown
	}
	switch format {
	case report.FormatList, report.FormatJUnit, report.FormatMarkdown, report.FormatHTML:
	default:
		return nil, "", &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: fmt.Sprintf("unknown report format %q", format)}
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	data, err := report.Render(format, run)
	if err != nil {
		return nil, "", err
	}
	return data, report.ContentType(format), nil
}

// ReadArtifact returns a stored screenshot.
func (s *Service) ReadArtifact(artifactID string) ([]byte, artifact.Meta, error) {
	if err := s.requireNonEmpty(artifactID, "artifact_id"); err != nil {
		return nil, artifact.Meta{}, err
	}
	if s.artifacts == nil {
		return nil, artifact.Meta{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, artifactID)
	}
	return s.artifacts.ReadImage(strings.TrimSpace(artifactID))
}
