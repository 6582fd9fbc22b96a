package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dgnsrekt/docsmoke/internal/artifact"
	"github.com/dgnsrekt/docsmoke/internal/browser"
	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
	"github.com/dgnsrekt/docsmoke/internal/config"
	"github.com/dgnsrekt/docsmoke/internal/controller"
	"github.com/dgnsrekt/docsmoke/internal/eventlog"
	"github.com/dgnsrekt/docsmoke/internal/netutil"
	"github.com/dgnsrekt/docsmoke/internal/notify"
	"github.com/dgnsrekt/docsmoke/internal/runstore"
	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

// app holds the long-lived resources shared by run and serve.
type app struct {
	alloc     *browser.Allocation
	client    *cdpcontrol.Client
	runs      *runstore.Store
	artifacts *artifact.Store
	events    *eventlog.Writer
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	runs, err := runstore.Open(cfg.RunDBDir())
	if err != nil {
		return nil, err
	}
	arts, err := artifact.NewStore(cfg.ArtifactDir())
	if err != nil {
		_ = runs.Close()
		return nil, err
	}

	alloc, err := browser.Allocate(ctx, browser.Config{
		Mode:           cfg.BrowserMode,
		Headless:       cfg.Headless,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		ExecPath:       cfg.ChromePath,
		CDPAddress:     cfg.CDPAddress,
		CDPPort:        cfg.CDPPort,
		ProfileDir:     filepath.Join(cfg.DataDir, "browser_profile"),
	})
	if err != nil {
		_ = runs.Close()
		return nil, fmt.Errorf("allocate browser: %w", err)
	}

	client := cdpcontrol.NewClient(alloc.Ctx, clientOptions(cfg))
	if err := client.Connect(ctx); err != nil {
		alloc.Release()
		_ = runs.Close()
		return nil, err
	}

	var events *eventlog.Writer
	if cfg.EventLog {
		events = eventlog.NewWriter(cfg.EventLogDir())
	}

	slog.Info("docsmoke ready",
		"browser_mode", cfg.BrowserMode,
		"headless", cfg.Headless,
		"run_db", runs.Path(),
		"artifact_dir", arts.Dir(),
		"event_log", cfg.EventLog,
	)
	return &app{alloc: alloc, client: client, runs: runs, artifacts: arts, events: events}, nil
}

func clientOptions(cfg *config.Config) cdpcontrol.Options {
	return cdpcontrol.Options{
		Viewport:    cdpcontrol.Viewport{Width: int64(cfg.ViewportWidth), Height: int64(cfg.ViewportHeight)},
		StepTimeout: time.Duration(cfg.StepTimeoutMS) * time.Millisecond,
		NavTimeout:  time.Duration(cfg.NavTimeoutMS) * time.Millisecond,
	}
}

func (a *app) service(cfg *config.Config, suite *config.Suite, formats []string, obs smoke.Observer) *controller.Service {
	if a.events != nil {
		obs = smoke.Observers(obs, a.events.Observer())
	}
	return controller.NewService(smoke.ClientPages(a.client), a.runs, a.artifacts, controller.Options{
		BaseURL:         cfg.BaseURL,
		Suite:           suite,
		StrictFragments: cfg.StrictFragments,
		Parallelism:     cfg.Parallelism,
		ReportDir:       cfg.ReportDir,
		ReportFormats:   formats,
		Observer:        obs,
	})
}

func (a *app) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			slog.Warn("close event log failed", "error", err)
		}
	}
	_ = a.client.Close()
	a.alloc.Release()
	if err := a.runs.Close(); err != nil {
		slog.Warn("close run store failed", "error", err)
	}
}

// preflight fetches the distinct pages of the selected checks (all of them
// when names is empty) over plain HTTP so a server that is down fails fast,
// before a browser is started. Missing ids only warn because the page may
// render them with script.
func preflight(ctx context.Context, cfg *config.Config, suite *config.Suite, names []string) error {
	baseURL := cfg.BaseURL
	if suite.BaseURL != "" {
		baseURL = suite.BaseURL
	}
	client := &http.Client{Timeout: time.Duration(cfg.NavTimeoutMS) * time.Millisecond}

	selected := make(map[string]bool, len(names))
	for _, n := range names {
		selected[n] = true
	}

	seen := map[string]bool{}
	for _, c := range suite.Checks {
		if len(selected) > 0 && !selected[c.Name] {
			continue
		}
		if seen[c.Page] {
			continue
		}
		seen[c.Page] = true

		var ids []string
		if c.Kind == config.CheckSetupGuide {
			ids = append(ids, c.ContentID)
		}
		url := smoke.JoinURL(baseURL, c.Page)
		probe, err := netutil.ProbePage(ctx, client, url, ids...)
		if err != nil {
			return fmt.Errorf("preflight %s: %w", url, err)
		}
		if len(probe.MissingIDs) > 0 {
			slog.Warn("preflight page is missing static ids", "url", url, "missing", probe.MissingIDs)
		}
		slog.Debug("preflight ok", "url", url, "status", probe.StatusCode, "title", probe.Title)
	}
	return nil
}

// notifyRun posts the run summary when a topic is configured. Passing runs
// are only announced with NotifyAlways.
func notifyRun(ctx context.Context, cfg *config.Config, run *smoke.Run) {
	if cfg.NotifyURL == "" || (run.OK() && !cfg.NotifyAlways) {
		return
	}
	client := &http.Client{Timeout: 10 * time.Second}
	if err := notify.Send(ctx, client, cfg.NotifyURL, notify.RunMessage(run)); err != nil {
		slog.Warn("run notification failed", "run_id", run.ID, "error", err)
		return
	}
	slog.Debug("run notification sent", "run_id", run.ID)
}
