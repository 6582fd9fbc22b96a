package smoke

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
)

// StepOpenPage is the step reported when no page could be opened for a check.
const StepOpenPage = "open-page"

// ArtifactSaver stores failure screenshots and returns their id.
type ArtifactSaver interface {
	SaveScreenshot(ctx context.Context, runID, check string, png []byte) (string, error)
}

// Runner executes checks, each in its own page.
type Runner struct {
	Pages       PageFactory
	Parallelism int
	Artifacts   ArtifactSaver
	Observer    Observer
	BaseURL     string
}

// Run executes checks and returns the aggregated run. Results keep the order
// of checks. A failing check never stops the others; only ctx cancellation
// does, in which case the unfinished checks are reported as failed.
func (r *Runner) Run(ctx context.Context, checks []Check) (*Run, error) {
	if r.Pages == nil {
		return nil, cdpcontrol.NewError(cdpcontrol.CodeValidation, "runner has no page factory", nil)
	}
	if len(checks) == 0 {
		return nil, cdpcontrol.NewError(cdpcontrol.CodeValidation, "no checks to run", nil)
	}

	run := &Run{
		ID:        uuid.NewString(),
		BaseURL:   r.BaseURL,
		StartedAt: time.Now().UTC(),
		Results:   make([]Result, len(checks)),
	}
	obs := r.observer(run.ID)
	obs(Event{Type: EventRunStarted, Time: run.StartedAt})
	slog.Info("smoke run started", "run_id", run.ID, "checks", len(checks), "parallelism", r.parallelism())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism())
	for i, c := range checks {
		g.Go(func() error {
			// Each slot is written by one goroutine only.
			run.Results[i] = r.runOne(WithObserver(gctx, obs), run.ID, c)
			obs(Event{Type: EventCheckDone, Check: c.Name(), Status: run.Results[i].Status, Time: time.Now().UTC()})
			return nil
		})
	}
	_ = g.Wait()

	run.EndedAt = time.Now().UTC()
	run.DurationMS = run.EndedAt.Sub(run.StartedAt).Milliseconds()
	for _, res := range run.Results {
		if res.Passed() {
			run.Passed++
		} else {
			run.Failed++
		}
	}
	status := StatusPassed
	if !run.OK() {
		status = StatusFailed
	}
	obs(Event{Type: EventRunFinished, Status: status, Time: run.EndedAt})
	slog.Info("smoke run finished", "run_id", run.ID, "passed", run.Passed, "failed", run.Failed, "duration_ms", run.DurationMS)

	if err := ctx.Err(); err != nil {
		return run, err
	}
	return run, nil
}

func (r *Runner) runOne(ctx context.Context, runID string, c Check) Result {
	if err := ctx.Err(); err != nil {
		return openFailure(c, cdpcontrol.NewError(cdpcontrol.CodeTimeout, "run cancelled before check started", err))
	}

	p, err := r.Pages(ctx)
	if err != nil {
		slog.Warn("open page failed", "check", c.Name(), "error", err)
		code := cdpcontrol.CodeCDPUnavailable
		var coded *cdpcontrol.CodedError
		if errors.As(err, &coded) {
			code = coded.Code
		}
		return openFailure(c, cdpcontrol.NewError(code, "open page", err))
	}
	defer p.Close()

	res := c.Run(ctx, p)
	if res.Passed() {
		slog.Debug("check passed", "check", c.Name(), "duration_ms", res.DurationMS)
		return res
	}
	slog.Warn("check failed", "check", c.Name(), "step", res.FailedStep, "code", res.ErrorCode, "error", res.Error)

	if cp, ok := p.(consolePage); ok {
		res.ConsoleErrors = cp.ConsoleErrors()
	}

	if r.Artifacts != nil && ctx.Err() == nil {
		png, err := p.Screenshot(ctx)
		if err != nil {
			slog.Debug("failure screenshot failed", "check", c.Name(), "error", err)
			return res
		}
		id, err := r.Artifacts.SaveScreenshot(ctx, runID, c.Name(), png)
		if err != nil {
			slog.Warn("save failure screenshot", "check", c.Name(), "error", err)
			return res
		}
		res.ArtifactID = id
	}
	return res
}

// consolePage is implemented by pages that record script errors.
type consolePage interface {
	ConsoleErrors() []string
}

func openFailure(c Check, err error) Result {
	code := cdpcontrol.ErrorCode(err)
	now := time.Now().UTC()
	return Result{
		Check:      c.Name(),
		Kind:       checkKind(c),
		Status:     StatusFailed,
		FailedStep: StepOpenPage,
		ErrorCode:  code,
		Error:      StepOpenPage + ": " + err.Error(),
		Steps: []StepResult{{
			Name:      StepOpenPage,
			Status:    StatusFailed,
			ErrorCode: code,
			Error:     err.Error(),
		}},
		StartedAt: now,
	}
}

func checkKind(c Check) string {
	switch c.(type) {
	case *SetupGuideCheck:
		return KindSetupGuide
	case *QuickLinkCheck:
		return KindQuickLink
	}
	return ""
}

func (r *Runner) parallelism() int {
	if r.Parallelism < 1 {
		return 1
	}
	return r.Parallelism
}

// observer stamps events with the run id and serializes delivery.
func (r *Runner) observer(runID string) Observer {
	if r.Observer == nil {
		return func(Event) {}
	}
	var mu sync.Mutex
	return func(e Event) {
		e.RunID = runID
		mu.Lock()
		defer mu.Unlock()
		r.Observer(e)
	}
}
