package smoke

import (
	"context"
	"time"

	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
)

// Status is the outcome of a step or check.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult records one step of a check.
type StepResult struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Result records one check run.
type Result struct {
	Check      string       `json:"check"`
	Kind       string       `json:"kind"`
	URL        string       `json:"url"`
	Status     Status       `json:"status"`
	FailedStep string       `json:"failed_step,omitempty"`
	ErrorCode  string       `json:"error_code,omitempty"`
	Error      string       `json:"error,omitempty"`
	Steps      []StepResult `json:"steps"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	ArtifactID string       `json:"artifact_id,omitempty"`
	// ConsoleErrors is filled for failed checks when the page reports them.
	ConsoleErrors []string `json:"console_errors,omitempty"`
}

// Passed reports whether every step passed.
func (r Result) Passed() bool { return r.Status == StatusPassed }

// Run is the outcome of one suite execution.
type Run struct {
	ID         string    `json:"id"`
	BaseURL    string    `json:"base_url"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Results    []Result  `json:"results"`
}

// OK reports whether every check passed.
func (r *Run) OK() bool { return r.Failed == 0 && len(r.Results) > 0 }

// Event types published while a run progresses.
const (
	EventRunStarted  = "run_started"
	EventStep        = "step"
	EventCheckDone   = "check_done"
	EventRunFinished = "run_finished"
)

// Event is a progress notification.
type Event struct {
	Type   string      `json:"type"`
	RunID  string      `json:"run_id,omitempty"`
	Check  string      `json:"check,omitempty"`
	Step   *StepResult `json:"step,omitempty"`
	Status Status      `json:"status,omitempty"`
	Time   time.Time   `json:"time"`
}

// Observer receives progress events. It must not block.
type Observer func(Event)

// Observers fans each event out to every non-nil obs in order. It returns
// nil when none is set.
func Observers(obs ...Observer) Observer {
	var set []Observer
	for _, o := range obs {
		if o != nil {
			set = append(set, o)
		}
	}
	switch len(set) {
	case 0:
		return nil
	case 1:
		return set[0]
	}
	return func(evt Event) {
		for _, o := range set {
			o(evt)
		}
	}
}

type observerKey struct{}

// WithObserver attaches obs to ctx so checks report their steps to it.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	if obs == nil {
		return ctx
	}
	return context.WithValue(ctx, observerKey{}, obs)
}

func observerFrom(ctx context.Context) Observer {
	obs, _ := ctx.Value(observerKey{}).(Observer)
	return obs
}

// stepRun executes steps in order and stops at the first failure; steps
// after it are recorded as skipped.
type stepRun struct {
	ctx    context.Context
	obs    Observer
	res    Result
	start  time.Time
	failed bool
}

func newStepRun(ctx context.Context, check, kind, url string) *stepRun {
	now := time.Now()
	return &stepRun{
		ctx:   ctx,
		obs:   observerFrom(ctx),
		start: now,
		res: Result{
			Check:     check,
			Kind:      kind,
			URL:       url,
			Status:    StatusPassed,
			StartedAt: now.UTC(),
		},
	}
}

func (r *stepRun) step(name string, fn func() (string, error)) {
	if r.failed {
		r.record(StepResult{Name: name, Status: StatusSkipped})
		return
	}

	start := time.Now()
	detail, err := fn()
	sr := StepResult{
		Name:       name,
		Status:     StatusPassed,
		DurationMS: time.Since(start).Milliseconds(),
		Detail:     detail,
	}
	if err != nil {
		sr.Status = StatusFailed
		sr.ErrorCode = cdpcontrol.ErrorCode(err)
		sr.Error = err.Error()

		r.failed = true
		r.res.Status = StatusFailed
		r.res.FailedStep = name
		r.res.ErrorCode = sr.ErrorCode
		r.res.Error = name + ": " + err.Error()
	}
	r.record(sr)
}

func (r *stepRun) record(sr StepResult) {
	r.res.Steps = append(r.res.Steps, sr)
	if r.obs != nil {
		step := sr
		r.obs(Event{Type: EventStep, Check: r.res.Check, Step: &step, Status: sr.Status, Time: time.Now().UTC()})
	}
}

func (r *stepRun) finish() Result {
	r.res.DurationMS = time.Since(r.start).Milliseconds()
	return r.res
}
