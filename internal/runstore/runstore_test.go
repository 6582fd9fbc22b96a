package runstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, started time.Time, failed bool) *smoke.Run {
	res := smoke.Result{
		Check:  "setup-guide",
		Kind:   smoke.KindSetupGuide,
		URL:    "http://localhost:8001/setup-guide.html",
		Status: smoke.StatusPassed,
		Steps: []smoke.StepResult{
			{Name: smoke.StepNavigate, Status: smoke.StatusPassed, Detail: "status 200"},
		},
		StartedAt: started,
	}
	run := &smoke.Run{
		ID:         id,
		BaseURL:    "http://localhost:8001",
		StartedAt:  started,
		EndedAt:    started.Add(1500 * time.Millisecond),
		DurationMS: 1500,
		Passed:     1,
		Results:    []smoke.Result{res},
	}
	if failed {
		run.Results[0].Status = smoke.StatusFailed
		run.Results[0].FailedStep = smoke.StepNavigate
		run.Passed, run.Failed = 0, 1
	}
	return run
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "runs")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := os.Stat(filepath.Join(dir, "runs.db")); err != nil {
		t.Fatalf("database file was not created: %v", err)
	}
	if s.Path() != filepath.Join(dir, "runs.db") {
		t.Fatalf("Path() = %q", s.Path())
	}
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	want := sampleRun("run-1", started, true)
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.StartedAt.Equal(started) || !got.EndedAt.Equal(want.EndedAt) {
		t.Fatalf("times = %v/%v; want %v/%v", got.StartedAt, got.EndedAt, started, want.EndedAt)
	}
	if got.Failed != 1 || len(got.Results) != 1 || got.Results[0].FailedStep != smoke.StepNavigate {
		t.Fatalf("run = %+v; want one failed navigate result", got)
	}
	if got.Results[0].Steps[0].Detail != "status 200" {
		t.Fatalf("step detail = %q; want status 200", got.Results[0].Steps[0].Detail)
	}
}

func TestSaveReplaces(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	if err := s.Save(ctx, sampleRun("run-1", started, true)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, sampleRun("run-1", started, false)); err != nil {
		t.Fatalf("Save() second error = %v", err)
	}
	got, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Failed != 0 || got.Passed != 1 {
		t.Fatalf("passed/failed = %d/%d; want 1/0", got.Passed, got.Failed)
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v; want ErrNotFound", err)
	}
}

func TestSaveRequiresID(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	if err := s.Save(context.Background(), &smoke.Run{}); err == nil {
		t.Fatal("Save() error = nil; want error for empty id")
	}
}

func TestListAndPrune(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour), false)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	list, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("List(2) = %+v; want [c b]", list)
	}

	removed, err := s.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("Prune() removed = %d; want 2", removed)
	}
	list, err = s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != "c" {
		t.Fatalf("List() after prune = %+v; want [c]", list)
	}
}
