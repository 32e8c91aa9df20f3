package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lemonberrylabs/bigrun/pkg/config"
	"github.com/lemonberrylabs/bigrun/pkg/store"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	args  [][]string
	fail  bool
}

func (f *fakeRunner) Execute(_ context.Context, script string, args []string) (*store.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, script)
	f.args = append(f.args, args)
	if f.fail {
		return nil, errors.New("no such script")
	}
	return &store.Execution{ID: "x", Script: script, State: store.ExecutionSucceeded}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func parseSchedules(t *testing.T, doc string) []config.Schedule {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg.Schedules
}

func TestSchedulerRunsJobs(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New(runner, parseSchedules(t, "schedules:\n  - script: tick\n    every: 1s\n    args: [a]"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	defer s.Shutdown()

	deadline := time.Now().Add(5 * time.Second)
	for runner.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runner.count() < 1 {
		t.Fatal("job never ran")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.calls[0] != "tick" || len(runner.args[0]) != 1 || runner.args[0][0] != "a" {
		t.Errorf("calls = %v args = %v", runner.calls, runner.args)
	}
}

func TestSchedulerJobs(t *testing.T) {
	s, err := New(&fakeRunner{}, parseSchedules(t, `schedules:
  - script: one
    every: 1h
  - script: two
    every: 2h`))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Shutdown()

	names := s.Jobs()
	if len(names) != 2 {
		t.Fatalf("jobs = %v", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["one"] || !seen["two"] {
		t.Errorf("jobs = %v", names)
	}
}

func TestSchedulerRunnerError(t *testing.T) {
	runner := &fakeRunner{fail: true}
	s, err := New(runner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Shutdown()

	// A failing run is logged and does not panic.
	s.run("missing", nil)
	if runner.count() != 1 {
		t.Errorf("calls = %d", runner.count())
	}
}
