// Package schedule runs deployed scripts on fixed intervals.
package schedule

import (
	"context"
	"fmt"
	"log"

	"github.com/go-co-op/gocron/v2"

	"github.com/lemonberrylabs/bigrun/pkg/config"
	"github.com/lemonberrylabs/bigrun/pkg/store"
)

// Runner executes a deployed script to completion.
type Runner interface {
	Execute(ctx context.Context, script string, args []string) (*store.Execution, error)
}

// Scheduler owns the periodic jobs declared in the config.
type Scheduler struct {
	sched  gocron.Scheduler
	runner Runner
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers one job per schedule. Jobs do not run until Start.
func New(runner Runner, schedules []config.Schedule) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{sched: sched, runner: runner, ctx: ctx, cancel: cancel}

	for _, sc := range schedules {
		_, err := sched.NewJob(
			gocron.DurationJob(sc.Interval()),
			gocron.NewTask(s.run, sc.Script, sc.Args),
			gocron.WithName(sc.Script),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = sched.Shutdown()
			return nil, fmt.Errorf("scheduling %q: %w", sc.Script, err)
		}
		log.Printf("Scheduled script %q every %s", sc.Script, sc.Interval())
	}
	return s, nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	var names []string
	for _, j := range s.sched.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

// Shutdown cancels running scripts and stops the scheduler.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

func (s *Scheduler) run(script string, args []string) {
	exec, err := s.runner.Execute(s.ctx, script, args)
	if err != nil {
		log.Printf("Scheduled run of %q failed to start: %v", script, err)
		return
	}
	log.Printf("Scheduled run of %q finished: %s (%s)", script, exec.State, exec.ID)
}
