// Package store provides in-memory storage for scripts and their executions.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// ExecutionState represents the state of a script execution.
type ExecutionState string

const (
	ExecutionActive    ExecutionState = "ACTIVE"
	ExecutionSucceeded ExecutionState = "SUCCEEDED"
	ExecutionFailed    ExecutionState = "FAILED"
	ExecutionCancelled ExecutionState = "CANCELLED"
)

// Script is a deployed .big source.
type Script struct {
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	RevisionID string    `json:"revisionId"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// Execution is one run of a script.
type Execution struct {
	ID         string            `json:"id"`
	Script     string            `json:"script"`
	State      ExecutionState    `json:"state"`
	Args       []string          `json:"args,omitempty"`
	Output     string            `json:"output"`
	Globals    map[string]string `json:"globals,omitempty"`
	Error      *ExecutionError   `json:"error,omitempty"`
	StartTime  time.Time         `json:"startTime"`
	EndTime    time.Time         `json:"endTime,omitempty"`
	RevisionID string            `json:"scriptRevisionId"`
}

// ExecutionError describes the halt of a failed execution.
type ExecutionError struct {
	Message string   `json:"message"`
	Tags    []string `json:"tags,omitempty"`
	Line    int      `json:"line,omitempty"`
	Column  int      `json:"column,omitempty"`
}

// Store is a thread-safe in-memory storage for scripts and executions.
type Store struct {
	mu         sync.RWMutex
	scripts    map[string]*Script
	executions map[string]*Execution

	revCounter int64
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		scripts:    make(map[string]*Script),
		executions: make(map[string]*Execution),
	}
}

// PutScript creates a script or replaces the source of an existing one.
// created reports which of the two happened.
func (s *Store) PutScript(name, source string) (sc *Script, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revCounter++
	rev := fmt.Sprintf("%06d", s.revCounter)
	now := time.Now()
	if sc, ok := s.scripts[name]; ok {
		sc.Source = source
		sc.RevisionID = rev
		sc.UpdateTime = now
		return sc, false
	}
	sc = &Script{
		Name:       name,
		Source:     source,
		RevisionID: rev,
		CreateTime: now,
		UpdateTime: now,
	}
	s.scripts[name] = sc
	return sc, true
}

// CreateScript stores a new script. It fails when the name is taken.
func (s *Store) CreateScript(name, source string) (*Script, error) {
	s.mu.RLock()
	_, exists := s.scripts[name]
	s.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("script '%s' already exists", name)
	}
	sc, _ := s.PutScript(name, source)
	return sc, nil
}

// GetScript retrieves a script by name.
func (s *Store) GetScript(name string) (*Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scripts[name]
	if !ok {
		return nil, types.NewNotFoundError(fmt.Sprintf("script '%s' not found", name))
	}
	return sc, nil
}

// ListScripts returns all scripts ordered by name.
func (s *Store) ListScripts() []*Script {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Script, 0, len(s.scripts))
	for _, sc := range s.scripts {
		result = append(result, sc)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].Name < result[b].Name })
	return result
}

// DeleteScript removes a script. Its executions are kept.
func (s *Store) DeleteScript(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scripts[name]; !ok {
		return types.NewNotFoundError(fmt.Sprintf("script '%s' not found", name))
	}
	delete(s.scripts, name)
	return nil
}

// CreateExecution records a new active run of a script.
func (s *Store) CreateExecution(script string, args []string) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scripts[script]
	if !ok {
		return nil, types.NewNotFoundError(fmt.Sprintf("script '%s' not found", script))
	}

	exec := &Execution{
		ID:         uuid.NewString(),
		Script:     script,
		State:      ExecutionActive,
		Args:       args,
		StartTime:  time.Now(),
		RevisionID: sc.RevisionID,
	}
	s.executions[exec.ID] = exec
	return exec, nil
}

// GetExecution retrieves an execution by id. The result is a copy.
func (s *Store) GetExecution(id string) (*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.executions[id]
	if !ok {
		return nil, types.NewNotFoundError(fmt.Sprintf("execution '%s' not found", id))
	}
	cp := *exec
	return &cp, nil
}

// ListExecutions returns the executions of a script, newest first.
func (s *Store) ListExecutions(script string) []*Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Execution
	for _, exec := range s.executions {
		if exec.Script == script {
			cp := *exec
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(a, b int) bool { return result[a].StartTime.After(result[b].StartTime) })
	return result
}

// finish moves an active execution to a final state. Executions already
// cancelled keep that state.
func (s *Store) finish(id string, fn func(*Execution)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok {
		return types.NewNotFoundError(fmt.Sprintf("execution '%s' not found", id))
	}
	if exec.State != ExecutionActive {
		return nil
	}
	exec.EndTime = time.Now()
	fn(exec)
	return nil
}

// CompleteExecution marks an execution as succeeded with its output and
// final globals.
func (s *Store) CompleteExecution(id, output string, globals map[string]string) error {
	return s.finish(id, func(exec *Execution) {
		exec.State = ExecutionSucceeded
		exec.Output = output
		exec.Globals = globals
	})
}

// FailExecution marks an execution as failed with the error that halted it.
func (s *Store) FailExecution(id, output string, err *types.EngineError) error {
	return s.finish(id, func(exec *Execution) {
		exec.State = ExecutionFailed
		exec.Output = output
		exec.Error = &ExecutionError{
			Message: err.Message,
			Tags:    err.Tags,
			Line:    err.Line,
			Column:  err.Column,
		}
	})
}

// CancelExecution marks an execution as cancelled.
func (s *Store) CancelExecution(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok {
		return types.NewNotFoundError(fmt.Sprintf("execution '%s' not found", id))
	}
	if exec.State != ExecutionActive {
		return fmt.Errorf("execution '%s' is not active (state: %s)", id, exec.State)
	}

	exec.State = ExecutionCancelled
	exec.EndTime = time.Now()
	return nil
}
