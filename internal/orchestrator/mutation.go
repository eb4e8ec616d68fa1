package orchestrator

import (
	"context"
	"sync"

	"todoapp/internal/models"
)

// Kind names the operation a Mutation performs.
type Kind string

const (
	KindCreate     Kind = "create"
	KindUpdate     Kind = "update"
	KindToggle     Kind = "toggle"
	KindDelete     Kind = "delete"
	KindLoad       Kind = "load"
	KindLoadTask   Kind = "load_task"
	KindStatistics Kind = "statistics"
)

// State is where a Mutation is in its lifecycle. Succeeded and Failed are
// terminal; a retry is a new Mutation.
type State int

const (
	Idle State = iota
	Pending
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Mutation is the handle for one invocation.
type Mutation struct {
	Kind   Kind
	TaskID int64

	mu    sync.Mutex
	state State
	err   error
	task  *models.Task
	done  chan struct{}
}

func newMutation(kind Kind, taskID int64) *Mutation {
	return &Mutation{Kind: kind, TaskID: taskID, done: make(chan struct{})}
}

func (m *Mutation) start() {
	m.mu.Lock()
	m.state = Pending
	m.mu.Unlock()
}

// finish moves the mutation to its terminal state. It runs once.
func (m *Mutation) finish(task *models.Task, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Succeeded || m.state == Failed {
		return
	}
	if err != nil {
		m.state = Failed
		m.err = err
	} else {
		m.state = Succeeded
		m.task = task
		if task != nil && m.TaskID == 0 {
			m.TaskID = task.ID
		}
	}
	close(m.done)
}

func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the failure, or nil unless the mutation Failed.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Task returns the task the mutation folded into the store, if any.
func (m *Mutation) Task() (models.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task == nil {
		return models.Task{}, false
	}
	return *m.task, true
}

// Done is closed once the mutation reaches a terminal state and its result
// has been folded into the store.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the mutation finishes or ctx ends, and returns the
// mutation's error.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
