// Package orchestrator sequences task operations against a Repository and
// folds their results into a single taskstore.Store.
//
// The Store is owned by one goroutine. Invocations return a Mutation handle
// at once; the network call runs in the background and its result is folded
// into the Store in arrival order. A failed invocation only sets the Store's
// last error. Nothing is retried.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"todoapp/internal/models"
	"todoapp/internal/taskstore"
	"todoapp/internal/views"
)

// ErrClosed is returned by invocations made after Close.
var ErrClosed = errors.New("orchestrator closed")

// Repository is the remote task API. *client.Client implements it.
type Repository interface {
	ListTasks(ctx context.Context, filter models.Filter) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	CreateTask(ctx context.Context, input models.NewTask) (*models.Task, error)
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ToggleTask(ctx context.Context, id int64) error
	GetStatistics(ctx context.Context) (*models.Statistics, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for locally derived statistics.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator is the only writer of its Store.
type Orchestrator struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time

	ops     chan func(*taskstore.Store)
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	// statsIssued numbers statistics requests. statsApplied is the newest
	// number whose result may no longer be overwritten; it is loop-owned.
	statsIssued  atomic.Uint64
	statsApplied uint64

	// loop-owned
	selector views.Selector
}

// New starts an Orchestrator around an empty Store.
func New(repo Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:    repo,
		logger:  slog.Default(),
		now:     time.Now,
		ops:     make(chan func(*taskstore.Store)),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	go o.loop(taskstore.New())
	return o
}

func (o *Orchestrator) loop(s *taskstore.Store) {
	defer close(o.stopped)
	for {
		select {
		case fn := <-o.ops:
			fn(s)
		case <-o.quit:
			return
		}
	}
}

// apply runs fn on the loop goroutine and waits for it to return. It
// reports false if the Orchestrator is closed.
func (o *Orchestrator) apply(fn func(*taskstore.Store)) bool {
	done := make(chan struct{})
	op := func(s *taskstore.Store) {
		defer close(done)
		fn(s)
	}
	select {
	case o.ops <- op:
	case <-o.quit:
		return false
	}
	<-done
	return true
}

// Create validates input and creates a task. On success the returned task
// is upserted and statistics are refreshed.
func (o *Orchestrator) Create(ctx context.Context, input models.NewTask) *Mutation {
	m := newMutation(KindCreate, 0)
	if err := input.Validate(); err != nil {
		o.reject(m, err)
		return m
	}
	o.run(ctx, m, true, func(ctx context.Context) (*models.Task, func(*taskstore.Store), error) {
		task, err := o.repo.CreateTask(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return task, upsert(task), nil
	})
	return m
}

// Update applies a partial update to task id.
func (o *Orchestrator) Update(ctx context.Context, id int64, patch models.TaskPatch) *Mutation {
	m := newMutation(KindUpdate, id)
	if err := patch.Validate(); err != nil {
		o.reject(m, err)
		return m
	}
	o.run(ctx, m, true, func(ctx context.Context) (*models.Task, func(*taskstore.Store), error) {
		task, err := o.repo.UpdateTask(ctx, id, patch)
		if err != nil {
			return nil, nil, err
		}
		return task, upsert(task), nil
	})
	return m
}

// Toggle flips the completion flag of task id. The toggle endpoint returns
// no entity, so the task is fetched again and the server's timestamps are
// what lands in the Store.
func (o *Orchestrator) Toggle(ctx context.Context, id int64) *Mutation {
	m := newMutation(KindToggle, id)
	o.run(ctx, m, true, func(ctx context.Context) (*models.Task, func(*taskstore.Store), error) {
		if err := o.repo.ToggleTask(ctx, id); err != nil {
			return nil, nil, err
		}
		task, err := o.repo.GetTask(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return task, upsert(task), nil
	})
	return m
}

// Delete removes task id once the server confirms the deletion.
func (o *Orchestrator) Delete(ctx context.Context, id int64) *Mutation {
	m := newMutation(KindDelete, id)
	o.run(ctx, m, true, func(ctx context.Context) (*models.Task, func(*taskstore.Store), error) {
		if err := o.repo.DeleteTask(ctx, id); err != nil {
			return nil, nil, err
		}
		return nil, func(s *taskstore.Store) { s.Remove(id) }, nil
	})
	return m
}

// LoadTasks refetches the task list with the Store's current filter and
// replaces the collection.
func (o *Orchestrator) LoadTasks(ctx context.Context) *Mutation {
	m := newMutation(KindLoad, 0)
	var filter models.Filter
	if !o.apply(func(s *taskstore.Store) { filter = s.Filter() }) {
		m.finish(nil, ErrClosed)
		return m
	}
	o.run(ctx, m, false, func(ctx context.Context) (*models.Task, func(*taskstore.Store), error) {
		tasks, err := o.repo.ListTasks(ctx, filter)
		if err != nil {
			return nil, nil, err
		}
		return nil, func(s *taskstore.Store) { s.ReplaceAll(tasks) }, nil
	})
	return m
}

// LoadTask fetches task id, upserts it and selects it.
func (o *Orchestrator) LoadTask(ctx context.Context, id int64) *Mutation {
	m := newMutation(KindLoadTask, id)
	o.run(ctx, m, false, func(ctx context.Context) (*models.Task, func(*taskstore.Store), error) {
		task, err := o.repo.GetTask(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return task, func(s *taskstore.Store) {
			s.Upsert(*task)
			s.SetSelected(task.ID)
		}, nil
	})
	return m
}

// Load fetches the task list and the statistics concurrently. Both land in
// the Store together, or neither does.
func (o *Orchestrator) Load(ctx context.Context) *Mutation {
	m := newMutation(KindLoad, 0)
	var filter models.Filter
	if !o.apply(func(s *taskstore.Store) { filter = s.Filter() }) {
		m.finish(nil, ErrClosed)
		return m
	}
	o.run(ctx, m, false, func(ctx context.Context) (*models.Task, func(*taskstore.Store), error) {
		seq := o.statsIssued.Add(1)
		var (
			tasks []models.Task
			stats *models.Statistics
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			tasks, err = o.repo.ListTasks(gctx, filter)
			return err
		})
		g.Go(func() error {
			var err error
			stats, err = o.repo.GetStatistics(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		return nil, func(s *taskstore.Store) {
			s.ReplaceAll(tasks)
			o.foldStatistics(s, seq, *stats)
		}, nil
	})
	return m
}

// RefreshStatistics fetches authoritative statistics. A response is dropped
// if a newer one was already applied or a mutation has landed since it was
// requested.
func (o *Orchestrator) RefreshStatistics(ctx context.Context) *Mutation {
	m := newMutation(KindStatistics, 0)
	o.refresh(ctx, m)
	return m
}

func (o *Orchestrator) refresh(ctx context.Context, m *Mutation) {
	seq := o.statsIssued.Add(1)
	o.run(ctx, m, false, func(ctx context.Context) (*models.Task, func(*taskstore.Store), error) {
		stats, err := o.repo.GetStatistics(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, func(s *taskstore.Store) { o.foldStatistics(s, seq, *stats) }, nil
	})
}

func (o *Orchestrator) foldStatistics(s *taskstore.Store, seq uint64, stats models.Statistics) {
	if seq <= o.statsApplied {
		o.logger.Debug("discarding stale statistics", "seq", seq, "applied", o.statsApplied)
		return
	}
	o.statsApplied = seq
	s.SetStatistics(stats)
}

// run starts m in the background. call performs the network round trip and
// returns the fold to apply on success. When refresh is set, a successful
// fold invalidates the cached statistics and schedules a refresh.
func (o *Orchestrator) run(ctx context.Context, m *Mutation, refresh bool, call func(context.Context) (*models.Task, func(*taskstore.Store), error)) {
	m.start()
	if !o.apply(func(s *taskstore.Store) { s.BeginLoading() }) {
		m.finish(nil, ErrClosed)
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		task, fold, err := call(ctx)
		if err != nil {
			o.apply(func(s *taskstore.Store) {
				s.EndLoading()
				s.SetError(err)
			})
			o.logger.Warn("task operation failed", "kind", m.Kind, "task_id", m.TaskID, "error", err)
			m.finish(nil, err)
			return
		}

		applied := o.apply(func(s *taskstore.Store) {
			fold(s)
			if refresh {
				s.InvalidateStatistics()
				if issued := o.statsIssued.Load(); issued > o.statsApplied {
					o.statsApplied = issued
				}
			}
			s.EndLoading()
		})
		if !applied {
			m.finish(nil, ErrClosed)
			return
		}
		if refresh {
			o.refresh(context.WithoutCancel(ctx), newMutation(KindStatistics, 0))
		}
		o.logger.Debug("task operation succeeded", "kind", m.Kind, "task_id", m.TaskID)
		m.finish(task, nil)
	}()
}

// reject fails m before any network call.
func (o *Orchestrator) reject(m *Mutation, err error) {
	m.start()
	o.apply(func(s *taskstore.Store) { s.SetError(err) })
	o.logger.Warn("task operation rejected", "kind", m.Kind, "task_id", m.TaskID, "error", err)
	m.finish(nil, err)
}

func upsert(task *models.Task) func(*taskstore.Store) {
	return func(s *taskstore.Store) { s.Upsert(*task) }
}

// SetFilter merges p into the Store's filter. It does not refetch.
func (o *Orchestrator) SetFilter(p models.FilterPatch) {
	o.apply(func(s *taskstore.Store) { s.SetFilter(p) })
}

// Select selects id, or clears the selection with taskstore.NoSelection.
func (o *Orchestrator) Select(id int64) {
	o.apply(func(s *taskstore.Store) { s.SetSelected(id) })
}

func (o *Orchestrator) ClearError() {
	o.apply(func(s *taskstore.Store) { s.ClearError() })
}

// Reset empties the Store, as on logout. Responses still in flight are
// folded into the empty Store when they arrive.
func (o *Orchestrator) Reset() {
	o.apply(func(s *taskstore.Store) {
		s.Reset()
		o.statsApplied = o.statsIssued.Load()
	})
}

// Read runs fn on the loop goroutine. fn must not retain s or call back
// into the Orchestrator.
func (o *Orchestrator) Read(fn func(s *taskstore.Store)) bool {
	return o.apply(fn)
}

// Snapshot is a consistent copy of the Store and its derived views.
type Snapshot struct {
	Tasks              []models.Task
	Filtered           []models.Task
	Filter             models.Filter
	Stats              models.Statistics
	StatsAuthoritative bool
	Selected           int64
	Loading            bool
	Err                error
	Version            uint64
}

// Snapshot copies the Store's current state.
func (o *Orchestrator) Snapshot() Snapshot {
	var snap Snapshot
	o.apply(func(s *taskstore.Store) {
		snap = Snapshot{
			Tasks:    s.Tasks(),
			Filtered: append([]models.Task(nil), o.selector.FilteredTasks(s)...),
			Filter:   s.Filter(),
			Selected: s.Selected(),
			Loading:  s.Loading(),
			Err:      s.Err(),
			Version:  s.Version(),
		}
		snap.Stats, snap.StatsAuthoritative = views.DashboardStatistics(s, o.now())
	})
	return snap
}

// Wait blocks until every invocation made so far, and the statistics
// refreshes they trigger, has been folded into the Store.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close waits for in-flight work and stops the loop. Invocations made after
// Close fail with ErrClosed.
func (o *Orchestrator) Close() {
	o.once.Do(func() {
		o.wg.Wait()
		close(o.quit)
		<-o.stopped
	})
}
