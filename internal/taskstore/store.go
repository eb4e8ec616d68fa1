// Package taskstore holds the client's normalized task collection and the
// UI state that goes with it.
//
// A Store is not safe for concurrent use. It has exactly one writer, the
// orchestrator loop, and every method is a total, synchronous transition.
package taskstore

import (
	"slices"
	"sort"
	"time"

	"todoapp/internal/models"
)

// NoSelection is the Selected value when no task is selected.
const NoSelection int64 = 0

// Store is the normalized task collection: a map from ID to Task plus an
// ordering index sorted newest first (CreatedAt desc, ID desc). Every ID in
// the index is in the map and vice versa.
type Store struct {
	entities map[int64]models.Task
	order    []int64

	filter   models.Filter
	stats    *models.Statistics
	selected int64
	pending  int
	lastErr  error

	// version changes whenever the task collection does.
	version uint64
}

// New returns an empty Store with the default filter.
func New() *Store {
	return &Store{
		entities: make(map[int64]models.Task),
		filter:   models.DefaultFilter(),
	}
}

// ReplaceAll sets the collection to exactly tasks. If an ID repeats, the
// last occurrence wins.
func (s *Store) ReplaceAll(tasks []models.Task) {
	entities := make(map[int64]models.Task, len(tasks))
	for _, t := range tasks {
		entities[t.ID] = t
	}

	order := make([]int64, 0, len(entities))
	for id := range entities {
		order = append(order, id)
	}
	slices.SortFunc(order, func(a, b int64) int {
		ta, tb := entities[a], entities[b]
		switch {
		case ta.Newer(&tb):
			return -1
		case tb.Newer(&ta):
			return 1
		}
		return 0
	})

	s.entities = entities
	s.order = order
	s.version++
}

// Upsert inserts task or replaces every field of the task with the same ID.
// Upserting a task identical to the stored one changes nothing.
func (s *Store) Upsert(task models.Task) {
	old, exists := s.entities[task.ID]
	if exists {
		if sameTask(old, task) {
			return
		}
		if !old.CreatedAt.Equal(task.CreatedAt) {
			i := s.position(old)
			s.order = slices.Delete(s.order, i, i+1)
			exists = false
		}
	}

	s.entities[task.ID] = task
	if !exists {
		s.order = slices.Insert(s.order, s.position(task), task.ID)
	}
	s.version++
}

// Remove deletes the task with id. Removing an absent ID is a no-op.
func (s *Store) Remove(id int64) {
	task, ok := s.entities[id]
	if !ok {
		return
	}
	i := s.position(task)
	s.order = slices.Delete(s.order, i, i+1)
	delete(s.entities, id)
	if s.selected == id {
		s.selected = NoSelection
	}
	s.version++
}

// position returns the index of t in the ordering index, or where it would
// be inserted. The order key (CreatedAt, ID) is unique per task.
func (s *Store) position(t models.Task) int {
	return sort.Search(len(s.order), func(i int) bool {
		other := s.entities[s.order[i]]
		return !other.Newer(&t)
	})
}

// SetFilter merges p into the current filter. Fields p leaves unset are kept.
func (s *Store) SetFilter(p models.FilterPatch) {
	s.filter = s.filter.Merge(p)
}

// SetStatistics replaces the cached statistics.
func (s *Store) SetStatistics(stats models.Statistics) {
	s.stats = &stats
}

// InvalidateStatistics drops the cached statistics until the next SetStatistics.
func (s *Store) InvalidateStatistics() {
	s.stats = nil
}

// SetSelected selects id, or clears the selection with NoSelection.
func (s *Store) SetSelected(id int64) {
	s.selected = id
}

// BeginLoading marks one more request in flight.
func (s *Store) BeginLoading() {
	s.pending++
}

// EndLoading marks a request as finished.
func (s *Store) EndLoading() {
	if s.pending > 0 {
		s.pending--
	}
}

// SetError records err in the last-error slot.
func (s *Store) SetError(err error) {
	s.lastErr = err
}

// ClearError empties the last-error slot.
func (s *Store) ClearError() {
	s.lastErr = nil
}

// Reset returns the Store to its initial empty state, as on logout.
func (s *Store) Reset() {
	version := s.version
	*s = *New()
	s.version = version + 1
}

// Get returns the task with id.
func (s *Store) Get(id int64) (models.Task, bool) {
	t, ok := s.entities[id]
	return t, ok
}

// Tasks returns every task, newest first. The slice is a copy.
func (s *Store) Tasks() []models.Task {
	tasks := make([]models.Task, len(s.order))
	for i, id := range s.order {
		tasks[i] = s.entities[id]
	}
	return tasks
}

// IDs returns the ordering index. The slice is a copy.
func (s *Store) IDs() []int64 {
	return slices.Clone(s.order)
}

func (s *Store) Len() int { return len(s.order) }

func (s *Store) Version() uint64 { return s.version }

func (s *Store) Filter() models.Filter { return s.filter }

// Statistics returns the cached statistics, if any.
func (s *Store) Statistics() (models.Statistics, bool) {
	if s.stats == nil {
		return models.Statistics{}, false
	}
	return *s.stats, true
}

func (s *Store) Selected() int64 { return s.selected }

// Loading reports whether any request is in flight.
func (s *Store) Loading() bool { return s.pending > 0 }

func (s *Store) Err() error { return s.lastErr }

func sameTask(a, b models.Task) bool {
	return a.ID == b.ID &&
		a.UserID == b.UserID &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.IsCompleted == b.IsCompleted &&
		a.Priority == b.Priority &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		sameTime(a.CompletedAt, b.CompletedAt) &&
		sameTime(a.UpdatedAt, b.UpdatedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
