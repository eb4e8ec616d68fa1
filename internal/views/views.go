// Package views derives lists, counts and statistics from the task store.
// Every function here is pure; none of them modify their input.
package views

import (
	"time"

	"todoapp/internal/models"
	"todoapp/internal/taskstore"
)

// FilteredTasks returns the tasks matching f, keeping the input order.
// Predicates apply as: completion, priority, search, created-after,
// created-before. Paging is not applied.
func FilteredTasks(tasks []models.Task, f models.Filter) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for i := range tasks {
		if matches(&tasks[i], f) {
			out = append(out, tasks[i])
		}
	}
	return out
}

func matches(t *models.Task, f models.Filter) bool {
	if f.IsCompleted != nil && t.IsCompleted != *f.IsCompleted {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Search != "" && !t.Matches(f.Search) {
		return false
	}
	if f.CreatedAfter != nil && t.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && t.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// CompletedTasks returns the completed tasks, ignoring any filter.
func CompletedTasks(tasks []models.Task) []models.Task {
	done := true
	return FilteredTasks(tasks, models.Filter{IsCompleted: &done})
}

// PendingTasks returns the tasks not yet completed, ignoring any filter.
func PendingTasks(tasks []models.Task) []models.Task {
	done := false
	return FilteredTasks(tasks, models.Filter{IsCompleted: &done})
}

// PriorityCount is the number of tasks at one priority.
type PriorityCount struct {
	Priority int `json:"priority"`
	Count    int `json:"count"`
}

// TaskCountsByPriority counts tasks for every priority from 1 to 5, lowest first.
func TaskCountsByPriority(tasks []models.Task) []PriorityCount {
	counts := make([]PriorityCount, models.MaxPriority-models.MinPriority+1)
	for i := range counts {
		counts[i].Priority = models.MinPriority + i
	}
	for i := range tasks {
		p := tasks[i].Priority
		if p >= models.MinPriority && p <= models.MaxPriority {
			counts[p-models.MinPriority].Count++
		}
	}
	return counts
}

// PriorityGroup is the tasks at one priority.
type PriorityGroup struct {
	Priority int
	Tasks    []models.Task
}

// TasksByPriority groups tasks by priority 1 to 5, lowest first, keeping
// the input order within each group.
func TasksByPriority(tasks []models.Task) []PriorityGroup {
	groups := make([]PriorityGroup, models.MaxPriority-models.MinPriority+1)
	for i := range groups {
		groups[i].Priority = models.MinPriority + i
	}
	for _, t := range tasks {
		if t.Priority >= models.MinPriority && t.Priority <= models.MaxPriority {
			g := &groups[t.Priority-models.MinPriority]
			g.Tasks = append(g.Tasks, t)
		}
	}
	return groups
}

// Counts summarizes a task list for headers and badges.
type Counts struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	Pending      int `json:"pending"`
	HighPriority int `json:"high_priority"`
}

// TaskCounts counts tasks by state. High priority means 4 or 5.
func TaskCounts(tasks []models.Task) Counts {
	c := Counts{Total: len(tasks)}
	for i := range tasks {
		if tasks[i].IsCompleted {
			c.Completed++
		}
		if tasks[i].HighPriority() {
			c.HighPriority++
		}
	}
	c.Pending = c.Total - c.Completed
	return c
}

// LocalStatistics computes statistics from the known tasks for the UTC day
// containing now. It rounds exactly as the server does.
func LocalStatistics(tasks []models.Task, now time.Time) models.Statistics {
	return models.ComputeStatistics(tasks, now)
}

// DashboardStatistics prefers the store's authoritative statistics and falls
// back to LocalStatistics while none are cached.
func DashboardStatistics(s *taskstore.Store, now time.Time) (stats models.Statistics, authoritative bool) {
	if stats, ok := s.Statistics(); ok {
		return stats, true
	}
	return LocalStatistics(s.Tasks(), now), false
}

// SelectedTask returns the selected task, if it is selected and known.
func SelectedTask(s *taskstore.Store) (models.Task, bool) {
	id := s.Selected()
	if id == taskstore.NoSelection {
		return models.Task{}, false
	}
	return s.Get(id)
}
