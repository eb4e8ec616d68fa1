package models

import (
	"math"
	"time"
)

// Statistics summarizes a user's tasks for the dashboard.
type Statistics struct {
	TotalTasks          int     `json:"total_tasks"`
	CompletedTasks      int     `json:"completed_tasks"`
	PendingTasks        int     `json:"pending_tasks"`
	CompletionRate      float64 `json:"completion_rate"` // percent, 2 decimals
	TasksCreatedToday   int     `json:"tasks_created_today"`
	TasksCompletedToday int     `json:"tasks_completed_today"`
}

// NewStatistics builds Statistics from raw counts. The server and the
// client-side derived view both go through here so the rounding agrees.
func NewStatistics(total, completed, createdToday, completedToday int) Statistics {
	return Statistics{
		TotalTasks:          total,
		CompletedTasks:      completed,
		PendingTasks:        total - completed,
		CompletionRate:      CompletionRate(completed, total),
		TasksCreatedToday:   createdToday,
		TasksCompletedToday: completedToday,
	}
}

// CompletionRate returns completed/total as a percentage rounded to two
// decimals, or 0 when there are no tasks.
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	rate := float64(completed) / float64(total) * 100
	return math.Round(rate*100) / 100
}

// Day returns the UTC calendar day containing now as a half-open range.
func Day(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// InDay reports whether t falls inside [start, end).
func InDay(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// ComputeStatistics aggregates tasks in memory for the UTC day of now.
func ComputeStatistics(tasks []Task, now time.Time) Statistics {
	start, end := Day(now)
	var completed, createdToday, completedToday int
	for i := range tasks {
		t := &tasks[i]
		if t.IsCompleted {
			completed++
		}
		if InDay(t.CreatedAt, start, end) {
			createdToday++
		}
		if t.CompletedAt != nil && InDay(*t.CompletedAt, start, end) {
			completedToday++
		}
	}
	return NewStatistics(len(tasks), completed, createdToday, completedToday)
}
