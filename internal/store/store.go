package store

import (
	"context"
	"time"

	"todoapp/internal/models"
)

// Store defines the interface for data persistence operations.
// Every task operation is scoped to the owning user; a task that belongs to
// someone else behaves exactly like a missing one (models.ErrNotFound).
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Task operations
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, userID, id int64) (*models.Task, error)
	ListTasks(ctx context.Context, userID int64, filter models.Filter) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, userID, id int64) error
	ToggleTaskComplete(ctx context.Context, userID, id int64, now time.Time) error
	Statistics(ctx context.Context, userID int64, now time.Time) (models.Statistics, error)

	// Lifecycle
	Close() error
}

// now returns the current time in the precision both backends round-trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
