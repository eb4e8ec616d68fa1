package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"todoapp/internal/models"
)

// PgStore implements the Store interface on PostgreSQL.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore connects to databaseURL and applies pending migrations.
func NewPgStore(ctx context.Context, databaseURL string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if _, err := migrate(ctx, pgTarget{pool: pool}, dialectPostgres); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateUser creates a new user.
func (s *PgStore) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = now()
	user.UpdatedAt = nil

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		strings.ToLower(user.Email), user.PasswordHash, user.FirstName, user.LastName, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", user.Email, models.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.FullName = user.DisplayName()
	return nil
}

// GetUser retrieves a user by ID.
func (s *PgStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by e-mail address (case-insensitive).
func (s *PgStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// CreateTask inserts a new task.
func (s *PgStore) CreateTask(ctx context.Context, task *models.Task) error {
	task.CreatedAt = now()
	task.CompletedAt = nil
	task.UpdatedAt = nil
	task.IsCompleted = false

	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (user_id, title, description, completed, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		task.UserID, task.Title, task.Description, task.IsCompleted, task.Priority, task.CreatedAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a single task.
func (s *PgStore) GetTask(ctx context.Context, userID, id int64) (*models.Task, error) {
	task, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks returns one page of a user's tasks matching filter, newest first.
func (s *PgStore) ListTasks(ctx context.Context, userID int64, filter models.Filter) ([]models.Task, error) {
	query, args := listTasksQuery(userID, filter, postgresDialect)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTask writes every mutable column of task.
func (s *PgStore) UpdateTask(ctx context.Context, task *models.Task) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, completed = $3, priority = $4, completed_at = $5, updated_at = $6
		WHERE id = $7 AND user_id = $8`,
		task.Title, task.Description, task.IsCompleted, task.Priority,
		nullTime(task.CompletedAt), nullTime(task.UpdatedAt), task.ID, task.UserID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return expectTag(tag, "task", task.ID)
}

// DeleteTask removes a task.
func (s *PgStore) DeleteTask(ctx context.Context, userID, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectTag(tag, "task", id)
}

// ToggleTaskComplete flips the completed flag in place.
func (s *PgStore) ToggleTaskComplete(ctx context.Context, userID, id int64, at time.Time) error {
	at = at.UTC().Truncate(time.Microsecond)
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET completed = NOT completed,
			completed_at = CASE WHEN completed THEN NULL ELSE $1::timestamptz END,
			updated_at = $1
		WHERE id = $2 AND user_id = $3`, at, id, userID)
	if err != nil {
		return fmt.Errorf("failed to toggle task complete: %w", err)
	}
	return expectTag(tag, "task", id)
}

// Statistics aggregates a user's tasks for the UTC day containing at.
func (s *PgStore) Statistics(ctx context.Context, userID int64, at time.Time) (models.Statistics, error) {
	query, args := statisticsQuery(userID, at, postgresDialect.ph)

	var total, completed, createdToday, completedToday int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total, &completed, &createdToday, &completedToday); err != nil {
		return models.Statistics{}, fmt.Errorf("failed to compute statistics: %w", err)
	}
	return models.NewStatistics(total, completed, createdToday, completedToday), nil
}

func expectTag(tag pgconn.CommandTag, kind string, id int64) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, models.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
