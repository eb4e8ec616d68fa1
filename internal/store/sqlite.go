package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"todoapp/internal/models"
)

const (
	sqliteDriverName = "sqlite3_todoapp"
	// sqliteLowerFunc folds case like strings.ToLower. SQLite's LOWER only
	// folds ASCII.
	sqliteLowerFunc = "unicode_lower"
)

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(sqliteLowerFunc, strings.ToLower, true)
		},
	})
}

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given database path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open(sqliteDriverName, dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := migrate(context.Background(), sqlTarget{db: db}, dialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser creates a new user in the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = now()
	user.UpdatedAt = nil

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, strings.ToLower(user.Email), user.PasswordHash, user.FirstName, user.LastName, user.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("email %s: %w", user.Email, models.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.FullName = user.DisplayName()

	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by e-mail address (case-insensitive).
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// CreateTask creates a new task in the database.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *models.Task) error {
	task.CreatedAt = now()
	task.CompletedAt = nil
	task.UpdatedAt = nil
	task.IsCompleted = false

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (user_id, title, description, completed, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, task.UserID, task.Title, task.Description, task.IsCompleted, task.Priority, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id

	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, userID, id int64) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks retrieves a user's tasks matching filter, newest first, one page at a time.
func (s *SQLiteStore) ListTasks(ctx context.Context, userID int64, filter models.Filter) ([]models.Task, error) {
	query, args := listTasksQuery(userID, filter, sqliteDialect)

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// UpdateTask updates an existing task. The caller is expected to have
// applied the patch (and its timestamps) to task already.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *models.Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, completed = ?, priority = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, task.Title, task.Description, task.IsCompleted, task.Priority,
		nullTime(task.CompletedAt), nullTime(task.UpdatedAt), task.ID, task.UserID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return expectRow(result, "task", task.ID)
}

// DeleteTask deletes a task by ID.
func (s *SQLiteStore) DeleteTask(ctx context.Context, userID, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectRow(result, "task", id)
}

// ToggleTaskComplete toggles the completed status of a task. CASE sees the
// pre-update value of completed.
func (s *SQLiteStore) ToggleTaskComplete(ctx context.Context, userID, id int64, at time.Time) error {
	at = at.UTC().Truncate(time.Microsecond)
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET completed = NOT completed,
			completed_at = CASE WHEN completed THEN NULL ELSE ? END,
			updated_at = ?
		WHERE id = ? AND user_id = ?
	`, at, at, id, userID)
	if err != nil {
		return fmt.Errorf("failed to toggle task complete: %w", err)
	}
	return expectRow(result, "task", id)
}

// Statistics aggregates a user's tasks for the UTC day containing at.
func (s *SQLiteStore) Statistics(ctx context.Context, userID int64, at time.Time) (models.Statistics, error) {
	query, args := statisticsQuery(userID, at, sqliteDialect.ph)

	var total, completed, createdToday, completedToday int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&total, &completed, &createdToday, &completedToday)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("failed to compute statistics: %w", err)
	}
	return models.NewStatistics(total, completed, createdToday, completedToday), nil
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task        models.Task
		completedAt sql.NullTime
		updatedAt   sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.IsCompleted,
		&task.Priority,
		&task.CreatedAt,
		&completedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.CreatedAt = task.CreatedAt.UTC()
	task.CompletedAt = timePtr(completedAt)
	task.UpdatedAt = timePtr(updatedAt)
	return &task, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		updatedAt sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = timePtr(updatedAt)
	user.FullName = user.DisplayName()
	return &user, nil
}

func expectRow(result sql.Result, kind string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, models.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC().Truncate(time.Microsecond), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
