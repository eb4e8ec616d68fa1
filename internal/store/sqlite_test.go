package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"todoapp/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestUser(t *testing.T, store Store, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func createTestTask(t *testing.T, store Store, userID int64, title string, priority int) *models.Task {
	t.Helper()
	task := &models.Task{UserID: userID, Title: title, Priority: priority}
	if err := store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	return task
}

// setCreatedAt rewrites created_at directly so range filters can be exercised.
func setCreatedAt(t *testing.T, store *SQLiteStore, id int64, at time.Time) {
	t.Helper()
	if _, err := store.db.Exec(`UPDATE tasks SET created_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		t.Fatalf("failed to set created_at: %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	store := setupTestDB(t)

	user := createTestUser(t, store, "Alice@Example.com")
	if user.ID == 0 {
		t.Error("expected user ID to be set")
	}
	if user.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
	if user.FullName != "Test User" {
		t.Errorf("expected full name %q, got %q", "Test User", user.FullName)
	}

	got, err := store.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %d, got %d", user.ID, got.ID)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("expected email to be stored lowercased, got %q", got.Email)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store := setupTestDB(t)
	createTestUser(t, store, "alice@example.com")

	dup := &models.User{Email: "ALICE@example.com", PasswordHash: "x", FirstName: "A", LastName: "B"}
	err := store.CreateUser(context.Background(), dup)
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.GetUser(context.Background(), 999)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = store.GetUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTask(t *testing.T) {
	store := setupTestDB(t)
	user := createTestUser(t, store, "a@example.com")

	task := &models.Task{
		UserID:      user.ID,
		Title:       "Write report",
		Description: "quarterly",
		Priority:    3,
		IsCompleted: true,
	}
	if err := store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.ID == 0 {
		t.Error("expected task ID to be set")
	}
	if task.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
	if task.IsCompleted {
		t.Error("expected new task to start pending")
	}
	if task.UpdatedAt != nil || task.CompletedAt != nil {
		t.Error("expected updated_at and completed_at to be empty")
	}
}

func TestGetTask(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")
	task := createTestTask(t, store, user.ID, "Buy milk", 2)

	got, err := store.GetTask(ctx, user.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}

	if got.Title != "Buy milk" {
		t.Errorf("expected title %q, got %q", "Buy milk", got.Title)
	}
	if got.Priority != 2 {
		t.Errorf("expected priority 2, got %d", got.Priority)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", task.CreatedAt, got.CreatedAt)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Errorf("expected created_at in UTC, got %v", got.CreatedAt.Location())
	}
}

func TestGetTask_ScopedToOwner(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, store, "alice@example.com")
	bob := createTestUser(t, store, "bob@example.com")
	task := createTestTask(t, store, alice.ID, "private", 1)

	if _, err := store.GetTask(ctx, bob.ID, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user's task, got %v", err)
	}
	if err := store.DeleteTask(ctx, bob.ID, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting another user's task, got %v", err)
	}
	if err := store.ToggleTaskComplete(ctx, bob.ID, task.ID, time.Now()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound toggling another user's task, got %v", err)
	}

	tasks, err := store.ListTasks(ctx, bob.ID, models.DefaultFilter())
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected bob to see no tasks, got %d", len(tasks))
	}
}

func TestUpdateTask(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")
	task := createTestTask(t, store, user.ID, "Original", 1)

	title := "Updated"
	priority := 5
	done := true
	at := time.Now().UTC().Truncate(time.Microsecond)
	task.ApplyPatch(models.TaskPatch{Title: &title, Priority: &priority, IsCompleted: &done}, at)

	if err := store.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	got, _ := store.GetTask(ctx, user.ID, task.ID)
	if got.Title != "Updated" {
		t.Errorf("expected title %q, got %q", "Updated", got.Title)
	}
	if got.Priority != 5 {
		t.Errorf("expected priority 5, got %d", got.Priority)
	}
	if !got.IsCompleted {
		t.Error("expected task to be completed")
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(at) {
		t.Errorf("expected completed_at %v, got %v", at, got.CompletedAt)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(at) {
		t.Errorf("expected updated_at %v, got %v", at, got.UpdatedAt)
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	store := setupTestDB(t)
	user := createTestUser(t, store, "a@example.com")

	err := store.UpdateTask(context.Background(), &models.Task{ID: 42, UserID: user.ID, Title: "x", Priority: 1})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")
	task := createTestTask(t, store, user.ID, "To delete", 1)

	if err := store.DeleteTask(ctx, user.ID, task.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	if _, err := store.GetTask(ctx, user.ID, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected task to be deleted, got %v", err)
	}
	if err := store.DeleteTask(ctx, user.ID, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected second delete to report ErrNotFound, got %v", err)
	}
}

func TestToggleTaskComplete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")
	task := createTestTask(t, store, user.ID, "Toggle me", 1)

	first := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := store.ToggleTaskComplete(ctx, user.ID, task.ID, first); err != nil {
		t.Fatalf("ToggleTaskComplete failed: %v", err)
	}

	got, _ := store.GetTask(ctx, user.ID, task.ID)
	if !got.IsCompleted {
		t.Fatal("expected task to be completed")
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(first) {
		t.Fatalf("expected completed_at %v, got %v", first, got.CompletedAt)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(first) {
		t.Fatalf("expected updated_at %v, got %v", first, got.UpdatedAt)
	}

	second := first.Add(time.Hour)
	if err := store.ToggleTaskComplete(ctx, user.ID, task.ID, second); err != nil {
		t.Fatalf("ToggleTaskComplete failed: %v", err)
	}

	got, _ = store.GetTask(ctx, user.ID, task.ID)
	if got.IsCompleted {
		t.Error("expected task to be pending")
	}
	if got.CompletedAt != nil {
		t.Error("expected completed_at to be cleared when task is pending")
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(second) {
		t.Errorf("expected updated_at %v, got %v", second, got.UpdatedAt)
	}
}

func TestListTasks_NewestFirst(t *testing.T) {
	store := setupTestDB(t)
	user := createTestUser(t, store, "a@example.com")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := createTestTask(t, store, user.ID, "a", 1)
	b := createTestTask(t, store, user.ID, "b", 1)
	c := createTestTask(t, store, user.ID, "c", 1)
	setCreatedAt(t, store, a.ID, base.Add(2*time.Hour))
	setCreatedAt(t, store, b.ID, base)
	setCreatedAt(t, store, c.ID, base)

	tasks, err := store.ListTasks(context.Background(), user.ID, models.DefaultFilter())
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	want := []int64{a.ID, c.ID, b.ID}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Errorf("position %d: expected task %d, got %d", i, id, tasks[i].ID)
		}
	}
}

func TestListTasks_Filters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")

	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	groceries := createTestTask(t, store, user.ID, "Buy groceries", 2)
	report := createTestTask(t, store, user.ID, "Write REPORT", 5)
	percent := createTestTask(t, store, user.ID, "100% done", 4)
	setCreatedAt(t, store, groceries.ID, base.AddDate(0, 0, -2))
	setCreatedAt(t, store, report.ID, base)
	setCreatedAt(t, store, percent.ID, base.AddDate(0, 0, 2))
	if err := store.ToggleTaskComplete(ctx, user.ID, report.ID, base); err != nil {
		t.Fatalf("ToggleTaskComplete failed: %v", err)
	}

	completed := true
	pending := false
	priority := 2
	after := base
	before := base
	endOfDay, err := models.ParseTimeBound("2024-05-10", true)
	if err != nil {
		t.Fatalf("ParseTimeBound failed: %v", err)
	}

	tests := []struct {
		name   string
		filter models.Filter
		want   []int64
	}{
		{"no filter", models.Filter{}, []int64{percent.ID, report.ID, groceries.ID}},
		{"completed", models.Filter{IsCompleted: &completed}, []int64{report.ID}},
		{"pending", models.Filter{IsCompleted: &pending}, []int64{percent.ID, groceries.ID}},
		{"priority", models.Filter{Priority: &priority}, []int64{groceries.ID}},
		{"search ignores case", models.Filter{Search: "report"}, []int64{report.ID}},
		{"search escapes wildcards", models.Filter{Search: "%"}, []int64{percent.ID}},
		{"created after is inclusive", models.Filter{CreatedAfter: &after}, []int64{percent.ID, report.ID}},
		{"created before is inclusive", models.Filter{CreatedBefore: &before}, []int64{report.ID, groceries.ID}},
		{"range", models.Filter{CreatedAfter: &after, CreatedBefore: &before}, []int64{report.ID}},
		{"created before a bare date covers that day", models.Filter{CreatedBefore: &endOfDay}, []int64{report.ID, groceries.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := store.ListTasks(ctx, user.ID, tt.filter)
			if err != nil {
				t.Fatalf("ListTasks failed: %v", err)
			}
			if len(tasks) != len(tt.want) {
				t.Fatalf("expected %d tasks, got %d", len(tt.want), len(tasks))
			}
			for i, id := range tt.want {
				if tasks[i].ID != id {
					t.Errorf("position %d: expected task %d, got %d", i, id, tasks[i].ID)
				}
			}
		})
	}
}

func TestListTasks_SearchFoldsNonASCII(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")

	summer := createTestTask(t, store, user.ID, "ÉTÉ plans", 1)
	noted := &models.Task{UserID: user.ID, Title: "trip", Description: "Ölüdeniz in ÉTÉ", Priority: 1}
	if err := store.CreateTask(ctx, noted); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	createTestTask(t, store, user.ID, "ete plans", 1)

	tests := []struct {
		search string
		want   []int64
	}{
		{"été", []int64{noted.ID, summer.ID}},
		{"ÉTÉ PLANS", []int64{summer.ID}},
		{"ölüdeniz", []int64{noted.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			tasks, err := store.ListTasks(ctx, user.ID, models.Filter{Search: tt.search})
			if err != nil {
				t.Fatalf("ListTasks failed: %v", err)
			}
			got := make(map[int64]bool)
			for _, task := range tasks {
				got[task.ID] = true
			}
			if len(tasks) != len(tt.want) {
				t.Fatalf("expected %d tasks, got %d", len(tt.want), len(tasks))
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("expected task %d in results", id)
				}
			}
		})
	}
}

func TestListTasks_Paging(t *testing.T) {
	store := setupTestDB(t)
	user := createTestUser(t, store, "a@example.com")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 5; i++ {
		task := createTestTask(t, store, user.ID, "task", 1)
		setCreatedAt(t, store, task.ID, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, task.ID)
	}

	tests := []struct {
		page, size int
		want       []int64
	}{
		{1, 2, []int64{ids[4], ids[3]}},
		{2, 2, []int64{ids[2], ids[1]}},
		{3, 2, []int64{ids[0]}},
		{4, 2, nil},
	}

	for _, tt := range tests {
		tasks, err := store.ListTasks(context.Background(), user.ID, models.Filter{Page: tt.page, PageSize: tt.size})
		if err != nil {
			t.Fatalf("ListTasks failed: %v", err)
		}
		if len(tasks) != len(tt.want) {
			t.Fatalf("page %d: expected %d tasks, got %d", tt.page, len(tt.want), len(tasks))
		}
		for i, id := range tt.want {
			if tasks[i].ID != id {
				t.Errorf("page %d position %d: expected task %d, got %d", tt.page, i, id, tasks[i].ID)
			}
		}
	}
}

func TestStatistics(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")
	other := createTestUser(t, store, "b@example.com")

	now := time.Now().UTC()
	a := createTestTask(t, store, user.ID, "a", 1)
	createTestTask(t, store, user.ID, "b", 1)
	old := createTestTask(t, store, user.ID, "old", 1)
	createTestTask(t, store, other.ID, "someone else", 1)
	setCreatedAt(t, store, old.ID, now.AddDate(0, 0, -3))

	if err := store.ToggleTaskComplete(ctx, user.ID, a.ID, now); err != nil {
		t.Fatalf("ToggleTaskComplete failed: %v", err)
	}
	if err := store.ToggleTaskComplete(ctx, user.ID, old.ID, now.AddDate(0, 0, -2)); err != nil {
		t.Fatalf("ToggleTaskComplete failed: %v", err)
	}

	stats, err := store.Statistics(ctx, user.ID, now)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}

	want := models.Statistics{
		TotalTasks:          3,
		CompletedTasks:      2,
		PendingTasks:        1,
		CompletionRate:      66.67,
		TasksCreatedToday:   2,
		TasksCompletedToday: 1,
	}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}
}

func TestStatistics_Empty(t *testing.T) {
	store := setupTestDB(t)
	user := createTestUser(t, store, "a@example.com")

	stats, err := store.Statistics(context.Background(), user.ID, time.Now())
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats != (models.Statistics{}) {
		t.Errorf("expected zero statistics, got %+v", stats)
	}
}

func TestNewSQLiteStore_ReopenKeepsDataAndSkipsAppliedMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "todoapp.db")

	first, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	user := createTestUser(t, first, "a@example.com")
	task := createTestTask(t, first, user.ID, "persisted", 3)
	if err := first.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	second, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	got, err := second.GetTask(context.Background(), user.ID, task.ID)
	if err != nil {
		t.Fatalf("expected task to persist: %v", err)
	}
	if got.Title != "persisted" {
		t.Errorf("expected title %q, got %q", "persisted", got.Title)
	}

	var applied int
	if err := second.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	migrations, err := loadMigrations(dialectSQLite)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if applied != len(migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(migrations), applied)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		version  int
		name     string
		wantErr  bool
	}{
		{"001_create_users.sql", 1, "create_users", false},
		{"12_add_index.sql", 12, "add_index", false},
		{"create_users.sql", 0, "", true},
		{"abc_create.sql", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, err := parseMigrationFilename(tt.filename)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("expected (%d, %q), got (%d, %q)", tt.version, tt.name, version, name)
			}
		})
	}
}

func TestMigrate_SecondRunAppliesNothing(t *testing.T) {
	s := setupTestDB(t)

	ran, err := migrate(context.Background(), sqlTarget{db: s.db}, dialectSQLite)
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if ran != 0 {
		t.Errorf("expected no pending migrations, got %d", ran)
	}
}

func TestMigrations_DialectsDefineSameVersions(t *testing.T) {
	sqlite, err := loadMigrations(dialectSQLite)
	if err != nil {
		t.Fatalf("failed to load sqlite migrations: %v", err)
	}
	postgres, err := loadMigrations(dialectPostgres)
	if err != nil {
		t.Fatalf("failed to load postgres migrations: %v", err)
	}

	if len(sqlite) != len(postgres) {
		t.Fatalf("expected the same number of migrations, got sqlite=%d postgres=%d", len(sqlite), len(postgres))
	}
	for i := range sqlite {
		if sqlite[i].String() != postgres[i].String() {
			t.Errorf("migration %d differs: sqlite=%s postgres=%s", i, sqlite[i], postgres[i])
		}
	}
}
