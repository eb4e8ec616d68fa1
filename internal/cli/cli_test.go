package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"todoapp/internal/auth"
	"todoapp/internal/client"
	"todoapp/internal/handlers"
	"todoapp/internal/models"
	"todoapp/internal/orchestrator"
	"todoapp/internal/statscache"
	"todoapp/internal/store"
	"todoapp/internal/views"
)

func TestParseFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    models.Filter
		wantErr bool
	}{
		{
			name: "status and priority",
			args: []string{"status=done", "priority=4"},
			want: models.Filter{IsCompleted: boolPtr(true), Priority: intPtr(4), Page: 1, PageSize: 10},
		},
		{
			name: "search and paging",
			args: []string{"search=milk", "page=2", "size=500"},
			want: models.Filter{Search: "milk", Page: 2, PageSize: models.MaxPageSize},
		},
		{
			name: "dates",
			args: []string{"AFTER=2024-01-02", "before=2024-02-01T10:00:00Z"},
			want: models.Filter{
				CreatedAfter:  timePtr(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
				CreatedBefore: timePtr(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)),
				Page:          1,
				PageSize:      10,
			},
		},
		{
			name: "bare before date covers the day",
			args: []string{"before=2024-03-10"},
			want: models.Filter{
				CreatedBefore: timePtr(time.Date(2024, 3, 10, 23, 59, 59, 999999999, time.UTC)),
				Page:          1,
				PageSize:      10,
			},
		},
		{name: "missing equals", args: []string{"status"}, wantErr: true},
		{name: "bad status", args: []string{"status=maybe"}, wantErr: true},
		{name: "priority out of range", args: []string{"priority=9"}, wantErr: true},
		{name: "bad page", args: []string{"page=0"}, wantErr: true},
		{name: "bad date", args: []string{"after=yesterday"}, wantErr: true},
		{name: "unknown key", args: []string{"color=red"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, err := parseFilterArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := models.DefaultFilter().Merge(patch)
			if !got.Equal(tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseFilterArgs_BeforeDateIncludesLaterThatDay(t *testing.T) {
	patch, err := parseFilterArgs([]string{"after=2024-03-10", "before=2024-03-10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := models.DefaultFilter().Merge(patch)

	tasks := []models.Task{
		{ID: 1, Title: "morning", CreatedAt: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "late", CreatedAt: time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)},
		{ID: 3, Title: "next day", CreatedAt: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{ID: 4, Title: "day before", CreatedAt: time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)},
	}

	got := views.FilteredTasks(tasks, f)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("expected tasks 1 and 2, got %+v", got)
	}
}

func TestParseFilterArgs_EmptyValuesClear(t *testing.T) {
	f := models.DefaultFilter()
	patch, _ := parseFilterArgs([]string{"status=pending", "priority=2", "search=x"})
	f = f.Merge(patch)

	patch, err := parseFilterArgs([]string{"status=all", "priority=any", "search="})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f = f.Merge(patch)

	if !f.Equal(models.DefaultFilter()) {
		t.Errorf("expected default filter, got %+v", f)
	}
}

func TestDescribeFilter(t *testing.T) {
	f := models.Filter{IsCompleted: boolPtr(false), Priority: intPtr(3), Search: "rent", Page: 2, PageSize: 20}
	want := "status=pending priority=3 search=rent page=2 size=20"
	if got := describeFilter(f); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParseTaskID(t *testing.T) {
	for _, s := range []string{"0", "-3", "abc", ""} {
		if _, err := parseTaskID(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
	if id, err := parseTaskID("42"); err != nil || id != 42 {
		t.Errorf("expected 42, got %d (%v)", id, err)
	}
}

func TestRenderTasks(t *testing.T) {
	var buf bytes.Buffer
	renderTasks(&buf, nil)
	if !strings.Contains(buf.String(), "No tasks.") {
		t.Errorf("expected empty message, got %q", buf.String())
	}

	buf.Reset()
	renderTasks(&buf, []models.Task{{ID: 7, Title: "Water plants", Priority: 2, IsCompleted: true, CreatedAt: time.Now()}})
	out := buf.String()
	for _, want := range []string{"ID", "7", "done", "Water plants"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestRenderPriorityCounts_LabelsPartialLoad(t *testing.T) {
	tasks := []models.Task{{ID: 1, Priority: 2}, {ID: 2, Priority: 2}, {ID: 3, Priority: 5}}

	var buf bytes.Buffer
	renderPriorityCounts(&buf, tasks, 250)
	out := buf.String()
	if !strings.Contains(out, "By priority (3 of 250 tasks loaded):") {
		t.Errorf("expected partial-load header, got %q", out)
	}
	if !strings.Contains(out, "  2  ## 2") {
		t.Errorf("expected priority 2 count, got %q", out)
	}

	buf.Reset()
	renderPriorityCounts(&buf, tasks, 3)
	if out := buf.String(); !strings.Contains(out, "By priority:\n") || strings.Contains(out, "loaded") {
		t.Errorf("expected plain header when all tasks are loaded, got %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected short, got %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("expected abcd…, got %q", got)
	}
}

// setupShell runs a real API server over an in-memory database and returns a
// shell signed in as a fresh user.
func setupShell(t *testing.T) (*shell, *bytes.Buffer, *bool) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := auth.NewService(s, auth.NewPasswordHasher(bcrypt.MinCost), auth.NewJWTManager(auth.JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
	}))
	loader := statscache.NewLoader(statscache.NewMemory(), s.Statistics, logger)
	srv := httptest.NewServer(handlers.New(s, authSvc, loader, logger).Routes())
	t.Cleanup(srv.Close)

	resp, err := client.New(srv.URL, nil).Register(context.Background(), models.RegisterRequest{
		Email:     "shell@example.com",
		Password:  "secret123",
		FirstName: "Shell",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	o := orchestrator.New(client.New(srv.URL, client.StaticToken(resp.Token)), orchestrator.WithLogger(logger))
	t.Cleanup(o.Close)

	var out bytes.Buffer
	loggedOut := false
	sh := &shell{o: o, out: &out, logout: func() error {
		loggedOut = true
		return nil
	}}
	return sh, &out, &loggedOut
}

func TestShell_Session(t *testing.T) {
	sh, out, loggedOut := setupShell(t)

	script := strings.Join([]string{
		"ls",
		"add 1 A",
		"add 9 too important",
		"toggle 1",
		"stats",
		"show 99",
		"rm 1",
		"ls",
		"frobnicate",
		"logout",
		"ls",
	}, "\n")

	if err := sh.run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("shell failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"No tasks.",
		"Created task 1: A",
		"error: priority must be between 1 and 5",
		"Task 1 is now done",
		"100.00%",
		"error: task not found",
		"Deleted task 1",
		`unknown command "frobnicate"`,
		"Logged out",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q\n%s", want, got)
		}
	}
	if !*loggedOut {
		t.Error("expected logout to end the session")
	}
	if strings.Count(got, "No tasks.") != 2 {
		t.Errorf("expected the shell to stop after logout, got:\n%s", got)
	}
}

func TestShell_FilterReloads(t *testing.T) {
	sh, out, _ := setupShell(t)
	ctx := context.Background()

	for _, line := range []string{"add 1 buy milk", "add 5 pay rent", "filter priority=5"} {
		if _, err := sh.exec(ctx, line); err != nil {
			t.Fatalf("%q failed: %v", line, err)
		}
	}
	out.Reset()

	if _, err := sh.exec(ctx, "ls"); err != nil {
		t.Fatalf("ls failed: %v", err)
	}
	if !strings.Contains(out.String(), "pay rent") || strings.Contains(out.String(), "buy milk") {
		t.Errorf("expected only the priority 5 task, got:\n%s", out.String())
	}

	out.Reset()
	sh.exec(ctx, "filter")
	if !strings.Contains(out.String(), "priority=5") {
		t.Errorf("expected filter description, got %q", out.String())
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int { return &i }
func timePtr(t time.Time) *time.Time { return &t }
