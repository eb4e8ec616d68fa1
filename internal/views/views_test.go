package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/internal/models"
	"todoapp/internal/taskstore"
)

var now = time.Date(2024, 6, 15, 15, 0, 0, 0, time.UTC)

func mk(id int64, title string, done bool, priority int, created time.Time) models.Task {
	t := models.Task{ID: id, Title: title, IsCompleted: done, Priority: priority, CreatedAt: created}
	if done {
		at := created.Add(time.Minute)
		t.CompletedAt = &at
	}
	return t
}

func sample() []models.Task {
	return []models.Task{
		mk(4, "Pay rent", false, 5, now.Add(-1*time.Hour)),
		mk(3, "Buy MILK", true, 3, now.Add(-2*time.Hour)),
		mk(2, "Call mom", false, 1, now.AddDate(0, 0, -1)),
		{ID: 1, Title: "Read", Description: "a book about milk", Priority: 2, CreatedAt: now.AddDate(0, 0, -2)},
	}
}

func idsOf(tasks []models.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int { return &i }
func timePtr(t time.Time) *time.Time { return &t }

func TestFilteredTasks(t *testing.T) {
	tests := []struct {
		name   string
		filter models.Filter
		want   []int64
	}{
		{"empty filter keeps everything in order", models.Filter{}, []int64{4, 3, 2, 1}},
		{"completed", models.Filter{IsCompleted: boolPtr(true)}, []int64{3}},
		{"pending", models.Filter{IsCompleted: boolPtr(false)}, []int64{4, 2, 1}},
		{"priority", models.Filter{Priority: intPtr(5)}, []int64{4}},
		{"search title or description, any case", models.Filter{Search: "milk"}, []int64{3, 1}},
		{"created after is inclusive", models.Filter{CreatedAfter: timePtr(now.Add(-2 * time.Hour))}, []int64{4, 3}},
		{"created before is inclusive", models.Filter{CreatedBefore: timePtr(now.AddDate(0, 0, -1))}, []int64{2, 1}},
		{"combined", models.Filter{IsCompleted: boolPtr(false), Search: "milk"}, []int64{1}},
		{"paging ignored", models.Filter{Page: 2, PageSize: 1}, []int64{4, 3, 2, 1}},
		{"no match", models.Filter{Priority: intPtr(4)}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idsOf(FilteredTasks(sample(), tt.filter)))
		})
	}
}

func TestFilteredTasks_DoesNotModifyInput(t *testing.T) {
	tasks := sample()
	before := append([]models.Task(nil), tasks...)

	FilteredTasks(tasks, models.Filter{Search: "milk", IsCompleted: boolPtr(true)})

	assert.Equal(t, before, tasks)
}

func TestCompletedAndPendingIgnoreFilter(t *testing.T) {
	assert.Equal(t, []int64{3}, idsOf(CompletedTasks(sample())))
	assert.Equal(t, []int64{4, 2, 1}, idsOf(PendingTasks(sample())))
}

func TestTaskCountsByPriority(t *testing.T) {
	tasks := []models.Task{
		mk(1, "a", true, 5, now),
		mk(2, "b", false, 3, now),
		mk(3, "c", true, 1, now),
	}

	want := []PriorityCount{
		{Priority: 1, Count: 1},
		{Priority: 2, Count: 0},
		{Priority: 3, Count: 1},
		{Priority: 4, Count: 0},
		{Priority: 5, Count: 1},
	}
	assert.Equal(t, want, TaskCountsByPriority(tasks))
}

func TestTasksByPriority(t *testing.T) {
	groups := TasksByPriority(sample())

	require.Len(t, groups, 5)
	assert.Equal(t, 1, groups[0].Priority)
	assert.Equal(t, []int64{2}, idsOf(groups[0].Tasks))
	assert.Empty(t, groups[3].Tasks)
	assert.Equal(t, []int64{4}, idsOf(groups[4].Tasks))
}

func TestTaskCounts(t *testing.T) {
	assert.Equal(t, Counts{Total: 4, Completed: 1, Pending: 3, HighPriority: 1}, TaskCounts(sample()))
	assert.Equal(t, Counts{}, TaskCounts(nil))
}

func TestLocalStatistics(t *testing.T) {
	stats := LocalStatistics(sample(), now)

	assert.Equal(t, models.Statistics{
		TotalTasks:          4,
		CompletedTasks:      1,
		PendingTasks:        3,
		CompletionRate:      25,
		TasksCreatedToday:   2,
		TasksCompletedToday: 1,
	}, stats)
}

func TestLocalStatistics_Empty(t *testing.T) {
	stats := LocalStatistics(nil, now)

	assert.Equal(t, 0.0, stats.CompletionRate)
	assert.Zero(t, stats.TotalTasks)
}

func TestLocalStatistics_RoundsLikeServer(t *testing.T) {
	tasks := []models.Task{
		mk(1, "a", true, 1, now),
		mk(2, "b", false, 1, now),
		mk(3, "c", false, 1, now),
	}

	local := LocalStatistics(tasks, now)
	server := models.NewStatistics(3, 1, 3, 1)

	assert.Equal(t, server, local)
	assert.Equal(t, 33.33, local.CompletionRate)
}

func TestDashboardStatistics_PrefersAuthoritative(t *testing.T) {
	s := taskstore.New()
	s.ReplaceAll(sample())

	stats, authoritative := DashboardStatistics(s, now)
	assert.False(t, authoritative)
	assert.Equal(t, 4, stats.TotalTasks)

	server := models.NewStatistics(40, 10, 0, 0)
	s.SetStatistics(server)
	stats, authoritative = DashboardStatistics(s, now)
	assert.True(t, authoritative)
	assert.Equal(t, server, stats)
}

func TestSelectedTask(t *testing.T) {
	s := taskstore.New()
	s.ReplaceAll(sample())

	_, ok := SelectedTask(s)
	assert.False(t, ok)

	s.SetSelected(3)
	got, ok := SelectedTask(s)
	require.True(t, ok)
	assert.Equal(t, "Buy MILK", got.Title)

	s.SetSelected(99)
	_, ok = SelectedTask(s)
	assert.False(t, ok)
}

func TestSelector_MemoizesUntilInputsChange(t *testing.T) {
	s := taskstore.New()
	s.ReplaceAll(sample())
	var sel Selector

	first := sel.FilteredTasks(s)
	second := sel.FilteredTasks(s)
	require.Len(t, first, 4)
	assert.Same(t, &first[0], &second[0], "unchanged inputs must return the same slice")

	s.SetFilter(models.FilterPatch{Search: models.Value("milk")})
	third := sel.FilteredTasks(s)
	assert.Equal(t, []int64{3, 1}, idsOf(third))

	s.Remove(1)
	fourth := sel.FilteredTasks(s)
	assert.Equal(t, []int64{3}, idsOf(fourth))

	s.SetFilter(models.FilterPatch{Search: models.Value("milk")})
	fifth := sel.FilteredTasks(s)
	assert.Same(t, &fourth[0], &fifth[0], "an equal filter must not invalidate the result")
}
