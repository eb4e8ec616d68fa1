package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"todoapp/internal/models"
	"todoapp/internal/views"
)

const dateFormat = "2006-01-02 15:04"

func status(t models.Task) string {
	if t.IsCompleted {
		return "done"
	}
	return "pending"
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderTasks(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRI\tTITLE\tCREATED")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			t.ID, status(t), t.Priority, truncate(t.Title, 48), t.CreatedAt.Local().Format(dateFormat))
	}
	tw.Flush()
}

func renderGroups(w io.Writer, groups []views.PriorityGroup) {
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if len(g.Tasks) == 0 {
			continue
		}
		fmt.Fprintf(w, "Priority %d\n", g.Priority)
		renderTasks(w, g.Tasks)
		fmt.Fprintln(w)
	}
}

func renderCounts(w io.Writer, c views.Counts, f models.Filter) {
	fmt.Fprintf(w, "\n%d shown: %d pending, %d done, %d high priority (page %d, %d per page)\n",
		c.Total, c.Pending, c.Completed, c.HighPriority, f.Page, f.PageSize)
}

func renderTaskDetail(w io.Writer, t models.Task) {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%d\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", status(t))
	fmt.Fprintf(tw, "Priority:\t%d\n", t.Priority)
	fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.Local().Format(dateFormat))
	if t.CompletedAt != nil {
		fmt.Fprintf(tw, "Completed:\t%s\n", t.CompletedAt.Local().Format(dateFormat))
	}
	if t.UpdatedAt != nil {
		fmt.Fprintf(tw, "Updated:\t%s\n", t.UpdatedAt.Local().Format(dateFormat))
	}
	tw.Flush()
}

func renderStatistics(w io.Writer, s models.Statistics, authoritative bool) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Total:\t%d\n", s.TotalTasks)
	fmt.Fprintf(tw, "Completed:\t%d\n", s.CompletedTasks)
	fmt.Fprintf(tw, "Pending:\t%d\n", s.PendingTasks)
	fmt.Fprintf(tw, "Completion rate:\t%.2f%%\n", s.CompletionRate)
	fmt.Fprintf(tw, "Created today:\t%d\n", s.TasksCreatedToday)
	fmt.Fprintf(tw, "Completed today:\t%d\n", s.TasksCompletedToday)
	tw.Flush()
	if !authoritative {
		fmt.Fprintln(w, "(estimated from loaded tasks)")
	}
}

// renderPriorityCounts histograms the loaded tasks. total is the server-wide
// count; when fewer tasks are loaded the header says so.
func renderPriorityCounts(w io.Writer, tasks []models.Task, total int) {
	if len(tasks) < total {
		fmt.Fprintf(w, "\nBy priority (%d of %d tasks loaded):\n", len(tasks), total)
	} else {
		fmt.Fprintln(w, "\nBy priority:")
	}
	for _, c := range views.TaskCountsByPriority(tasks) {
		fmt.Fprintf(w, "  %d  %s %d\n", c.Priority, strings.Repeat("#", c.Count), c.Count)
	}
}

func renderUser(w io.Writer, u *models.User, expires time.Time) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Name:\t%s\n", u.DisplayName())
	fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "Member since:\t%s\n", u.CreatedAt.Local().Format("2006-01-02"))
	if !expires.IsZero() {
		fmt.Fprintf(tw, "Session expires:\t%s\n", expires.Local().Format(dateFormat))
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
