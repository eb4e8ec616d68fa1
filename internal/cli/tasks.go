package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"todoapp/internal/models"
	"todoapp/internal/orchestrator"
	"todoapp/internal/taskstore"
	"todoapp/internal/views"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Change fields of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

var toggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Flip a task between pending and completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggle,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task statistics",
	RunE:  runStats,
}

// filterFlags maps list flags onto filter keys understood by parseFilterArgs.
var filterFlags = map[string]string{
	"status":    "status",
	"priority":  "priority",
	"search":    "search",
	"after":     "after",
	"before":    "before",
	"page":      "page",
	"page-size": "size",
}

func init() {
	listCmd.Flags().String("status", "all", "all, done or pending")
	listCmd.Flags().String("priority", "", "Only this priority (1-5)")
	listCmd.Flags().String("search", "", "Match title or description")
	listCmd.Flags().String("after", "", "Created on or after (YYYY-MM-DD or RFC3339)")
	listCmd.Flags().String("before", "", "Created on or before (YYYY-MM-DD or RFC3339)")
	listCmd.Flags().String("page", "", "Page number")
	listCmd.Flags().String("page-size", "", "Tasks per page")
	listCmd.Flags().Bool("by-priority", false, "Group the output by priority")

	addCmd.Flags().StringP("description", "d", "", "Description")
	addCmd.Flags().IntP("priority", "p", 1, "Priority from 1 (low) to 5 (high)")

	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().IntP("priority", "p", 0, "New priority")
	updateCmd.Flags().Bool("completed", false, "Mark completed (--completed=false reopens)")
}

// withOrchestrator runs fn against a fresh Store for this invocation.
func withOrchestrator(cmd *cobra.Command, fn func(ctx context.Context, o *orchestrator.Orchestrator) error) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	if err := env.requireSession(); err != nil {
		return err
	}
	o := env.orchestrator()
	defer o.Close()
	return fn(cmd.Context(), o)
}

func runList(cmd *cobra.Command, args []string) error {
	var kv []string
	for flag, key := range filterFlags {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetString(flag)
			kv = append(kv, key+"="+v)
		}
	}
	patch, err := parseFilterArgs(kv)
	if err != nil {
		return err
	}
	grouped, _ := cmd.Flags().GetBool("by-priority")

	return withOrchestrator(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
		o.SetFilter(patch)
		if err := settle(ctx, o, o.LoadTasks(ctx)); err != nil {
			return err
		}
		snap := o.Snapshot()
		out := cmd.OutOrStdout()
		if grouped {
			renderGroups(out, views.TasksByPriority(snap.Filtered))
		} else {
			renderTasks(out, snap.Filtered)
		}
		renderCounts(out, views.TaskCounts(snap.Filtered), snap.Filter)
		return nil
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	return withOrchestrator(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
		if err := settle(ctx, o, o.LoadTask(ctx, id)); err != nil {
			return err
		}
		var (
			task models.Task
			ok   bool
		)
		o.Read(func(s *taskstore.Store) { task, ok = views.SelectedTask(s) })
		if !ok {
			return fmt.Errorf("task %d not found", id)
		}
		renderTaskDetail(cmd.OutOrStdout(), task)
		return nil
	})
}

func runAdd(cmd *cobra.Command, args []string) error {
	description, _ := cmd.Flags().GetString("description")
	priority, _ := cmd.Flags().GetInt("priority")
	input := models.NewTask{
		Title:       strings.Join(args, " "),
		Description: description,
		Priority:    priority,
	}

	return withOrchestrator(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
		m := o.Create(ctx, input)
		if err := settle(ctx, o, m); err != nil {
			return err
		}
		task, _ := m.Task()
		fmt.Fprintf(cmd.OutOrStdout(), "Created task %d: %s\n", task.ID, task.Title)
		return nil
	})
}

func runUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	var patch models.TaskPatch
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
	}
	if flags.Changed("priority") {
		v, _ := flags.GetInt("priority")
		patch.Priority = &v
	}
	if flags.Changed("completed") {
		v, _ := flags.GetBool("completed")
		patch.IsCompleted = &v
	}
	if patch.IsEmpty() {
		return fmt.Errorf("nothing to update: pass --title, --description, --priority or --completed")
	}

	return withOrchestrator(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
		m := o.Update(ctx, id, patch)
		if err := settle(ctx, o, m); err != nil {
			return err
		}
		task, _ := m.Task()
		renderTaskDetail(cmd.OutOrStdout(), task)
		return nil
	})
}

func runToggle(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	return withOrchestrator(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
		m := o.Toggle(ctx, id)
		if err := settle(ctx, o, m); err != nil {
			return err
		}
		task, _ := m.Task()
		fmt.Fprintf(cmd.OutOrStdout(), "Task %d is now %s\n", task.ID, status(task))
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	return withOrchestrator(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
		if err := settle(ctx, o, o.Delete(ctx, id)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
		return nil
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withOrchestrator(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) error {
		o.SetFilter(models.FilterPatch{PageSize: models.Value(models.MaxPageSize)})
		if err := settle(ctx, o, o.Load(ctx)); err != nil {
			return err
		}
		snap := o.Snapshot()
		out := cmd.OutOrStdout()
		renderStatistics(out, snap.Stats, snap.StatsAuthoritative)
		renderPriorityCounts(out, snap.Tasks, snap.Stats.TotalTasks)
		return nil
	})
}

// parseFilterArgs turns key=value pairs into a filter patch. Keys: status
// (all|done|pending), priority (1-5 or any), search, after, before, page,
// size. An empty value clears the field.
func parseFilterArgs(args []string) (models.FilterPatch, error) {
	var p models.FilterPatch
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return p, fmt.Errorf("expected key=value, got %q", arg)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "status":
			switch strings.ToLower(value) {
			case "", "all":
				p.IsCompleted = models.Cleared[bool]()
			case "done", "completed":
				p.IsCompleted = models.Value(true)
			case "pending", "open":
				p.IsCompleted = models.Value(false)
			default:
				return p, fmt.Errorf("status must be all, done or pending")
			}
		case "priority":
			if value == "" || value == "any" {
				p.Priority = models.Cleared[int]()
				continue
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < models.MinPriority || n > models.MaxPriority {
				return p, fmt.Errorf("priority must be between 1 and 5")
			}
			p.Priority = models.Value(n)
		case "search":
			if value == "" {
				p.Search = models.Cleared[string]()
				continue
			}
			p.Search = models.Value(value)
		case "after", "before":
			opt := models.Cleared[time.Time]()
			if value != "" {
				t, err := parseDate(value, key == "before")
				if err != nil {
					return p, err
				}
				opt = models.Value(t)
			}
			if key == "after" {
				p.CreatedAfter = opt
			} else {
				p.CreatedBefore = opt
			}
		case "page", "size":
			opt := models.Cleared[int]()
			if value != "" {
				n, err := strconv.Atoi(value)
				if err != nil || n < 1 {
					return p, fmt.Errorf("%s must be a positive number", key)
				}
				if key == "size" && n > models.MaxPageSize {
					n = models.MaxPageSize
				}
				opt = models.Value(n)
			}
			if key == "page" {
				p.Page = opt
			} else {
				p.PageSize = opt
			}
		default:
			return p, fmt.Errorf("unknown filter %q", key)
		}
	}
	return p, nil
}

// parseDate accepts RFC3339 or a bare date in UTC. A bare "before" date
// includes the whole day.
func parseDate(s string, upper bool) (time.Time, error) {
	t, err := models.ParseTimeBound(s, upper)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC3339)", s)
	}
	return t, nil
}
