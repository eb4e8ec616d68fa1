package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"todoapp/internal/models"
	"todoapp/internal/orchestrator"
	"todoapp/internal/taskstore"
	"todoapp/internal/views"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session over one task store",
	RunE:  runShell,
}

const shellHelp = `Commands:
  ls                       tasks matching the filter
  todo | done              pending or completed tasks
  groups                   tasks grouped by priority
  filter [key=value ...]   show or change the filter (status, priority,
                           search, after, before, page, size) and reload
  refresh                  reload tasks and statistics
  show <id>                fetch and select a task
  add <priority> <title>   create a task
  rename <id> <title>      change a title
  describe <id> <text>     change a description
  priority <id> <n>        change a priority
  toggle <id>              flip completion
  rm <id>                  delete a task
  stats                    statistics
  error | clear            show or clear the last error
  logout                   end the session and quit
  quit                     leave the shell`

func runShell(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	if err := env.requireSession(); err != nil {
		return err
	}
	o := env.orchestrator()
	defer o.Close()

	sh := &shell{o: o, out: cmd.OutOrStdout(), logout: env.end}
	fmt.Fprintf(sh.out, "Signed in as %s. Type help for commands.\n", env.session.Current().Email)
	return sh.run(cmd.Context(), cmd.InOrStdin())
}

// shell is a line-oriented front end that keeps one Store for the whole
// session.
type shell struct {
	o      *orchestrator.Orchestrator
	out    io.Writer
	logout func() error
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	if _, err := sh.exec(ctx, "refresh"); err != nil {
		fmt.Fprintln(sh.out, "error:", err)
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprint(sh.out, "> ")
	for scanner.Scan() {
		quit, err := sh.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(sh.out, "error:", err)
		}
		if quit {
			return nil
		}
		fmt.Fprint(sh.out, "> ")
	}
	return scanner.Err()
}

// exec runs one command line. It reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	o := sh.o

	switch name {
	case "help", "?":
		fmt.Fprintln(sh.out, shellHelp)
	case "quit", "exit":
		return true, nil

	case "ls", "list":
		snap := o.Snapshot()
		renderTasks(sh.out, snap.Filtered)
		renderCounts(sh.out, views.TaskCounts(snap.Filtered), snap.Filter)
	case "todo":
		renderTasks(sh.out, views.PendingTasks(o.Snapshot().Tasks))
	case "done":
		renderTasks(sh.out, views.CompletedTasks(o.Snapshot().Tasks))
	case "groups":
		renderGroups(sh.out, views.TasksByPriority(o.Snapshot().Filtered))

	case "filter":
		if len(args) == 0 {
			fmt.Fprintln(sh.out, describeFilter(o.Snapshot().Filter))
			return false, nil
		}
		patch, err := parseFilterArgs(args)
		if err != nil {
			return false, err
		}
		o.SetFilter(patch)
		return false, settle(ctx, o, o.LoadTasks(ctx))
	case "refresh":
		return false, settle(ctx, o, o.Load(ctx))

	case "show":
		id, err := sh.id(args)
		if err != nil {
			return false, err
		}
		if err := settle(ctx, o, o.LoadTask(ctx, id)); err != nil {
			return false, err
		}
		var (
			task models.Task
			ok   bool
		)
		o.Read(func(s *taskstore.Store) { task, ok = views.SelectedTask(s) })
		if ok {
			renderTaskDetail(sh.out, task)
		}

	case "add":
		if len(args) < 2 {
			return false, errors.New("usage: add <priority> <title>")
		}
		priority, err := strconv.Atoi(args[0])
		if err != nil {
			return false, errors.New("usage: add <priority> <title>")
		}
		m := o.Create(ctx, models.NewTask{Title: strings.Join(args[1:], " "), Priority: priority})
		if err := settle(ctx, o, m); err != nil {
			return false, err
		}
		task, _ := m.Task()
		fmt.Fprintf(sh.out, "Created task %d: %s\n", task.ID, task.Title)

	case "rename", "describe", "priority":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: %s <id> <value>", name)
		}
		id, err := parseTaskID(args[0])
		if err != nil {
			return false, err
		}
		var patch models.TaskPatch
		value := strings.Join(args[1:], " ")
		switch name {
		case "rename":
			patch.Title = &value
		case "describe":
			patch.Description = &value
		case "priority":
			n, err := strconv.Atoi(value)
			if err != nil {
				return false, errors.New("priority must be a number")
			}
			patch.Priority = &n
		}
		m := o.Update(ctx, id, patch)
		if err := settle(ctx, o, m); err != nil {
			return false, err
		}
		task, _ := m.Task()
		renderTaskDetail(sh.out, task)

	case "toggle":
		id, err := sh.id(args)
		if err != nil {
			return false, err
		}
		m := o.Toggle(ctx, id)
		if err := settle(ctx, o, m); err != nil {
			return false, err
		}
		task, _ := m.Task()
		fmt.Fprintf(sh.out, "Task %d is now %s\n", task.ID, status(task))
	case "rm", "delete":
		id, err := sh.id(args)
		if err != nil {
			return false, err
		}
		if err := settle(ctx, o, o.Delete(ctx, id)); err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "Deleted task %d\n", id)

	case "stats":
		snap := o.Snapshot()
		renderStatistics(sh.out, snap.Stats, snap.StatsAuthoritative)
		renderPriorityCounts(sh.out, snap.Tasks, snap.Stats.TotalTasks)

	case "error":
		if err := o.Snapshot().Err; err != nil {
			fmt.Fprintln(sh.out, "last error:", err)
		} else {
			fmt.Fprintln(sh.out, "no error")
		}
	case "clear":
		o.ClearError()

	case "logout":
		o.Reset()
		if err := sh.logout(); err != nil {
			return true, err
		}
		fmt.Fprintln(sh.out, "Logged out")
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q (try help)", name)
	}
	return false, nil
}

func (sh *shell) id(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one task id")
	}
	return parseTaskID(args[0])
}

func describeFilter(f models.Filter) string {
	parts := []string{"status=all"}
	if f.IsCompleted != nil {
		parts[0] = "status=pending"
		if *f.IsCompleted {
			parts[0] = "status=done"
		}
	}
	if f.Priority != nil {
		parts = append(parts, fmt.Sprintf("priority=%d", *f.Priority))
	}
	if f.Search != "" {
		parts = append(parts, "search="+f.Search)
	}
	if f.CreatedAfter != nil {
		parts = append(parts, "after="+f.CreatedAfter.Format("2006-01-02"))
	}
	if f.CreatedBefore != nil {
		parts = append(parts, "before="+f.CreatedBefore.Format("2006-01-02"))
	}
	parts = append(parts, fmt.Sprintf("page=%d", f.Page), fmt.Sprintf("size=%d", f.PageSize))
	return strings.Join(parts, " ")
}
