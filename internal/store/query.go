package store

import (
	"strconv"
	"strings"
	"time"

	"todoapp/internal/models"
)

const taskColumns = `id, user_id, title, description, completed, priority, created_at, completed_at, updated_at`

const userColumns = `id, email, password_hash, first_name, last_name, created_at, updated_at`

// placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

// dialect is what the shared query builders need to know about a backend.
// lower names a case-folding SQL function that handles all of Unicode.
type dialect struct {
	ph    placeholder
	lower string
}

var (
	sqliteDialect   = dialect{ph: questionMark, lower: sqliteLowerFunc}
	postgresDialect = dialect{ph: dollar, lower: "LOWER"}
)

// listTasksQuery builds the filtered, ordered and paged task query shared by
// the SQLite and Postgres stores.
func listTasksQuery(userID int64, f models.Filter, d dialect) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return d.ph(len(args))
	}

	where = append(where, "user_id = "+bind(userID))

	if f.IsCompleted != nil {
		where = append(where, "completed = "+bind(*f.IsCompleted))
	}
	if f.Priority != nil {
		where = append(where, "priority = "+bind(*f.Priority))
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		where = append(where, "("+d.lower+"(title) LIKE "+bind(pattern)+` ESCAPE '\'`+
			" OR "+d.lower+"(description) LIKE "+bind(pattern)+` ESCAPE '\')`)
	}
	if f.CreatedAfter != nil {
		where = append(where, "created_at >= "+bind(f.CreatedAfter.UTC()))
	}
	if f.CreatedBefore != nil {
		where = append(where, "created_at <= "+bind(f.CreatedBefore.UTC()))
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, id DESC"

	if f.PageSize > 0 {
		query += " LIMIT " + bind(f.PageSize) + " OFFSET " + bind(f.Offset())
	}

	return query, args
}

// statisticsQuery counts a user's tasks in one pass.
func statisticsQuery(userID int64, now time.Time, ph placeholder) (string, []any) {
	start, end := models.Day(now)
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ` + ph(1) + ` AND created_at < ` + ph(2) + ` THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN completed_at >= ` + ph(3) + ` AND completed_at < ` + ph(4) + ` THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE user_id = ` + ph(5)
	return query, []any{start, end, start, end, userID}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
