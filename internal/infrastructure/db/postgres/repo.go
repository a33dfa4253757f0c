package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/baechuer/task-dispatch/internal/application/task"
	"github.com/baechuer/task-dispatch/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return scanTask(r.db.QueryRowContext(ctx, getTaskSQL, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var priority, status string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &priority, &status,
		&t.CreatedAt, &t.StartedAt, &t.FinishedAt, &t.Result, &t.Error,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("task not found")
	}
	if err != nil {
		return nil, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.TaskStatus(status)
	if !t.Status.Valid() {
		return nil, fmt.Errorf("invalid task status %q in db", status)
	}
	return &t, nil
}

func (r *Repo) List(ctx context.Context, f task.ListFilter) ([]*domain.Task, error) {
	where := []string{}
	args := []any{}
	argN := 1

	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, string(*f.Status))
		argN++
	}
	if f.Priority != nil {
		where = append(where, fmt.Sprintf("priority = $%d", argN))
		args = append(args, string(*f.Priority))
		argN++
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	listSQL := `
SELECT id, title, description, priority, status,
       created_at, started_at, finished_at, result, error
FROM tasks
` + whereSQL + `
ORDER BY created_at DESC
LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel is the user-facing NEW/PENDING -> CANCELLED conditional update.
func (r *Repo) Cancel(ctx context.Context, id string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, cancelTaskSQL, id, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
