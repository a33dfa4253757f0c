package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/baechuer/task-dispatch/internal/application/task"
	"github.com/baechuer/task-dispatch/internal/domain"
)

func (r *Repo) WithTx(ctx context.Context, fn func(tr task.TxTaskRepo) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
		ReadOnly:  false,
	})
	if err != nil {
		return err
	}

	tr := &txRepo{tx: tx}

	defer func() {
		// Safety: in case fn panics, rollback to avoid leaked tx.
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tr); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txRepo struct {
	tx *sql.Tx
}

func (r *txRepo) CreateTask(ctx context.Context, t *domain.Task) error {
	_, err := r.tx.ExecContext(ctx, insertTaskSQL,
		t.ID, t.Title, t.Description, string(t.Priority), string(t.Status),
		t.CreatedAt, t.StartedAt, t.FinishedAt, t.Result, t.Error,
	)
	return err
}

func (r *txRepo) TransitionToPending(ctx context.Context, id string) (int64, error) {
	return execAffected(ctx, r.tx, transitionToPendingSQL, id)
}

func (r *txRepo) Claim(ctx context.Context, id string, now time.Time) (int64, error) {
	return execAffected(ctx, r.tx, claimTaskSQL, id, now.UTC())
}

func (r *txRepo) Complete(ctx context.Context, id, result string, now time.Time) (int64, error) {
	return execAffected(ctx, r.tx, completeTaskSQL, id, result, now.UTC())
}

func (r *txRepo) Fail(ctx context.Context, id, errMsg string, now time.Time) (int64, error) {
	return execAffected(ctx, r.tx, failTaskSQL, id, errMsg, now.UTC())
}

func execAffected(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
