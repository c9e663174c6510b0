package memos

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/kotche/memo/infrastructure/tracing"
	"github.com/kotche/memo/internal/model"
	_ "github.com/lib/pq"
	"time"

	"github.com/Masterminds/squirrel"
)

const upsertSuffix = `ON CONFLICT (user_id, id) DO UPDATE SET
	title = EXCLUDED.title,
	details = EXCLUDED.details,
	reminder_date = EXCLUDED.reminder_date,
	updated_at = NOW()`

type DefaultRepository struct {
	db *sql.DB
}

func NewDefaultRepository(pg *sql.DB) *DefaultRepository {
	return &DefaultRepository{pg}
}

// Put writes the whole memo record, creating it when absent.
func (d *DefaultRepository) Put(ctx context.Context, userID model.UserID, memo model.Memo) error {
	ctx, span := tracing.StartSpan(ctx, "PutMemo_repo")
	defer span.End()

	query, args, err := squirrel.
		Insert("memos").
		Columns("user_id", "id", "title", "details", "reminder_date").
		Values(userID, memo.ID, memo.Title, memo.Details, memo.ReminderAt.UTC()).
		Suffix(upsertSuffix).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return &model.StoreError{Op: "put", Err: fmt.Errorf("failed to build query: %w", err)}
	}

	if _, err = d.db.ExecContext(ctx, query, args...); err != nil {
		return &model.StoreError{Op: "put", Err: fmt.Errorf("failed to put memo '%s' for user '%s': %w", memo.ID, userID, err)}
	}

	return nil
}

func (d *DefaultRepository) List(ctx context.Context, userID model.UserID) ([]model.Memo, error) {
	ctx, span := tracing.StartSpan(ctx, "ListMemos_repo")
	defer span.End()

	query, args, err := squirrel.
		Select("id",
			"title",
			"details",
			"reminder_date").
		From("memos").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("reminder_date", "id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, &model.StoreError{Op: "list", Err: fmt.Errorf("failed to build query: %w", err)}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &model.StoreError{Op: "list", Err: fmt.Errorf("failed to query memos: %w", err)}
	}
	defer rows.Close()

	memos := make([]model.Memo, 0)
	for rows.Next() {
		var (
			memo       model.Memo
			reminderAt time.Time
		)
		if err = rows.Scan(&memo.ID, &memo.Title, &memo.Details, &reminderAt); err != nil {
			return nil, &model.StoreError{Op: "list", Err: fmt.Errorf("failed to scan memo: %w", err)}
		}
		memo.ReminderAt = reminderAt.UTC()
		memos = append(memos, memo)
	}
	if err = rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "list", Err: fmt.Errorf("failed to iterate memos: %w", err)}
	}

	return memos, nil
}

func (d *DefaultRepository) Delete(ctx context.Context, userID model.UserID, memoID model.MemoID) error {
	ctx, span := tracing.StartSpan(ctx, "DeleteMemo_repo")
	defer span.End()

	query, args, err := squirrel.
		Delete("memos").
		Where(squirrel.Eq{"user_id": userID, "id": memoID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return &model.StoreError{Op: "delete", Err: fmt.Errorf("failed to build query: %w", err)}
	}

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &model.StoreError{Op: "delete", Err: fmt.Errorf("failed to delete memo '%s' for user '%s': %w", memoID, userID, err)}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &model.StoreError{Op: "delete", Err: fmt.Errorf("failed to get affected rows: %w", err)}
	}
	if affected == 0 {
		return &model.StoreError{Op: "delete", Err: model.ErrMemoNotFound}
	}

	return nil
}
