package reminders

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/kotche/memo/infrastructure/tracing"
	"github.com/kotche/memo/internal/model"
	"time"

	"github.com/Masterminds/squirrel"
)

// A rescheduled trigger gets a new revision and loses its fired mark, so an
// acknowledgement for an older revision never touches it.
const upsertSuffix = `ON CONFLICT (user_id, memo_id) DO UPDATE SET
	title = EXCLUDED.title,
	body = EXCLUDED.body,
	fire_at = EXCLUDED.fire_at,
	revision = reminders.revision + 1,
	fired_at = NULL`

type DefaultRepository struct {
	db *sql.DB
}

func NewDefaultRepository(pg *sql.DB) *DefaultRepository {
	return &DefaultRepository{pg}
}

func (d *DefaultRepository) HasGrant(ctx context.Context, userID model.UserID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM notification_grants WHERE user_id = $1)`
	err := d.db.QueryRowContext(ctx, query, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to get grant for user '%s': %w", userID, err)
	}
	return exists, nil
}

func (d *DefaultRepository) Grant(ctx context.Context, userID model.UserID, chatID int64) error {
	query := `
		INSERT INTO notification_grants (user_id, chat_id, granted_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET chat_id = EXCLUDED.chat_id
	`
	if _, err := d.db.ExecContext(ctx, query, userID, chatID); err != nil {
		return fmt.Errorf("failed to grant notifications for user '%s': %w", userID, err)
	}
	return nil
}

func (d *DefaultRepository) Upsert(ctx context.Context, reminder model.Reminder) error {
	ctx, span := tracing.StartSpan(ctx, "UpsertReminder_repo")
	defer span.End()

	query, args, err := squirrel.
		Insert("reminders").
		Columns("user_id", "memo_id", "title", "body", "fire_at").
		Values(reminder.UserID, reminder.Key, reminder.Title, reminder.Body, reminder.FireAt.UTC()).
		Suffix(upsertSuffix).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err = d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert reminder '%s' for user '%s': %w", reminder.Key, reminder.UserID, err)
	}
	return nil
}

func (d *DefaultRepository) Delete(ctx context.Context, userID model.UserID, key model.MemoID) error {
	query, args, err := squirrel.
		Delete("reminders").
		Where(squirrel.Eq{"user_id": userID, "memo_id": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err = d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete reminder '%s' for user '%s': %w", key, userID, err)
	}
	return nil
}

// ListDue returns unfired triggers with fire time before the given moment
// whose owners have granted notifications.
func (d *DefaultRepository) ListDue(ctx context.Context, before time.Time) ([]model.DueReminder, error) {
	ctx, span := tracing.StartSpan(ctx, "ListDueReminders_repo")
	defer span.End()

	query, args, err := squirrel.
		Select("r.user_id",
			"r.memo_id",
			"r.title",
			"r.body",
			"r.fire_at",
			"r.revision",
			"g.chat_id").
		From("reminders r").
		Join("notification_grants g ON g.user_id = r.user_id").
		Where("r.fired_at IS NULL").
		Where(squirrel.Lt{"r.fire_at": before.UTC()}).
		OrderBy("r.fire_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	var due []model.DueReminder
	for rows.Next() {
		var r model.DueReminder
		if err = rows.Scan(&r.UserID, &r.Key, &r.Title, &r.Body, &r.FireAt, &r.Revision, &r.ChatID); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		due = append(due, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}

	return due, nil
}

// MarkFired reports false when the trigger was rescheduled or cancelled since
// it was read.
func (d *DefaultRepository) MarkFired(ctx context.Context, fired model.FiredReminder) (bool, error) {
	query := `
		UPDATE reminders SET fired_at = NOW()
		WHERE user_id = $1 AND memo_id = $2 AND revision = $3 AND fired_at IS NULL
	`
	res, err := d.db.ExecContext(ctx, query, fired.UserID, fired.Key, fired.Revision)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder '%s' fired: %w", fired.Key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// UnmarkFired releases a claim whose delivery failed, so the next tick picks
// the trigger up again.
func (d *DefaultRepository) UnmarkFired(ctx context.Context, fired model.FiredReminder) error {
	query := `
		UPDATE reminders SET fired_at = NULL
		WHERE user_id = $1 AND memo_id = $2 AND revision = $3
	`
	if _, err := d.db.ExecContext(ctx, query, fired.UserID, fired.Key, fired.Revision); err != nil {
		return fmt.Errorf("failed to release reminder '%s' for user '%s': %w", fired.Key, fired.UserID, err)
	}
	return nil
}

func (d *DefaultRepository) DeleteFired(ctx context.Context, fired model.FiredReminder) error {
	query := `
		DELETE FROM reminders
		WHERE user_id = $1 AND memo_id = $2 AND revision = $3 AND fired_at IS NOT NULL
	`
	if _, err := d.db.ExecContext(ctx, query, fired.UserID, fired.Key, fired.Revision); err != nil {
		return fmt.Errorf("failed to delete fired reminder '%s' for user '%s': %w", fired.Key, fired.UserID, err)
	}
	return nil
}
