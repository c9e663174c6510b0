package reminders

import (
	"context"
	"github.com/kotche/memo/internal/model"
	"time"
)

type (
	Repository interface {
		HasGrant(ctx context.Context, userID model.UserID) (bool, error)
		Grant(ctx context.Context, userID model.UserID, chatID int64) error
		Upsert(ctx context.Context, reminder model.Reminder) error
		Delete(ctx context.Context, userID model.UserID, key model.MemoID) error
		ListDue(ctx context.Context, before time.Time) ([]model.DueReminder, error)
		MarkFired(ctx context.Context, fired model.FiredReminder) (bool, error)
		UnmarkFired(ctx context.Context, fired model.FiredReminder) error
		DeleteFired(ctx context.Context, fired model.FiredReminder) error
	}
)
