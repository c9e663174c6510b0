package scheduler

import (
	"context"
	"github.com/kotche/memo/internal/model"
)

type (
	// Scheduler registers at most one notification trigger per memo.
	// Schedule replaces any trigger already registered under the same key.
	Scheduler interface {
		Schedule(ctx context.Context, reminder model.Reminder) error
		Cancel(ctx context.Context, userID model.UserID, key model.MemoID) error
		RequestPermission(ctx context.Context, userID model.UserID, chatID int64) (bool, error)
	}
)
