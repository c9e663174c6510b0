package scheduler

import (
	"context"
	"github.com/kotche/memo/internal/model"
	"github.com/kotche/memo/internal/repository/reminders"
)

type DefaultScheduler struct {
	repo reminders.Repository
}

func NewDefaultScheduler(repo reminders.Repository) *DefaultScheduler {
	return &DefaultScheduler{repo: repo}
}

func (d *DefaultScheduler) Schedule(ctx context.Context, reminder model.Reminder) error {
	granted, err := d.repo.HasGrant(ctx, reminder.UserID)
	if err != nil {
		return &model.SchedulerError{Op: "schedule", Err: err}
	}

	if !granted {
		return &model.SchedulerError{Op: "schedule", Err: model.ErrPermissionDenied}
	}

	if err = d.repo.Upsert(ctx, reminder); err != nil {
		return &model.SchedulerError{Op: "schedule", Err: err}
	}

	return nil
}

func (d *DefaultScheduler) Cancel(ctx context.Context, userID model.UserID, key model.MemoID) error {
	if err := d.repo.Delete(ctx, userID, key); err != nil {
		return &model.SchedulerError{Op: "cancel", Err: err}
	}
	return nil
}

// RequestPermission grants notifications for userID and records chatID as
// the delivery target. A bot chat has no way to refuse, so a successful
// write always means granted.
func (d *DefaultScheduler) RequestPermission(ctx context.Context, userID model.UserID, chatID int64) (bool, error) {
	if err := d.repo.Grant(ctx, userID, chatID); err != nil {
		return false, &model.SchedulerError{Op: "request permission", Err: err}
	}
	return true, nil
}
