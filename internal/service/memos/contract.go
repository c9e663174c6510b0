package memos

import (
	"context"
	"github.com/kotche/memo/internal/model"
)

type (
	Coordinator interface {
		Create(ctx context.Context, userID model.UserID, memo model.Memo) (model.Memo, error)
		FetchAll(ctx context.Context, userID model.UserID) ([]model.Memo, error)
		Update(ctx context.Context, userID model.UserID, memo model.Memo) error
		Delete(ctx context.Context, userID model.UserID, memo model.Memo) error
		Resync(ctx context.Context, userID model.UserID) error
		Memos(userID model.UserID) []model.Memo
		Forget(userID model.UserID)
	}
)
