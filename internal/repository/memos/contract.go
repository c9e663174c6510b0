package memos

import (
	"context"
	"github.com/kotche/memo/internal/model"
)

type (
	Repository interface {
		Put(ctx context.Context, userID model.UserID, memo model.Memo) error
		List(ctx context.Context, userID model.UserID) ([]model.Memo, error)
		Delete(ctx context.Context, userID model.UserID, memoID model.MemoID) error
	}
)
