package identity

import (
	"context"
	"github.com/kotche/memo/internal/model"
)

type (
	Provider interface {
		CreateIdentity(ctx context.Context, email, password string) (model.UserID, error)
		Authenticate(ctx context.Context, email, password string) (model.UserID, error)
		Profile(ctx context.Context, userID model.UserID) (*model.User, error)
	}
)
