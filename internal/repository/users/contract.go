package users

import (
	"context"
	"github.com/kotche/memo/internal/model"
)

type (
	Credentials struct {
		UserID       model.UserID
		Email        string
		PasswordHash []byte
	}

	Repository interface {
		CreateUser(ctx context.Context, creds Credentials) error
		GetCredentials(ctx context.Context, email string) (*Credentials, error)
		GetUser(ctx context.Context, userID model.UserID) (*model.User, error)
	}
)
