package identity

import (
	"context"
	"errors"
	"fmt"
	"github.com/kotche/memo/internal/model"
	"github.com/kotche/memo/internal/repository/users"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type DefaultProvider struct {
	repo users.Repository
	cost int
}

func NewDefaultProvider(repo users.Repository) *DefaultProvider {
	return &DefaultProvider{repo: repo, cost: bcrypt.DefaultCost}
}

func (d *DefaultProvider) CreateIdentity(ctx context.Context, email, password string) (model.UserID, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return "", &model.AuthError{Op: "create identity", Err: fmt.Errorf("failed to hash password: %w", err)}
	}

	userID := model.UserID(uuid.New().String())
	err = d.repo.CreateUser(ctx, users.Credentials{
		UserID:       userID,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return "", &model.AuthError{Op: "create identity", Err: err}
	}

	return userID, nil
}

func (d *DefaultProvider) Authenticate(ctx context.Context, email, password string) (model.UserID, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return "", err
	}

	creds, err := d.repo.GetCredentials(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return "", &model.AuthError{Op: "authenticate", Err: model.ErrInvalidCredentials}
		}
		return "", &model.AuthError{Op: "authenticate", Err: err}
	}

	if err = bcrypt.CompareHashAndPassword(creds.PasswordHash, []byte(password)); err != nil {
		return "", &model.AuthError{Op: "authenticate", Err: model.ErrInvalidCredentials}
	}

	return creds.UserID, nil
}

// Profile is read on every call, it is never cached.
func (d *DefaultProvider) Profile(ctx context.Context, userID model.UserID) (*model.User, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	return d.repo.GetUser(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", model.ErrValidation)
	}
	return nil
}
