package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/kotche/memo/infrastructure/tracing"
	"github.com/kotche/memo/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type DefaultRepository struct {
	db *sql.DB
}

func NewDefaultRepository(pg *sql.DB) *DefaultRepository {
	return &DefaultRepository{pg}
}

func (d *DefaultRepository) CreateUser(ctx context.Context, creds Credentials) error {
	ctx, span := tracing.StartSpan(ctx, "CreateUser_repo")
	defer span.End()

	query := `INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, NOW())`
	if _, err := d.db.ExecContext(ctx, query, creds.UserID, creds.Email, creds.PasswordHash); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (d *DefaultRepository) GetCredentials(ctx context.Context, email string) (*Credentials, error) {
	query, args, err := squirrel.
		Select("id", "email", "password_hash").
		From("users").
		Where(squirrel.Eq{"email": email}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	creds := &Credentials{}
	err = d.db.QueryRowContext(ctx, query, args...).Scan(&creds.UserID, &creds.Email, &creds.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credentials for '%s': %w", email, err)
	}
	return creds, nil
}

func (d *DefaultRepository) GetUser(ctx context.Context, userID model.UserID) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, email FROM users WHERE id = $1`
	err := d.db.QueryRowContext(ctx, query, userID).Scan(&user.ID, &user.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user '%s': %w", userID, err)
	}
	return user, nil
}
