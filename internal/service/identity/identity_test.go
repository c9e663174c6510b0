package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/kotche/memo/internal/model"
	"github.com/kotche/memo/internal/repository/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]users.Credentials
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]users.Credentials{}}
}

func (f *fakeUsers) CreateUser(_ context.Context, creds users.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[creds.Email]; ok {
		return model.ErrEmailTaken
	}
	f.byEmail[creds.Email] = creds
	return nil
}

func (f *fakeUsers) GetCredentials(_ context.Context, email string) (*users.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	creds, ok := f.byEmail[email]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &creds, nil
}

func (f *fakeUsers) GetUser(_ context.Context, userID model.UserID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, creds := range f.byEmail {
		if creds.UserID == userID {
			return &model.User{ID: creds.UserID, Email: creds.Email}, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func newTestProvider() (*DefaultProvider, *fakeUsers) {
	repo := newFakeUsers()
	p := NewDefaultProvider(repo)
	p.cost = bcrypt.MinCost
	return p, repo
}

func TestCreateIdentity_HashesPassword(t *testing.T) {
	p, repo := newTestProvider()

	userID, err := p.CreateIdentity(context.Background(), " Alice@Example.com ", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, userID)

	creds := repo.byEmail["alice@example.com"]
	assert.Equal(t, userID, creds.UserID)
	assert.NotEqual(t, []byte("secret"), creds.PasswordHash)
}

func TestCreateIdentity_EmailTaken(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	_, err := p.CreateIdentity(ctx, "a@b.c", "secret")
	require.NoError(t, err)

	_, err = p.CreateIdentity(ctx, "a@b.c", "other")
	assert.ErrorIs(t, err, model.ErrAuth)
	assert.ErrorIs(t, err, model.ErrEmailTaken)
}

func TestCreateIdentity_EmptyFields(t *testing.T) {
	p, _ := newTestProvider()

	_, err := p.CreateIdentity(context.Background(), "", "secret")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAuthenticate(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	created, err := p.CreateIdentity(ctx, "a@b.c", "secret")
	require.NoError(t, err)

	got, err := p.Authenticate(ctx, "A@B.C", "secret")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = p.Authenticate(ctx, "a@b.c", "wrong")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = p.Authenticate(ctx, "nobody@b.c", "secret")
	assert.ErrorIs(t, err, model.ErrAuth)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestSession_Lifecycle(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()
	s := NewSession(p)

	_, err := s.Current()
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)

	userID, err := s.SignUp(ctx, "a@b.c", "secret")
	require.NoError(t, err)

	current, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, userID, current)

	profile, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", profile.Email)

	assert.Equal(t, userID, s.SignOut())
	_, err = s.Current()
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)

	_, err = s.Profile(ctx)
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
}

func TestSession_EnterFallsBackToSignIn(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	first, err := NewSession(p).Enter(ctx, "a@b.c", "secret")
	require.NoError(t, err)

	s := NewSession(p)
	second, err := s.Enter(ctx, "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = NewSession(p).Enter(ctx, "a@b.c", "wrong")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}
