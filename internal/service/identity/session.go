package identity

import (
	"context"
	"errors"
	"github.com/kotche/memo/internal/model"
	"log"
	"sync"
)

// Session holds the identity of one client. It replaces a process-wide
// "current user": every memo operation takes the UserID returned by Current.
type Session struct {
	provider Provider

	mu      sync.RWMutex
	current model.UserID
}

func NewSession(provider Provider) *Session {
	return &Session{provider: provider}
}

func (s *Session) SignUp(ctx context.Context, email, password string) (model.UserID, error) {
	userID, err := s.provider.CreateIdentity(ctx, email, password)
	if err != nil {
		return "", err
	}
	s.set(userID)
	return userID, nil
}

func (s *Session) SignIn(ctx context.Context, email, password string) (model.UserID, error) {
	userID, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	s.set(userID)
	return userID, nil
}

// Enter tries to register the email first and falls back to signing in.
func (s *Session) Enter(ctx context.Context, email, password string) (model.UserID, error) {
	userID, err := s.SignUp(ctx, email, password)
	if err == nil {
		return userID, nil
	}
	if errors.Is(err, model.ErrValidation) {
		return "", err
	}
	log.Printf("sign-up for '%s' failed, trying sign-in: %v", email, err)

	return s.SignIn(ctx, email, password)
}

func (s *Session) Current() (model.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == "" {
		return "", model.ErrNotAuthenticated
	}
	return s.current, nil
}

func (s *Session) Profile(ctx context.Context) (*model.User, error) {
	userID, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.provider.Profile(ctx, userID)
}

// SignOut returns the identity that was signed out, if any.
func (s *Session) SignOut() model.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	s.current = ""
	return prev
}

func (s *Session) set(userID model.UserID) {
	s.mu.Lock()
	s.current = userID
	s.mu.Unlock()
}
