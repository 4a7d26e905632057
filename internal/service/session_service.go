package service

import (
	"context"
	"fmt"
	"time"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/academvault/discussions/pkg/auth"
	"github.com/google/uuid"
)

// SessionService ends sessions issued by the auth collaborator. Tokens are
// revoked in the StateStore until they would have expired.
type SessionService struct {
	repos      *repository.Repositories
	jwtManager *auth.JWTManager
	store      repository.StateStore
}

func NewSessionService(repos *repository.Repositories, jwtManager *auth.JWTManager, store repository.StateStore) *SessionService {
	return &SessionService{repos: repos, jwtManager: jwtManager, store: store}
}

// Logout revokes the token and marks the user offline
func (s *SessionService) Logout(ctx context.Context, userID uuid.UUID, tokenString string) error {
	if err := s.repos.Users.UpdateOnlineStatus(ctx, userID, false); err != nil {
		return fmt.Errorf("set offline: %w", err)
	}

	claims, err := s.jwtManager.ValidateToken(tokenString)
	if err != nil {
		return err
	}
	expiresIn := time.Until(claims.ExpiresAt.Time)
	if expiresIn <= 0 {
		return nil
	}
	return s.store.Set(ctx, repository.RevokedTokenKey(tokenString), []byte("revoked"), expiresIn)
}

// IsRevoked reports whether the token was logged out
func (s *SessionService) IsRevoked(ctx context.Context, tokenString string) (bool, error) {
	return s.store.Exists(ctx, repository.RevokedTokenKey(tokenString))
}

// SetPresence records the user's online status; the realtime hub calls it
// when the user's first connection opens and the last one closes.
func (s *SessionService) SetPresence(ctx context.Context, userID uuid.UUID, online bool) error {
	return s.repos.Users.UpdateOnlineStatus(ctx, userID, online)
}

// Profile returns the caller's account
func (s *SessionService) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	u, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
