package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionStore interface {
	Create(ctx context.Context, session SessionRecord) error
	Get(ctx context.Context, sid string) (SessionRecord, error)
	Delete(ctx context.Context, sid string) error
}

// Service implements the server-verified admin gate: a shared password
// exchanged for a short-lived JWT backed by a redis session.
type Service struct {
	jwt           *JWTManager
	sessions      SessionStore
	adminPassword string
	sessionTTL    time.Duration
	now           func() time.Time
}

func NewService(jwtManager *JWTManager, sessions SessionStore, adminPassword string, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}

	return &Service{
		jwt:           jwtManager,
		sessions:      sessions,
		adminPassword: adminPassword,
		sessionTTL:    sessionTTL,
		now:           time.Now,
	}
}

func (s *Service) Login(ctx context.Context, password string) (AuthResult, error) {
	if s.jwt == nil || s.sessions == nil {
		return AuthResult{}, fmt.Errorf("auth dependencies are not configured")
	}
	if strings.TrimSpace(s.adminPassword) == "" {
		return AuthResult{}, fmt.Errorf("admin password is not configured")
	}
	if strings.TrimSpace(password) == "" {
		return AuthResult{}, ErrInvalidInput
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) != 1 {
		return AuthResult{}, ErrUnauthorized
	}

	sid := uuid.NewString()
	expiresAt := s.now().UTC().Add(s.sessionTTL)

	if err := s.sessions.Create(ctx, SessionRecord{
		SID:       sid,
		Role:      RoleAdmin,
		ExpiresAt: expiresAt,
	}); err != nil {
		return AuthResult{}, fmt.Errorf("create admin session: %w", err)
	}

	token, accessExpires, err := s.jwt.GenerateAccessToken(sid, RoleAdmin)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:   token,
		AccessExpires: accessExpires,
		SID:           sid,
	}, nil
}

// ValidateAccessToken checks both the token signature and that the backing
// session still exists, so a logout invalidates outstanding tokens.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (AccessClaims, error) {
	if s.jwt == nil || s.sessions == nil {
		return AccessClaims{}, fmt.Errorf("auth dependencies are not configured")
	}

	claims, err := s.jwt.ParseAccessToken(token)
	if err != nil {
		return AccessClaims{}, err
	}

	session, err := s.sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AccessClaims{}, ErrUnauthorized
		}
		return AccessClaims{}, err
	}
	if session.ExpiresAt.Before(s.now().UTC()) {
		return AccessClaims{}, ErrUnauthorized
	}

	return claims, nil
}

func (s *Service) Logout(ctx context.Context, sid string) error {
	if s.sessions == nil {
		return fmt.Errorf("session store is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return ErrInvalidInput
	}
	return s.sessions.Delete(ctx, sid)
}
