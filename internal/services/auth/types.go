package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionNotFound = errors.New("session not found")
)

const RoleAdmin = "admin"

type SessionRecord struct {
	SID       string
	Role      string
	ExpiresAt time.Time
}

type AccessClaims struct {
	SID       string
	Role      string
	ExpiresAt time.Time
}

type AuthResult struct {
	AccessToken   string
	AccessExpires time.Time
	SID           string
}
