package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims carried by an access token. Subject holds the
// user's email, IssuedAt is used for session invalidation checks.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

const TokenTypeBearer = "bearer"
