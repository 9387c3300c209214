package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/useraccounts/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// iat is emitted as fractional epoch seconds. The parser goes through a
// float64, which is accurate to well under half a microsecond for current
// dates, so Verify rounds back to the exact microsecond that was issued.
const issuedAtPrecision = time.Microsecond

func init() {
	jwt.TimePrecision = time.Nanosecond
}

// TokenManager issues and verifies signed access tokens
type TokenManager struct {
	secret []byte
	method jwt.SigningMethod
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. algorithm must name one of the
// HMAC methods (HS256, HS384, HS512).
func NewTokenManager(secret, algorithm string, expiry time.Duration) (*TokenManager, error) {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if secret == "" {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	return &TokenManager{
		secret: []byte(secret),
		method: method,
		expiry: expiry,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source. Used by tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Expiry returns the configured token lifetime
func (tm *TokenManager) Expiry() time.Duration {
	return tm.expiry
}

// Issue creates a token for subject. iat and exp carry microsecond precision.
func (tm *TokenManager) Issue(subject string) (string, time.Time, error) {
	issuedAt := tm.now().Truncate(issuedAtPrecision)
	expiresAt := issuedAt.Add(tm.expiry)

	claims := &models.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(tm.method, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Every failure is reported as models.ErrUnauthorized.
func (tm *TokenManager) Verify(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		// absorbs float rounding of a fractional iat
		jwt.WithLeeway(issuedAtPrecision),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", models.ErrUnauthorized)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing issued-at", models.ErrUnauthorized)
	}
	claims.IssuedAt.Time = claims.IssuedAt.Round(issuedAtPrecision)

	return claims, nil
}
