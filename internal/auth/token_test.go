package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/useraccounts/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256-signing"

func newTestTokenManager(t *testing.T, now time.Time) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(testSecret, "HS256", 30*time.Minute)
	require.NoError(t, err)
	return tm.WithClock(func() time.Time { return now })
}

func TestTokenManager_IssueVerify_RoundTrip(t *testing.T) {
	now := time.Now()
	tm := newTestTokenManager(t, now)

	token, expiresAt, err := tm.Issue("a@x.io")
	require.NoError(t, err)
	assert.Equal(t, now.Truncate(time.Microsecond).Add(30*time.Minute), expiresAt)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", claims.Subject)
	assert.True(t, now.Truncate(time.Microsecond).Equal(claims.IssuedAt.Time))
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestTokenManager_IssuedAt_KeepsMicroseconds(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	for _, us := range []int{1, 123, 123456, 499999, 500000, 999999} {
		issued := base.Add(time.Duration(us)*time.Microsecond + 400*time.Nanosecond)
		tm := newTestTokenManager(t, issued)

		token, _, err := tm.Issue("a@x.io")
		require.NoError(t, err)

		claims, err := tm.Verify(token)
		require.NoError(t, err)
		assert.True(t, issued.Truncate(time.Microsecond).Equal(claims.IssuedAt.Time),
			"us=%d got %s", us, claims.IssuedAt.Time)
	}
}

func TestTokenManager_TokenAfterCutoffInSameSecond(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2025, 3, 14, 9, 26, 53, 200*int(time.Millisecond), time.UTC)

	inv := NewMemoryInvalidator()
	inv.now = func() time.Time { return cutoff }
	require.NoError(t, inv.Invalidate(ctx, "u1"))

	before := newTestTokenManager(t, cutoff.Add(-time.Millisecond))
	after := newTestTokenManager(t, cutoff.Add(time.Millisecond))

	for name, tc := range map[string]struct {
		tm    *TokenManager
		valid bool
	}{
		"issued before cutoff": {before, false},
		"issued after cutoff":  {after, true},
	} {
		t.Run(name, func(t *testing.T) {
			token, _, err := tc.tm.Issue("a@x.io")
			require.NoError(t, err)
			claims, err := tc.tm.Verify(token)
			require.NoError(t, err)

			ok, err := inv.IsValid(ctx, "u1", claims.IssuedAt.Time)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, ok)
		})
	}
}

func TestTokenManager_Verify_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	tm := newTestTokenManager(t, issued)

	token, _, err := tm.Issue("a@x.io")
	require.NoError(t, err)

	tm.WithClock(time.Now)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	tm := newTestTokenManager(t, time.Now())
	other, err := NewTokenManager("a-completely-different-secret-value-for-test", "HS256", time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue("a@x.io")
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_Verify_WrongAlgorithm(t *testing.T) {
	tm := newTestTokenManager(t, time.Now())
	other, err := NewTokenManager(testSecret, "HS512", time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue("a@x.io")
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_Verify_NoneAlgorithm(t *testing.T) {
	tm := newTestTokenManager(t, time.Now())

	claims := jwt.RegisteredClaims{
		Subject:   "a@x.io",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_Verify_MissingClaims(t *testing.T) {
	now := time.Now()
	tm := newTestTokenManager(t, now)

	tests := []struct {
		name   string
		claims jwt.RegisteredClaims
	}{
		{
			name: "missing subject",
			claims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		},
		{
			name: "missing issued-at",
			claims: jwt.RegisteredClaims{
				Subject:   "a@x.io",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		},
		{
			name: "missing expiry",
			claims: jwt.RegisteredClaims{
				Subject:  "a@x.io",
				IssuedAt: jwt.NewNumericDate(now),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString([]byte(testSecret))
			require.NoError(t, err)

			_, err = tm.Verify(token)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestTokenManager_Verify_Malformed(t *testing.T) {
	tm := newTestTokenManager(t, time.Now())

	for _, input := range []string{"", "garbage", "a.b.c", strings.Repeat(".", 10)} {
		assert.NotPanics(t, func() {
			_, err := tm.Verify(input)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestNewTokenManager_RejectsNonHMAC(t *testing.T) {
	_, err := NewTokenManager(testSecret, "RS256", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager(testSecret, "nope", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager("", "HS256", time.Hour)
	assert.Error(t, err)
}
