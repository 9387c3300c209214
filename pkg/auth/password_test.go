package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	BcryptCost = bcrypt.MinCost
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
	}{
		{name: "minimum length", password: "longenough1", shouldFail: false},
		{name: "exactly eight", password: "abcdefgh", shouldFail: false},
		{name: "too short", password: "short", shouldFail: true},
		{name: "empty", password: "", shouldFail: true},
		{name: "at bcrypt limit", password: strings.Repeat("a", MaxPasswordLen), shouldFail: false},
		{name: "over bcrypt limit", password: strings.Repeat("a", MaxPasswordLen+1), shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.shouldFail {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid password")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("longenough1")
	require.NoError(t, err)

	assert.NotEqual(t, "longenough1", hashed)
	assert.True(t, VerifyPassword("longenough1", hashed))
	assert.False(t, VerifyPassword("longenough2", hashed))
}

func TestHashPassword_Salted(t *testing.T) {
	first, err := HashPassword("samepassword")
	require.NoError(t, err)
	second, err := HashPassword("samepassword")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword("samepassword", first))
	assert.True(t, VerifyPassword("samepassword", second))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.False(t, VerifyPassword("anything", "not-a-bcrypt-hash"))
		assert.False(t, VerifyPassword("anything", ""))
	})
}
