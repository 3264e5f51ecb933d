package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)
	token, expiresIn, err := ti.Issue(7, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), expiresIn)

	claims, err := ti.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(3), claims.NurseID)

	_, err = NewTokenIssuer("other", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestValidateExpired(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Minute)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return base }
	token, _, err := ti.Issue(1, 1)
	require.NoError(t, err)

	ti.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = ti.Validate(token)
	assert.Error(t, err)
}

func TestParseUnverified(t *testing.T) {
	token, _, err := NewTokenIssuer("secret", time.Hour).Issue(9, 4)
	require.NoError(t, err)

	claims, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, uint(4), claims.NurseID)
	assert.NotNil(t, claims.ExpiresAt)

	_, err = ParseUnverified("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("night-shift")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("night-shift", hash))
	assert.False(t, CheckPasswordHash("day-shift", hash))
}
