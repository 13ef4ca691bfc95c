package authkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PASSWORD HASHER (no database required)
// ============================================================================

// TestBcryptHasherRoundTrip validates hashing and verification
func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, h.Verify(hash, "correct horse battery staple"))
	assert.Error(t, h.Verify(hash, "wrong password"))
}

// TestBcryptHasherCostFallback validates that out-of-range costs fall back
func TestBcryptHasherCostFallback(t *testing.T) {
	for _, cost := range []int{-1, 0, bcrypt.MaxCost + 1} {
		h := NewBcryptHasher(cost).(*bcryptHasher)
		assert.Equal(t, bcrypt.DefaultCost, h.cost)
	}

	h := NewBcryptHasher(bcrypt.MinCost).(*bcryptHasher)
	assert.Equal(t, bcrypt.MinCost, h.cost)
}

// fakeHasher records calls for tests that only need a predictable hash.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Verify(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

// ============================================================================
// USER LIFECYCLE INTEGRATION (database required)
// ============================================================================

// TestUserLifecycleIntegration exercises creation, authentication, status
// transitions and the password change token revocation
func TestUserLifecycleIntegration(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx, WithPasswordHasher(fakeHasher{}))
	require.NoError(t, err)
	_, err = service.Bootstrap(ctx, "root", "")
	require.NoError(t, err)

	username := uniqueName("alice")
	user, err := service.CreateUser(ctx, "Alice", username, username+"@Example.COM", "pass-1")
	require.NoError(t, err)
	assert.Equal(t, UserStatusActive, user.Status)
	assert.Equal(t, username+"@example.com", user.Email) // lowercased
	assert.NotEqual(t, "pass-1", user.PasswordHash)

	t.Run("DuplicateUsernameRejected", func(t *testing.T) {
		_, err := service.CreateUser(ctx, "Clone", username, uniqueName("x")+"@example.com", "pw")
		assert.True(t, IsConflict(err))
	})

	t.Run("EmptyFieldsRejected", func(t *testing.T) {
		_, err := service.CreateUser(ctx, "", "", "a@example.com", "pw")
		assert.True(t, IsConflict(err))
		_, err = service.CreateUser(ctx, "", uniqueName("u"), "a@example.com", "")
		assert.True(t, IsConflict(err))
	})

	t.Run("AuthenticateHappyPath", func(t *testing.T) {
		got, err := service.Authenticate(ctx, username, "pass-1")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("AuthenticateFailuresIndistinguishable", func(t *testing.T) {
		_, err := service.Authenticate(ctx, username, "wrong")
		wrongPass := err.Error()
		assert.True(t, errors.Is(err, ErrInvalidCredentials))

		_, err = service.Authenticate(ctx, "no-such-user", "pass-1")
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
		assert.Equal(t, wrongPass, err.Error())
	})

	t.Run("StatusTransitions", func(t *testing.T) {
		require.NoError(t, service.SetUserStatus(ctx, user.ID, UserStatusBlocked))

		_, err := service.Authenticate(ctx, username, "pass-1")
		assert.True(t, errors.Is(err, ErrInvalidCredentials))

		require.NoError(t, service.SetUserStatus(ctx, user.ID, UserStatusActive))
		_, err = service.Authenticate(ctx, username, "pass-1")
		assert.NoError(t, err)

		err = service.SetUserStatus(ctx, user.ID, "frozen")
		assert.True(t, IsConflict(err))

		err = service.SetUserStatus(ctx, "00000000-0000-0000-0000-000000000000", UserStatusActive)
		assert.True(t, IsNotFound(err))
	})

	t.Run("PasswordChangeRevokesTokens", func(t *testing.T) {
		issued, err := service.IssueToken(ctx, user.ID, TokenTypeSession, time.Hour)
		require.NoError(t, err)

		require.NoError(t, service.SetUserPassword(ctx, user.ID, "pass-2"))

		_, err = service.VerifyToken(ctx, issued.Token)
		assert.True(t, IsInvalidToken(err))

		_, err = service.Authenticate(ctx, username, "pass-1")
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
		_, err = service.Authenticate(ctx, username, "pass-2")
		assert.NoError(t, err)
	})

	t.Run("GetUserByUsername", func(t *testing.T) {
		got, err := service.GetUserByUsername(ctx, username)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		_, err = service.GetUserByUsername(ctx, "nobody-here")
		assert.True(t, IsNotFound(err))
	})
}
