package authkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// CREDENTIAL PRIMITIVES (no database required)
// ============================================================================

// TestHashToken validates the one-way hash used for session tokens
func TestHashToken(t *testing.T) {
	h1 := hashToken("credential-a")
	h2 := hashToken("credential-a")
	h3 := hashToken("credential-b")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64) // sha256 hex
	assert.NotContains(t, h1, "credential")
}

// TestRandomCredential validates credential generation
func TestRandomCredential(t *testing.T) {
	a, err := randomCredential()
	require.NoError(t, err)
	b, err := randomCredential()
	require.NoError(t, err)

	assert.Len(t, a, 64) // 32 random bytes, hex encoded
	assert.NotEqual(t, a, b)
}

// ============================================================================
// TOKEN LIFECYCLE INTEGRATION (database required)
// ============================================================================

// testClock is a mutable time source for expiry tests.
type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// TestTokenLifecycleIntegration exercises issue, verify, touch, revoke and
// expiry with an injected clock
func TestTokenLifecycleIntegration(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	clock := &testClock{current: time.Now().UTC()}
	service, err := SetupTestDatabase(ctx,
		WithClock(clock.Now),
		WithJWTSecret([]byte("test-secret-please-rotate")))
	require.NoError(t, err)
	_, err = service.Bootstrap(ctx, "root", "")
	require.NoError(t, err)

	user := createTestUser(t, service, ctx)

	t.Run("SessionTokenRoundTrip", func(t *testing.T) {
		issued, err := service.IssueToken(ctx, user.ID, TokenTypeSession, time.Hour)
		require.NoError(t, err)
		assert.NotEmpty(t, issued.Token)
		assert.NotEmpty(t, issued.ID)

		token, err := service.VerifyToken(ctx, issued.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, token.UserID)
		assert.Equal(t, TokenTypeSession, token.Type)

		// Only the hash is stored; the credential itself never is.
		assert.Empty(t, token.Token)
		assert.Equal(t, hashToken(issued.Token), token.TokenHash)
	})

	t.Run("APITokenStoredRaw", func(t *testing.T) {
		issued, err := service.IssueToken(ctx, user.ID, TokenTypeAPI, time.Hour)
		require.NoError(t, err)

		token, err := service.VerifyToken(ctx, issued.Token)
		require.NoError(t, err)
		assert.Equal(t, TokenTypeAPI, token.Type)
		assert.Equal(t, issued.Token, token.Token)
	})

	t.Run("UnknownTokenRejected", func(t *testing.T) {
		_, err := service.VerifyToken(ctx, "not-a-real-token")
		assert.True(t, IsInvalidToken(err))

		_, err = service.VerifyToken(ctx, "")
		assert.True(t, IsInvalidToken(err))
	})

	t.Run("InvalidIssueArguments", func(t *testing.T) {
		_, err := service.IssueToken(ctx, user.ID, "refresh", time.Hour)
		assert.True(t, IsConflict(err))

		_, err = service.IssueToken(ctx, user.ID, TokenTypeSession, 0)
		assert.True(t, IsConflict(err))

		_, err = service.IssueToken(ctx, "00000000-0000-0000-0000-000000000000", TokenTypeSession, time.Hour)
		assert.True(t, IsNotFound(err))
	})

	t.Run("ExpiryFailsClosed", func(t *testing.T) {
		issued, err := service.IssueToken(ctx, user.ID, TokenTypeSession, time.Minute)
		require.NoError(t, err)

		_, err = service.VerifyToken(ctx, issued.Token)
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		_, err = service.VerifyToken(ctx, issued.Token)
		assert.True(t, IsInvalidToken(err))
		clock.Advance(-2 * time.Minute)
	})

	t.Run("RevokeToken", func(t *testing.T) {
		issued, err := service.IssueToken(ctx, user.ID, TokenTypeSession, time.Hour)
		require.NoError(t, err)

		require.NoError(t, service.RevokeToken(ctx, issued.ID))
		_, err = service.VerifyToken(ctx, issued.Token)
		assert.True(t, IsInvalidToken(err))

		err = service.RevokeToken(ctx, issued.ID)
		assert.True(t, IsNotFound(err))
	})

	t.Run("TouchToken", func(t *testing.T) {
		issued, err := service.IssueToken(ctx, user.ID, TokenTypeSession, time.Hour)
		require.NoError(t, err)

		require.NoError(t, service.TouchToken(ctx, issued.ID))
		token, err := service.VerifyToken(ctx, issued.Token)
		require.NoError(t, err)
		assert.False(t, token.LastUsedAt.IsZero())
	})

	t.Run("SignedTokenRoundTrip", func(t *testing.T) {
		issued, err := service.IssueSignedToken(ctx, user.ID, time.Hour)
		require.NoError(t, err)
		assert.Contains(t, issued.Token, ".") // compact JWT form

		token, err := service.VerifyToken(ctx, issued.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, token.UserID)
		assert.NotEmpty(t, token.JWTID)
	})

	t.Run("SignedTokenRevocableBeforeExpiry", func(t *testing.T) {
		issued, err := service.IssueSignedToken(ctx, user.ID, time.Hour)
		require.NoError(t, err)

		require.NoError(t, service.RevokeToken(ctx, issued.ID))

		// The signature still validates, but the jwt_id cross-check fails.
		_, err = service.VerifyToken(ctx, issued.Token)
		assert.True(t, IsInvalidToken(err))
	})

	t.Run("TamperedSignedTokenRejected", func(t *testing.T) {
		issued, err := service.IssueSignedToken(ctx, user.ID, time.Hour)
		require.NoError(t, err)

		tampered := issued.Token[:len(issued.Token)-2] + "xx"
		_, err = service.VerifyToken(ctx, tampered)
		assert.True(t, IsInvalidToken(err))
	})

	t.Run("InactiveOwnerFailsVerification", func(t *testing.T) {
		victim := createTestUser(t, service, ctx)
		issued, err := service.IssueToken(ctx, victim.ID, TokenTypeAPI, time.Hour)
		require.NoError(t, err)

		require.NoError(t, service.SetUserStatus(ctx, victim.ID, UserStatusDisabled))

		// Disabling revokes the token outright; even a surviving row would be
		// rejected on the status check.
		_, err = service.VerifyToken(ctx, issued.Token)
		assert.True(t, IsInvalidToken(err))

		// And no new tokens while disabled.
		_, err = service.IssueToken(ctx, victim.ID, TokenTypeSession, time.Hour)
		assert.True(t, IsInvalidToken(err))
	})

	t.Run("RevokeAllTokens", func(t *testing.T) {
		target := createTestUser(t, service, ctx)
		first, err := service.IssueToken(ctx, target.ID, TokenTypeSession, time.Hour)
		require.NoError(t, err)
		second, err := service.IssueToken(ctx, target.ID, TokenTypeAPI, time.Hour)
		require.NoError(t, err)

		require.NoError(t, service.RevokeAllTokens(ctx, target.ID))

		_, err = service.VerifyToken(ctx, first.Token)
		assert.True(t, IsInvalidToken(err))
		_, err = service.VerifyToken(ctx, second.Token)
		assert.True(t, IsInvalidToken(err))
	})

	t.Run("DeleteExpiredTokens", func(t *testing.T) {
		sweeper := createTestUser(t, service, ctx)
		_, err := service.IssueToken(ctx, sweeper.ID, TokenTypeSession, time.Minute)
		require.NoError(t, err)
		keep, err := service.IssueToken(ctx, sweeper.ID, TokenTypeSession, time.Hour)
		require.NoError(t, err)

		clock.Advance(10 * time.Minute)
		deleted, err := service.DeleteExpiredTokens(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, int64(1))

		_, err = service.VerifyToken(ctx, keep.Token)
		require.NoError(t, err)
		clock.Advance(-10 * time.Minute)
	})
}

// TestSignedTokenRequiresSecret validates that signing without a configured
// secret is rejected before touching storage
func TestSignedTokenRequiresSecret(t *testing.T) {
	service := NewService(DefaultLevels(), nil)

	_, err := service.IssueSignedToken(context.Background(), "user-1", time.Hour)
	assert.True(t, IsInvalidToken(err))
}
