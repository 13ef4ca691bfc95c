package authkit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fernandezvara/dbkit"
)

const jwtIssuer = "authkit"

// IssuedToken is the result of issuing a credential. Token is the value to
// hand to the client; for session tokens it is never recoverable from
// storage afterwards.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// ============================================================================
// TOKEN LIFECYCLE
// ============================================================================

// IssueToken creates an opaque random credential for a user. Session tokens
// are stored as a SHA-256 hash only; API tokens are stored verbatim so they
// can be re-displayed later, a narrower exposure tradeoff the operator should
// be aware of. The owning user must exist and be active.
//
// Example:
//
//	issued, err := service.IssueToken(ctx, user.ID, authkit.TokenTypeSession, time.Hour)
func (s *Service) IssueToken(ctx context.Context, userID, tokenType string, ttl time.Duration) (*IssuedToken, error) {
	if tokenType != TokenTypeSession && tokenType != TokenTypeAPI {
		return nil, NewError(ErrConflict, "unsupported token type").WithUser(userID)
	}
	if ttl <= 0 {
		return nil, NewError(ErrConflict, "token ttl must be positive").WithUser(userID)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, NewError(ErrInvalidToken, "user is not active").WithUser(userID)
	}

	credential, err := randomCredential()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	token := &Token{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      tokenType,
		ExpiresAt: now.Add(ttl),
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		CreatedAt: now,
	}
	switch tokenType {
	case TokenTypeSession:
		token.TokenHash = hashToken(credential)
	case TokenTypeAPI:
		token.Token = credential
	}

	result, err := s.db.NewInsert().Model(token).Exec(ctx)
	if err = dbkit.WithErr(result, err, "IssueToken").Err(); err != nil {
		return nil, err
	}

	return &IssuedToken{
		Token:     credential,
		ID:        token.ID,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// tokenClaims are the JWT claims carried by signed session tokens. The jti
// claim correlates the token to a revocable server-side record.
type tokenClaims struct {
	jwt.RegisteredClaims
}

// IssueSignedToken creates a signed session token (HS256). The embedded jwt_id
// is cross-checked against a live token row on every verification, so a
// signed token can be revoked before its natural expiry. Requires
// WithJWTSecret.
func (s *Service) IssueSignedToken(ctx context.Context, userID string, ttl time.Duration) (*IssuedToken, error) {
	if len(s.jwtSecret) == 0 {
		return nil, NewError(ErrInvalidToken, "signed tokens require a configured secret")
	}
	if ttl <= 0 {
		return nil, NewError(ErrConflict, "token ttl must be positive").WithUser(userID)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, NewError(ErrInvalidToken, "user is not active").WithUser(userID)
	}

	now := s.now().UTC()
	jwtID := uuid.NewString()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jwtID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, NewError(ErrInvalidToken, "failed to sign token").WithUser(userID)
	}

	token := &Token{
		ID:        uuid.NewString(),
		UserID:    userID,
		JWTID:     jwtID,
		Type:      TokenTypeSession,
		ExpiresAt: now.Add(ttl),
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		CreatedAt: now,
	}

	result, err := s.db.NewInsert().Model(token).Exec(ctx)
	if err = dbkit.WithErr(result, err, "IssueSignedToken").Err(); err != nil {
		return nil, err
	}

	return &IssuedToken{
		Token:     signed,
		ID:        token.ID,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// VerifyToken validates a presented credential and returns its live record.
// Fails closed: an unknown, expired, or revoked token, and any token whose
// owner is no longer active, all yield ErrInvalidToken with no further
// detail. Verification never mutates state; pair it with TouchToken for
// last-use tracking.
func (s *Service) VerifyToken(ctx context.Context, presented string) (*Token, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, NewError(ErrInvalidToken, "empty token")
	}

	var token *Token
	var err error
	if len(s.jwtSecret) > 0 && strings.Count(presented, ".") == 2 {
		token, err = s.verifySigned(ctx, presented)
	} else {
		token, err = s.verifyOpaque(ctx, presented)
	}
	if err != nil {
		return nil, err
	}

	if token.Expired(s.now().UTC()) {
		return nil, NewError(ErrInvalidToken, "token expired")
	}

	user, err := s.GetUser(ctx, token.UserID)
	if err != nil {
		if IsNotFound(err) {
			return nil, NewError(ErrInvalidToken, "token owner missing")
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, NewError(ErrInvalidToken, "token owner is not active")
	}

	return token, nil
}

func (s *Service) verifyOpaque(ctx context.Context, presented string) (*Token, error) {
	// Session tokens are looked up by hash, API tokens by the stored value.
	var token Token
	err := dbkit.WithErr1(s.db.NewSelect().Model(&token).
		Where("token_hash = ? OR token = ?", hashToken(presented), presented).
		Limit(1).Scan(ctx), "VerifyToken").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrInvalidToken, "unknown token")
		}
		return nil, err
	}
	return &token, nil
}

func (s *Service) verifySigned(ctx context.Context, presented string) (*Token, error) {
	parsed, err := jwt.ParseWithClaims(presented, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, NewError(ErrInvalidToken, "signature validation failed")
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || claims.Issuer != jwtIssuer || claims.ID == "" {
		return nil, NewError(ErrInvalidToken, "malformed claims")
	}

	// A valid signature is not enough: the jwt_id must still map to a live
	// record, otherwise the token has been revoked.
	var token Token
	err = dbkit.WithErr1(s.db.NewSelect().Model(&token).
		Where("jwt_id = ?", claims.ID).
		Limit(1).Scan(ctx), "VerifySignedToken").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrInvalidToken, "token revoked")
		}
		return nil, err
	}
	if token.UserID != claims.Subject {
		return nil, NewError(ErrInconsistent, "token record does not match claims").
			WithUser(claims.Subject)
	}
	return &token, nil
}

// RevokeToken deletes a token so future verifications fail. Revoking an
// unknown token ID is rejected with ErrNotFound.
func (s *Service) RevokeToken(ctx context.Context, tokenID string) error {
	result, err := s.db.NewDelete().Table("tokens").Where("id = ?", tokenID).Exec(ctx)
	if err = dbkit.WithErr(result, err, "RevokeToken").Err(); err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotFound, "token does not exist")
	}
	return nil
}

// RevokeAllTokens invalidates every token a user holds. Called on password
// change and whenever a user is disabled or blocked.
func (s *Service) RevokeAllTokens(ctx context.Context, userID string) error {
	result, err := s.db.NewDelete().Table("tokens").Where("user_id = ?", userID).Exec(ctx)
	return dbkit.WithErr(result, err, "RevokeAllTokens").Err()
}

// TouchToken updates a token's last_used_at. Advisory only: callers should
// ignore failures, and verification never depends on it. Safe under
// concurrent use of the same token.
func (s *Service) TouchToken(ctx context.Context, tokenID string) error {
	result, err := s.db.NewUpdate().Table("tokens").
		Set("last_used_at = ?", s.now().UTC()).
		Where("id = ?", tokenID).Exec(ctx)
	return dbkit.WithErr(result, err, "TouchToken").Err()
}

// DeleteExpiredTokens removes every token past its expiry. Expired rows are
// already rejected by VerifyToken; this sweep only reclaims storage and can
// run on any schedule.
func (s *Service) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	result, err := s.db.NewDelete().Table("tokens").
		Where("expires_at < ?", s.now().UTC()).Exec(ctx)
	if err = dbkit.WithErr(result, err, "DeleteExpiredTokens").Err(); err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// randomCredential produces a cryptographically random opaque token value.
func randomCredential() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("authkit: read random source: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashToken computes the one-way hash stored for session tokens.
func hashToken(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
