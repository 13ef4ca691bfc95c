package authkit

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/fernandezvara/dbkit"
)

// PasswordHasher is the opaque one-way function used for user credentials.
// The algorithm is pluggable; only the cost knob is AuthKit's concern.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt-backed PasswordHasher with the given cost
// factor. Costs outside bcrypt's supported range fall back to the default.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

// DefaultPasswordHasher returns the hasher used when none is configured.
func DefaultPasswordHasher() PasswordHasher {
	return &bcryptHasher{cost: bcrypt.DefaultCost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *bcryptHasher) Verify(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ============================================================================
// USERS
// ============================================================================

// CreateUser registers a new identity. Username and email are unique;
// duplicates are rejected with ErrConflict. The user starts active.
func (s *Service) CreateUser(ctx context.Context, name, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" {
		return nil, NewError(ErrConflict, "username and email are required")
	}
	if password == "" {
		return nil, NewError(ErrConflict, "password is required")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Status:       UserStatusActive,
	}

	result, err := s.db.NewInsert().Model(user).Exec(ctx)
	err = dbkit.WithErr(result, err, "CreateUser").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrConflict, "username or email already taken")
		}
		return nil, err
	}
	return user, nil
}

// GetUser loads a user by ID. Returns ErrNotFound if absent.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := dbkit.WithErr1(s.db.NewSelect().Model(&user).Where("u.id = ?", userID).Limit(1).Scan(ctx), "GetUser").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "user does not exist").WithUser(userID)
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername loads a user by username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := dbkit.WithErr1(s.db.NewSelect().Model(&user).Where("username = ?", username).Limit(1).Scan(ctx), "GetUserByUsername").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "user does not exist")
		}
		return nil, err
	}
	return &user, nil
}

// SetUserStatus moves a user between active, disabled, and blocked. Leaving
// the active status revokes every token the user holds, so in-flight
// credentials die with the account.
func (s *Service) SetUserStatus(ctx context.Context, userID, status string) error {
	switch status {
	case UserStatusActive, UserStatusDisabled, UserStatusBlocked:
	default:
		return NewError(ErrConflict, "unsupported user status").WithUser(userID)
	}

	result, err := s.db.NewUpdate().Table("users").
		Set("status = ?", status).
		Set("updated_at = current_timestamp").
		Where("id = ?", userID).Exec(ctx)
	if err = dbkit.WithErr(result, err, "SetUserStatus").Err(); err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotFound, "user does not exist").WithUser(userID)
	}

	if status != UserStatusActive {
		return s.RevokeAllTokens(ctx, userID)
	}
	return nil
}

// SetUserPassword replaces a user's password hash and revokes all existing
// tokens.
func (s *Service) SetUserPassword(ctx context.Context, userID, newPassword string) error {
	if newPassword == "" {
		return NewError(ErrConflict, "password is required").WithUser(userID)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	result, err := s.db.NewUpdate().Table("users").
		Set("password_hash = ?", hash).
		Set("updated_at = current_timestamp").
		Where("id = ?", userID).Exec(ctx)
	if err = dbkit.WithErr(result, err, "SetUserPassword").Err(); err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotFound, "user does not exist").WithUser(userID)
	}

	return s.RevokeAllTokens(ctx, userID)
}

// Authenticate checks a username/password pair against the stored hash and
// the user's status. Wrong username, wrong password, and a non-active account
// are all reported identically as ErrInvalidCredentials so callers leak
// nothing about which part failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		if IsNotFound(err) {
			return nil, NewError(ErrInvalidCredentials, "authentication failed")
		}
		return nil, err
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return nil, NewError(ErrInvalidCredentials, "authentication failed")
	}
	if !user.IsActive() {
		return nil, NewError(ErrInvalidCredentials, "authentication failed")
	}
	return user, nil
}
