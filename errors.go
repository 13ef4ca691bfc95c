package authkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for AuthKit operations.
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("authkit: not found")

	// ErrConflict is returned when a write violates a uniqueness or
	// structural constraint (duplicate path, delete with children, etc).
	ErrConflict = errors.New("authkit: conflict")

	// ErrCycle is returned when a namespace move would make a node its own
	// ancestor.
	ErrCycle = errors.New("authkit: cycle")

	// ErrInconsistent is returned when a read uncovers a structural
	// invariant violation, such as an assignment pointing at a role that no
	// longer exists. This is a fatal integrity error for operators, never
	// silently repaired.
	ErrInconsistent = errors.New("authkit: inconsistent data")

	// ErrInvalidToken is returned when a presented token fails verification
	// for any reason: unknown, expired, revoked, or its owner is not active.
	ErrInvalidToken = errors.New("authkit: invalid token")

	// ErrInvalidCredentials is returned for any failed authentication
	// attempt. Wrong username, wrong password, and a non-active account are
	// deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("authkit: invalid credentials")

	// ErrCannotAssign is returned when an actor tries to assign or revoke a
	// role at or above their own privilege level.
	ErrCannotAssign = errors.New("authkit: cannot assign role")

	// ErrSystemRole is returned when trying to delete or rename a system role.
	ErrSystemRole = errors.New("authkit: system role is protected")

	// ErrNoActorID is returned when actor ID is not found in context for audit.
	ErrNoActorID = errors.New("authkit: no actor ID in context")

	// ErrNoUserID is returned when user ID is not found in context.
	ErrNoUserID = errors.New("authkit: no user ID in context")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("authkit: database error")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err         error  // Underlying sentinel error
	Message     string // Additional context
	NamespaceID string // Namespace involved (if applicable)
	RoleID      string // Role involved (if applicable)
	UserID      string // User involved (if applicable)
	ActorID     string // Actor who triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithNamespace adds namespace information to the error.
func (e *Error) WithNamespace(namespaceID string) *Error {
	e.NamespaceID = namespaceID
	return e
}

// WithRole adds role information to the error.
func (e *Error) WithRole(roleID string) *Error {
	e.RoleID = roleID
	return e
}

// WithUser adds user information to the error.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithActor adds actor information to the error.
func (e *Error) WithActor(actorID string) *Error {
	e.ActorID = actorID
	return e
}

// IsNotFound checks if an error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error indicates a uniqueness or structural conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsCycle checks if an error indicates a rejected cyclic namespace move.
func IsCycle(err error) bool {
	return errors.Is(err, ErrCycle)
}

// IsInconsistent checks if an error indicates a data integrity violation.
func IsInconsistent(err error) bool {
	return errors.Is(err, ErrInconsistent)
}

// IsInvalidToken checks if an error indicates a failed token verification.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

// IsCannotAssign checks if an error is due to lacking assignment authority.
func IsCannotAssign(err error) bool {
	return errors.Is(err, ErrCannotAssign)
}
