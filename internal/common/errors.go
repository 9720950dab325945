// Package common defines shared constants, sentinel errors and typed errors
// used across the chirp server, its HTTP layer and the operator CLI. Callers
// should match them with errors.Is / errors.As.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal       = errors.New("internal error")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Request validation.
	ErrValidationFailed = errors.New("validation failed")
	ErrWeakPassword     = errors.New("weak password")

	// Identity errors.
	ErrDuplicateIdentity     = errors.New("duplicate identity")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountHasFollowEdges = errors.New("account still has follow edges")

	// Token errors. Every verification failure wraps ErrInvalidToken so
	// refresh and logout can collapse them into one outcome.
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidSignature    = fmt.Errorf("%w: signature", ErrInvalidToken)
	ErrInvalidIssuer       = fmt.Errorf("%w: issuer", ErrInvalidToken)
	ErrInvalidAudience     = fmt.Errorf("%w: audience", ErrInvalidToken)
	ErrTokenExpired        = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrMalformedAuthHeader = errors.New("invalid authorization header")
)

// DuplicateIdentityError reports which identity field collided.
type DuplicateIdentityError struct {
	Field string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("duplicate identity: %s", e.Field)
}

func (e *DuplicateIdentityError) Is(target error) bool {
	return target == ErrDuplicateIdentity
}

// WeakPasswordError lists every password rule the candidate violated.
type WeakPasswordError struct {
	Rules []string
}

func (e *WeakPasswordError) Error() string {
	return "weak password: " + strings.Join(e.Rules, "; ")
}

func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}

// ValidationError carries field-level request problems.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
