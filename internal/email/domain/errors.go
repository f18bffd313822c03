package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired is returned by provider calls rejected with a 401
	ErrAuthExpired = errors.New("gmail access token expired")
	// ErrConnectionNotFound means the user never connected a Gmail account
	ErrConnectionNotFound = errors.New("gmail connection not found")
	// ErrConnectionInactive means the stored connection has been disabled
	ErrConnectionInactive = errors.New("gmail connection inactive")
	// ErrDigestNotFound means the digest is absent or owned by another user
	ErrDigestNotFound = errors.New("digest not found")
)

// ProviderError wraps any mail provider failure other than auth expiry
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gmail %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ConnectionError is returned when freshly stored credentials fail verification
type ConnectionError struct {
	UserID string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to Gmail with provided tokens: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
