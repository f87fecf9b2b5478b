// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPINTimeout         = errors.New("pin code not retrieved within attempt budget")
	ErrSessionRejected    = errors.New("session token rejected by server")
	ErrNotConnected       = errors.New("not connected")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrTimeout            = errors.New("operation timed out")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrAssetClosed        = errors.New("asset is closed")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrOrderRejected      = errors.New("order rejected")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrNoBalance          = errors.New("balance not available")
)

// AuthError represents a failure in the login flow.
type AuthError struct {
	Stage string // "signin", "pin", "token"
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error [%s]: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new AuthError.
func NewAuthError(stage string, err error) *AuthError {
	return &AuthError{Stage: stage, Err: err}
}

// ProtocolError represents an error frame pushed by the platform,
// e.g. "not_money" on insufficient funds.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// Unwrap maps well-known platform reasons onto sentinel errors so callers
// can match with errors.Is.
func (e *ProtocolError) Unwrap() error {
	if e.Reason == "not_money" {
		return ErrInsufficientFunds
	}
	return nil
}

// Is wraps the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps the standard library errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
