// Package common defines sentinel errors shared by the rtcauth server,
// client and transports. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// Service-level error kinds. Every failure returned by the auth service
	// wraps exactly one of these.
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUpstream           = errors.New("upstream unavailable")
	ErrVerificationFailed = errors.New("verification failed")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrPersistence        = errors.New("persistence failure")

	// Verification outcomes that callers present differently.
	ErrCodeInvalid = fmt.Errorf("%w: invalid code", ErrVerificationFailed)
	ErrCodeExpired = fmt.Errorf("%w: code expired", ErrVerificationFailed)

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
