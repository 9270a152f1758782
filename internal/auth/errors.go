package auth

import "errors"

var (
	// ErrWrongPassword signals a failed login attempt.
	ErrWrongPassword = errors.New("wrong password")
	// ErrUnauthorized signals a missing, invalid or expired token.
	ErrUnauthorized = errors.New("unauthorized")
)
