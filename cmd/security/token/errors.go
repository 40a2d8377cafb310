package token

import "errors"

// Public, stable errors for callers.
var (
	ErrKeyMissing  = errors.New("token signing key missing")
	ErrKeyTooShort = errors.New("token signing key too short")

	// ErrInvalidToken covers malformed, tampered and expired tokens alike.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidSubject is returned by Issue for an empty identity id or role.
	ErrInvalidSubject = errors.New("invalid token subject")
)
