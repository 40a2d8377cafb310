package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrInvalidHash      = errors.New("invalid password hash")

	// ErrHashFailed is returned when the underlying algorithm fails. It is never
	// returned for invalid input.
	ErrHashFailed = errors.New("password hashing failed")

	// ErrEmptyInput is returned when Hash is called with nothing to hash.
	ErrEmptyInput = errors.New("empty credential input")

	// ErrAlgorithmUnavailable is reported by a SelfTest that cannot run Argon2id
	// with the configured parameters.
	ErrAlgorithmUnavailable = errors.New("password algorithm unavailable")
)
