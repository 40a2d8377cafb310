// Package auth is the campus credential and session core.
//
// Module hashes and verifies credentials (name + secret + pepper) and issues
// and decodes session tokens. Verification and decoding never return errors:
// every failure is a plain false. Module holds no mutable state and is safe
// for concurrent use; hashing is CPU-bound and blocks the caller.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"campus/cmd/identity"
	"campus/cmd/security/password"
	"campus/cmd/security/token"
)

var (
	// ErrInvalidCredentialInput is returned by HashCredential for an empty name or secret.
	ErrInvalidCredentialInput = errors.New("name and secret are required")

	// ErrHashingFailed is returned when the hash algorithm itself fails.
	ErrHashingFailed = password.ErrHashFailed

	// ErrInvalidTokenSubject is returned by IssueToken for an empty id or unknown role.
	ErrInvalidTokenSubject = errors.New("invalid token subject")
)

// Module exposes the four auth operations to route handlers.
type Module struct {
	pepper []byte
	hasher password.Hasher
	tokens *token.Manager
}

// Option configures a Module.
type Option func(*moduleOptions)

type moduleOptions struct {
	now func() time.Time
	ttl time.Duration
}

// WithClock overrides the token clock.
func WithClock(now func() time.Time) Option {
	return func(o *moduleOptions) { o.now = now }
}

// WithTokenTTL overrides the session validity window.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *moduleOptions) { o.ttl = ttl }
}

// New builds a Module from validated secrets and a selected hasher.
func New(secrets *Secrets, hasher password.Hasher, opts ...Option) (*Module, error) {
	if err := secrets.Validate(); err != nil {
		return nil, err
	}
	if hasher == nil {
		return nil, errors.New("auth: nil hasher")
	}

	o := moduleOptions{ttl: token.DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	tokens, err := token.NewManager(token.Config{Key: secrets.JWTSecret, TTL: o.ttl, Now: o.now})
	if err != nil {
		return nil, err
	}

	pepper := make([]byte, len(secrets.Pepper))
	copy(pepper, secrets.Pepper)

	return &Module{pepper: pepper, hasher: hasher, tokens: tokens}, nil
}

// Algorithm reports the strategy new hashes use.
func (m *Module) Algorithm() password.Algorithm { return m.hasher.Algorithm() }

// TokenTTL is the session lifetime; cookies use the same value.
func (m *Module) TokenTTL() time.Duration { return m.tokens.TTL() }

// HashCredential hashes name + secret + pepper. The result is self-describing.
func (m *Module) HashCredential(name, secret string) (string, error) {
	if strings.TrimSpace(name) == "" || secret == "" {
		return "", ErrInvalidCredentialInput
	}

	h, err := m.hasher.Hash(m.credentialInput(name, secret))
	if err != nil {
		if errors.Is(err, ErrHashingFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	if h == "" {
		return "", ErrHashingFailed
	}
	return h, nil
}

// VerifyCredential reports whether name + secret + pepper matches stored.
// Any malformed or unsupported hash is false.
func (m *Module) VerifyCredential(name, secret, stored string) bool {
	if strings.TrimSpace(name) == "" || secret == "" || stored == "" {
		return false
	}
	return m.hasher.Verify(m.credentialInput(name, secret), stored)
}

// IssueToken signs a session token for id with role. It returns the token and
// its expiry.
func (m *Module) IssueToken(id string, role identity.Role) (string, time.Time, error) {
	if strings.TrimSpace(id) == "" || !role.Valid() {
		return "", time.Time{}, ErrInvalidTokenSubject
	}
	return m.tokens.Issue(id, string(role))
}

// DecodeToken returns the principal of a valid, unexpired token. Expired,
// tampered and malformed tokens are indistinguishable: all return false.
func (m *Module) DecodeToken(raw string) (Principal, bool) {
	claims, err := m.tokens.Parse(raw)
	if err != nil {
		return Principal{}, false
	}

	role, err := identity.ParseRole(claims.Role)
	if err != nil || strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, false
	}
	return Principal{ID: claims.Subject, Role: role}, true
}

func (m *Module) credentialInput(name, secret string) []byte {
	b := make([]byte, 0, len(name)+len(secret)+len(m.pepper))
	b = append(b, name...)
	b = append(b, secret...)
	return append(b, m.pepper...)
}
