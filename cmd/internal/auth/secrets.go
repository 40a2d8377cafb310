package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"campus/cmd/security/token"
)

const (
	// JWTSecretEnvKey names the token signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	JWTSecretEnvKey = "CAMPUS_JWT_SECRET"

	// PepperEnvKey names the server-wide password pepper.
	// #nosec G101 -- not a credential; it's an environment variable name.
	PepperEnvKey = "CAMPUS_PEPPER"
)

var (
	ErrSecretMissing  = errors.New("auth secret missing")
	ErrSecretTooShort = errors.New("auth secret too short")
)

// Secrets holds the two process-wide auth secrets. It is loaded once at
// startup and passed by pointer; nothing else reads these env vars.
type Secrets struct {
	JWTSecret []byte
	Pepper    []byte
}

// LoadSecretsFromEnv reads and validates both secrets. Either one missing is
// a configuration error the caller must treat as fatal.
func LoadSecretsFromEnv() (*Secrets, error) {
	jwtSecret := strings.TrimSpace(os.Getenv(JWTSecretEnvKey))
	pepper := os.Getenv(PepperEnvKey)

	s := &Secrets{JWTSecret: []byte(jwtSecret), Pepper: []byte(pepper)}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks presence and the signing key length.
func (s *Secrets) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: %s, %s", ErrSecretMissing, JWTSecretEnvKey, PepperEnvKey)
	}
	if len(s.JWTSecret) == 0 {
		return fmt.Errorf("%w: %s", ErrSecretMissing, JWTSecretEnvKey)
	}
	if strings.TrimSpace(string(s.Pepper)) == "" {
		return fmt.Errorf("%w: %s", ErrSecretMissing, PepperEnvKey)
	}
	if len(s.JWTSecret) < token.MinKeyBytes {
		return fmt.Errorf("%w: %s must be at least %d bytes", ErrSecretTooShort, JWTSecretEnvKey, token.MinKeyBytes)
	}
	return nil
}
