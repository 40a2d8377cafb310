package app

import (
	"errors"

	"campus/cmd/internal/auth"

	"github.com/samber/oops"
)

// ValidateSecurityConfig loads the auth secrets and enforces startup policy.
// Any failure is fatal: the server never starts without both secrets.
func ValidateSecurityConfig(cfg Config) (*auth.Secrets, error) {
	secrets, err := auth.LoadSecretsFromEnv()
	if err != nil {
		code := "CONFIG_INVALID"
		if errors.Is(err, auth.ErrSecretMissing) {
			code = "CONFIG_SECRET_MISSING"
		}
		return nil, oops.Code(code).Hint("set " + auth.JWTSecretEnvKey + " and " + auth.PepperEnvKey).Wrap(err)
	}

	if cfg.Production() && cfg.DatabaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("production requires CAMPUS_DATABASE_URL")
	}
	return secrets, nil
}
