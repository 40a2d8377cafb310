package auth

import (
	"testing"
	"time"

	"campus/cmd/security/password"

	"golang.org/x/crypto/bcrypt"
)

var testSecrets = &Secrets{
	JWTSecret: []byte("test-signing-secret-0123456789abcdef"),
	Pepper:    []byte("test-pepper"),
}

func fastPasswordConfig(alg password.Algorithm) password.Config {
	cfg := password.DefaultConfig()
	cfg.Algorithm = alg
	cfg.Argon2 = password.Argon2idParams{MemoryKiB: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

func newTestModule(t *testing.T, selfTest password.SelfTest, opts ...Option) *Module {
	t.Helper()
	h, err := password.New(fastPasswordConfig(password.AlgorithmAuto), selfTest)
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	m, err := New(testSecrets, h, opts...)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	return m
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }
