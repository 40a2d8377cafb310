package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"CAMPUS_PASSWORD_ALGORITHM",
		"CAMPUS_PASSWORD_MIN_LEN",
		"CAMPUS_PASSWORD_MAX_LEN",
		"CAMPUS_PASSWORD_REJECT_VERY_WEAK",
		"CAMPUS_ARGON2_MEMORY_KIB",
		"CAMPUS_ARGON2_ITERATIONS",
		"CAMPUS_ARGON2_PARALLELISM",
		"CAMPUS_ARGON2_SALT_LEN",
		"CAMPUS_ARGON2_KEY_LEN",
		"CAMPUS_BCRYPT_COST",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy != def.Policy || cfg.Argon2 != def.Argon2 || cfg.BcryptCost != def.BcryptCost {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Algorithm != AlgorithmAuto {
		t.Fatalf("algorithm = %q", cfg.Algorithm)
	}
	if cfg.BcryptCost != 12 {
		t.Fatalf("bcrypt cost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.Argon2.Parallelism < 1 || cfg.Argon2.Parallelism > 4 {
		t.Fatalf("parallelism out of range: %d", cfg.Argon2.Parallelism)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("CAMPUS_PASSWORD_ALGORITHM", "BCRYPT")
	t.Setenv("CAMPUS_PASSWORD_MIN_LEN", "10")
	t.Setenv("CAMPUS_PASSWORD_MAX_LEN", "200")
	t.Setenv("CAMPUS_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("CAMPUS_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("CAMPUS_ARGON2_ITERATIONS", "4")
	t.Setenv("CAMPUS_ARGON2_PARALLELISM", "2")
	t.Setenv("CAMPUS_ARGON2_SALT_LEN", "24")
	t.Setenv("CAMPUS_ARGON2_KEY_LEN", "32")
	t.Setenv("CAMPUS_BCRYPT_COST", "11")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Algorithm != AlgorithmBcrypt {
		t.Fatalf("algorithm override failed: %q", cfg.Algorithm)
	}
	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Argon2.MemoryKiB != 32768 || cfg.Argon2.Iterations != 4 || cfg.Argon2.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Argon2)
	}
	if cfg.Argon2.SaltLength != 24 || cfg.Argon2.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Argon2)
	}
	if cfg.BcryptCost != 11 {
		t.Fatalf("bcrypt cost override failed: %d", cfg.BcryptCost)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"CAMPUS_PASSWORD_ALGORITHM":        "scrypt",
		"CAMPUS_PASSWORD_MIN_LEN":          "0",
		"CAMPUS_PASSWORD_REJECT_VERY_WEAK": "maybe",
		"CAMPUS_ARGON2_MEMORY_KIB":         "1024",
		"CAMPUS_ARGON2_PARALLELISM":        "256",
		"CAMPUS_BCRYPT_COST":               "40",
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", k, v)
			}
		})
	}
}

func TestFromEnv_MinAboveMax(t *testing.T) {
	t.Setenv("CAMPUS_PASSWORD_MIN_LEN", "50")
	t.Setenv("CAMPUS_PASSWORD_MAX_LEN", "20")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
