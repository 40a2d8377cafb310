package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a hashing strategy. The value doubles as the PHC identifier
// for Argon2id.
type Algorithm string

const (
	AlgorithmAuto     Algorithm = "auto"
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// DefaultBcryptCost is the fallback work factor.
const DefaultBcryptCost = 12

// Argon2id baseline. DefaultConfig clamps parallelism to maxArgon2Threads.
const (
	DefaultArgon2MemoryKiB  = 64 * 1024
	DefaultArgon2Iterations = 3
	maxArgon2Threads        = 4
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation at account creation.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, reject trivially guessable passwords.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	// Algorithm selects the hashing strategy. AlgorithmAuto prefers Argon2id
	// and falls back to bcrypt when the self-test fails.
	Algorithm  Algorithm
	Argon2     Argon2idParams
	BcryptCost int
	Policy     Policy
}

// DefaultConfig returns the production baseline.
func DefaultConfig() Config {
	// Clamp parallelism to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > maxArgon2Threads {
		threads = maxArgon2Threads
	}

	return Config{
		Algorithm: AlgorithmAuto,
		Argon2: Argon2idParams{
			MemoryKiB:   DefaultArgon2MemoryKiB,
			Iterations:  DefaultArgon2Iterations,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: DefaultBcryptCost,
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - CAMPUS_PASSWORD_ALGORITHM (auto|argon2id|bcrypt)
// - CAMPUS_PASSWORD_MIN_LEN
// - CAMPUS_PASSWORD_MAX_LEN
// - CAMPUS_PASSWORD_REJECT_VERY_WEAK (true/false)
// - CAMPUS_ARGON2_MEMORY_KIB
// - CAMPUS_ARGON2_ITERATIONS
// - CAMPUS_ARGON2_PARALLELISM
// - CAMPUS_ARGON2_SALT_LEN
// - CAMPUS_ARGON2_KEY_LEN
// - CAMPUS_BCRYPT_COST
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("CAMPUS_PASSWORD_ALGORITHM"); ok {
		a, err := ParseAlgorithm(v)
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_PASSWORD_ALGORITHM: %w", err)
		}
		cfg.Algorithm = a
	}

	if v, ok := os.LookupEnv("CAMPUS_PASSWORD_MIN_LEN"); ok {
		n, err := atoiRange(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("CAMPUS_PASSWORD_MAX_LEN"); ok {
		n, err := atoiRange(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("CAMPUS_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if v, ok := os.LookupEnv("CAMPUS_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Argon2.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("CAMPUS_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Argon2.Iterations = u
	}

	if v, ok := os.LookupEnv("CAMPUS_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, math.MaxUint8)
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Argon2.Parallelism = uint8(u) // #nosec G115 -- bounded by atou32 above.
	}

	if v, ok := os.LookupEnv("CAMPUS_ARGON2_SALT_LEN"); ok {
		u, err := atou32(v, 8, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_ARGON2_SALT_LEN: %w", err)
		}
		cfg.Argon2.SaltLength = u
	}

	if v, ok := os.LookupEnv("CAMPUS_ARGON2_KEY_LEN"); ok {
		u, err := atou32(v, 16, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_ARGON2_KEY_LEN: %w", err)
		}
		cfg.Argon2.KeyLength = u
	}

	if v, ok := os.LookupEnv("CAMPUS_BCRYPT_COST"); ok {
		n, err := atoiRange(v, bcrypt.MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("CAMPUS_BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = n
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

// ParseAlgorithm maps a configuration string onto an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlgorithmAuto:
		return AlgorithmAuto, nil
	case AlgorithmArgon2id:
		return AlgorithmArgon2id, nil
	case AlgorithmBcrypt:
		return AlgorithmBcrypt, nil
	default:
		return "", fmt.Errorf("unknown algorithm %q", s)
	}
}

func atoiRange(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
