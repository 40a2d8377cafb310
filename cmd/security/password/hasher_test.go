package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig(alg Algorithm) Config {
	cfg := DefaultConfig()
	cfg.Algorithm = alg
	cfg.Argon2 = Argon2idParams{
		MemoryKiB:   64,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

func failingSelfTest(Argon2idParams) error { return ErrAlgorithmUnavailable }

func mustSelector(t *testing.T, cfg Config, selfTest SelfTest) *Selector {
	t.Helper()
	s, err := New(cfg, selfTest)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSelector_RoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		cfg      Config
		selfTest SelfTest
		want     Algorithm
		pfx      string
	}{
		{"auto prefers argon2id", testConfig(AlgorithmAuto), nil, AlgorithmArgon2id, "$argon2id$v=19$"},
		{"auto falls back to bcrypt", testConfig(AlgorithmAuto), failingSelfTest, AlgorithmBcrypt, "$2a$"},
		{"forced bcrypt", testConfig(AlgorithmBcrypt), nil, AlgorithmBcrypt, "$2a$"},
		{"forced argon2id", testConfig(AlgorithmArgon2id), nil, AlgorithmArgon2id, "$argon2id$"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := mustSelector(t, tc.cfg, tc.selfTest)
			if s.Algorithm() != tc.want {
				t.Fatalf("algorithm = %q, want %q", s.Algorithm(), tc.want)
			}

			input := []byte("alicecorrecthorsebatterypepper")
			h, err := s.Hash(input)
			if err != nil {
				t.Fatalf("Hash: %v", err)
			}
			if !strings.HasPrefix(h, tc.pfx) {
				t.Fatalf("hash %q lacks prefix %q", h, tc.pfx)
			}
			if !s.Verify(input, h) {
				t.Fatalf("expected match")
			}
			if s.Verify([]byte("alicewrongpasswordpepper"), h) {
				t.Fatalf("expected mismatch")
			}
		})
	}
}

func TestSelector_SaltedHashesDiffer(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmArgon2id, AlgorithmBcrypt} {
		s := mustSelector(t, testConfig(alg), nil)
		input := []byte("same input")

		h1, err := s.Hash(input)
		if err != nil {
			t.Fatalf("%s: Hash: %v", alg, err)
		}
		h2, err := s.Hash(input)
		if err != nil {
			t.Fatalf("%s: Hash: %v", alg, err)
		}

		if h1 == h2 {
			t.Fatalf("%s: expected distinct hashes", alg)
		}
		if !s.Verify(input, h1) || !s.Verify(input, h2) {
			t.Fatalf("%s: both hashes must verify", alg)
		}
	}
}

func TestSelector_VerifiesEitherPrefix(t *testing.T) {
	argon := mustSelector(t, testConfig(AlgorithmArgon2id), nil)
	fallback := mustSelector(t, testConfig(AlgorithmBcrypt), nil)
	input := []byte("bobhunter2pepper")

	ha, err := argon.Hash(input)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	hb, err := fallback.Hash(input)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if !fallback.Verify(input, ha) {
		t.Fatalf("bcrypt-selected verifier must accept argon2id hash")
	}
	if !argon.Verify(input, hb) {
		t.Fatalf("argon2id-selected verifier must accept bcrypt hash")
	}
}

func TestBcrypt_LongInput(t *testing.T) {
	b := NewBcrypt(bcrypt.MinCost)
	long := []byte(strings.Repeat("a", 100))
	h, err := b.Hash(long)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	// Differs only after byte 72; bcrypt alone would accept it.
	other := []byte(strings.Repeat("a", 99) + "b")
	if b.Verify(other, h) {
		t.Fatalf("expected mismatch past 72 bytes")
	}
	if !b.Verify(long, h) {
		t.Fatalf("expected match")
	}
}

func TestSelector_MalformedHashes(t *testing.T) {
	s := mustSelector(t, testConfig(AlgorithmAuto), nil)
	input := []byte("whatever")

	valid, err := s.Hash(input)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	parts := strings.Split(valid, "$")

	cases := []string{
		"",
		"not-a-hash",
		"$argon2id$",
		"$argon2id$v=18$m=64,t=1,p=1$" + parts[4] + "$" + parts[5],
		"$argon2id$v=19$m=0,t=1,p=1$" + parts[4] + "$" + parts[5],
		"$argon2id$v=19$m=64,t=1,p=1$!!!$" + parts[5],
		// Cost far above configured params.
		"$argon2id$v=19$m=4194304,t=1,p=1$" + parts[4] + "$" + parts[5],
		"$argon2id$v=19$m=64,t=100,p=1$" + parts[4] + "$" + parts[5],
		"$2a$31$abcdefghijklmnopqrstuvABCDEFGHIJKLMNOPQRSTUVWXYZ01234",
		"$2b$",
		"$1$md5crypt",
	}

	for _, enc := range cases {
		if s.Verify(input, enc) {
			t.Fatalf("expected false for %q", enc)
		}
	}
}

func TestSelector_EmptyInput(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmArgon2id, AlgorithmBcrypt} {
		s := mustSelector(t, testConfig(alg), nil)
		h, err := s.Hash(nil)
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("%s: expected ErrEmptyInput, got %v", alg, err)
		}
		if h != "" {
			t.Fatalf("%s: expected empty hash on error", alg)
		}
	}
}

type panicHasher struct{}

func (panicHasher) Algorithm() Algorithm                 { return "panic" }
func (panicHasher) Hash([]byte) (string, error)          { panic("boom") }
func (panicHasher) Verify(input []byte, enc string) bool { panic("boom") }

func TestSelector_HashPanicBecomesError(t *testing.T) {
	s := mustSelector(t, testConfig(AlgorithmBcrypt), nil)
	s.active = panicHasher{}

	h, err := s.Hash([]byte("x"))
	if !errors.Is(err, ErrHashFailed) {
		t.Fatalf("expected ErrHashFailed, got %v", err)
	}
	if h != "" {
		t.Fatalf("expected empty hash")
	}
}

func TestNew_ForcedArgon2idSelfTestFailure(t *testing.T) {
	_, err := New(testConfig(AlgorithmArgon2id), failingSelfTest)
	if !errors.Is(err, ErrAlgorithmUnavailable) {
		t.Fatalf("expected ErrAlgorithmUnavailable, got %v", err)
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	if _, err := New(testConfig("scrypt"), nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDefaultSelfTest(t *testing.T) {
	if err := DefaultSelfTest(DefaultConfig().Argon2); err != nil {
		t.Fatalf("DefaultSelfTest: %v", err)
	}
	if err := DefaultSelfTest(Argon2idParams{}); !errors.Is(err, ErrAlgorithmUnavailable) {
		t.Fatalf("expected ErrAlgorithmUnavailable, got %v", err)
	}
}

func TestVerify_SurvivesLoweredCost(t *testing.T) {
	input := []byte("alicecorrecthorsebatterypepper")

	bh, err := NewBcrypt(10).Hash(input)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !NewBcrypt(bcrypt.MinCost).Verify(input, bh) {
		t.Fatalf("bcrypt cost lowered 10->%d: stored hash must still verify", bcrypt.MinCost)
	}

	stronger := Argon2idParams{MemoryKiB: 8 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	ah, err := NewArgon2id(stronger).Hash(input)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	weaker := testConfig(AlgorithmArgon2id).Argon2
	if !NewArgon2id(weaker).Verify(input, ah) {
		t.Fatalf("argon2id params lowered: stored hash must still verify")
	}

	// The ceiling still holds regardless of configuration.
	if withinReasonableBounds(Argon2idParams{MemoryKiB: 4 << 20, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}, weaker) {
		t.Fatalf("expected 4 GiB memory cost to be rejected")
	}
	if withinReasonableBounds(Argon2idParams{MemoryKiB: 64, Iterations: 100, Parallelism: 1, SaltLength: 16, KeyLength: 32}, weaker) {
		t.Fatalf("expected 100 iterations to be rejected")
	}
}
