package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Version = 19 // argon2.Version is 0x13 (19)
	argon2Prefix  = "$argon2id$"
)

// Argon2id hashes with golang.org/x/crypto/argon2.
// Output format:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
type Argon2id struct {
	params Argon2idParams
}

// NewArgon2id returns an Argon2id strategy. Verification bounds derive from
// params and the package defaults, see withinReasonableBounds.
func NewArgon2id(params Argon2idParams) *Argon2id {
	return &Argon2id{params: params}
}

func (a *Argon2id) Algorithm() Algorithm { return AlgorithmArgon2id }

// Hash derives a fresh salted key for input.
func (a *Argon2id) Hash(input []byte) (string, error) {
	if len(input) == 0 {
		return "", ErrEmptyInput
	}

	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: salt: %v", ErrHashFailed, err)
	}

	key := argon2.IDKey(
		input,
		salt,
		a.params.Iterations,
		a.params.MemoryKiB,
		a.params.Parallelism,
		a.params.KeyLength,
	)
	if len(key) == 0 {
		return "", ErrHashFailed
	}

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		a.params.MemoryKiB,
		a.params.Iterations,
		a.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether input matches encoded. Malformed hashes and
// pathological parameters are rejected.
func (a *Argon2id) Verify(input []byte, encoded string) bool {
	params, salt, expected, err := decodeArgon2id(encoded)
	if err != nil {
		return false
	}

	// Refuse attacker-controlled hash strings with pathological cost.
	if !withinReasonableBounds(params, a.params) {
		return false
	}

	key := argon2.IDKey(
		input,
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		params.KeyLength,
	)

	return subtle.ConstantTimeCompare(key, expected) == 1
}

// withinReasonableBounds caps stored parameters at twice the larger of the
// configured and the default cost. Lowering the configured cost therefore
// never locks out hashes written under the defaults.
func withinReasonableBounds(got, configured Argon2idParams) bool {
	memory := max(uint64(configured.MemoryKiB), DefaultArgon2MemoryKiB)
	iterations := max(uint64(configured.Iterations), DefaultArgon2Iterations)
	threads := max(int(configured.Parallelism), maxArgon2Threads)

	if uint64(got.MemoryKiB) > memory*2 {
		return false
	}
	if uint64(got.Iterations) > iterations*2 {
		return false
	}
	if int(got.Parallelism) > threads*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

// decodeArgon2id parses the encoded hash and returns params, salt and key.
func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != string(AlgorithmArgon2id) {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) > 64 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) > 128 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),       // #nosec G115 -- checked <= 255 above.
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded above.
		KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded above.
	}, salt, key, nil
}
