package password

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher is one hashing strategy.
type Hasher interface {
	Algorithm() Algorithm
	Hash(input []byte) (string, error)
	Verify(input []byte, encoded string) bool
}

// SelfTest reports whether Argon2id can run with params in this process.
type SelfTest func(params Argon2idParams) error

// DefaultSelfTest derives a throwaway key with minimal cost. A panic inside the
// argon2 implementation is reported as ErrAlgorithmUnavailable.
func DefaultSelfTest(params Argon2idParams) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAlgorithmUnavailable, r)
		}
	}()

	if params.Parallelism == 0 || params.KeyLength == 0 {
		return fmt.Errorf("%w: invalid argon2id params", ErrAlgorithmUnavailable)
	}

	key := argon2.IDKey([]byte("self-test"), []byte("self-test-salt"), 1, 8, 1, params.KeyLength)
	if len(key) != int(params.KeyLength) {
		return ErrAlgorithmUnavailable
	}
	return nil
}

// Selector hashes with the strategy picked at startup and verifies with
// whichever strategy the stored hash names.
type Selector struct {
	active   Hasher
	argon2id *Argon2id
	bcrypt   *Bcrypt
}

// New runs the self-test once and picks the hashing strategy.
//
//   - AlgorithmAuto: Argon2id if the self-test passes, else bcrypt.
//   - AlgorithmArgon2id: Argon2id; a failing self-test is an error.
//   - AlgorithmBcrypt: bcrypt, the self-test is skipped.
func New(cfg Config, selfTest SelfTest) (*Selector, error) {
	if selfTest == nil {
		selfTest = DefaultSelfTest
	}

	s := &Selector{
		argon2id: NewArgon2id(cfg.Argon2),
		bcrypt:   NewBcrypt(cfg.BcryptCost),
	}

	switch cfg.Algorithm {
	case AlgorithmBcrypt:
		s.active = s.bcrypt
	case AlgorithmArgon2id:
		if err := selfTest(cfg.Argon2); err != nil {
			return nil, err
		}
		s.active = s.argon2id
	case AlgorithmAuto, "":
		if err := selfTest(cfg.Argon2); err != nil {
			s.active = s.bcrypt
		} else {
			s.active = s.argon2id
		}
	default:
		return nil, fmt.Errorf("unknown algorithm %q", cfg.Algorithm)
	}

	return s, nil
}

// Algorithm reports the strategy new hashes are produced with.
func (s *Selector) Algorithm() Algorithm { return s.active.Algorithm() }

// Hash never returns an empty hash with a nil error.
func (s *Selector) Hash(input []byte) (encoded string, err error) {
	defer func() {
		if r := recover(); r != nil {
			encoded, err = "", fmt.Errorf("%w: %v", ErrHashFailed, r)
		}
	}()

	encoded, err = s.active.Hash(input)
	if err != nil {
		return "", err
	}
	if encoded == "" {
		return "", ErrHashFailed
	}
	return encoded, nil
}

// Verify dispatches on the hash prefix. It never panics.
func (s *Selector) Verify(input []byte, encoded string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		return s.argon2id.Verify(input, encoded)
	case isBcryptHash(encoded):
		return s.bcrypt.Verify(input, encoded)
	default:
		return false
	}
}
