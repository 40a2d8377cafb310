package password

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt is the fallback strategy.
//
// bcrypt ignores input beyond 72 bytes, and name+secret+pepper can exceed
// that. The input is reduced to a base64 SHA-256 digest (44 bytes) first.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt strategy. A cost outside bcrypt's range uses
// DefaultBcryptCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Algorithm() Algorithm { return AlgorithmBcrypt }

func (b *Bcrypt) Hash(input []byte) (string, error) {
	if len(input) == 0 {
		return "", ErrEmptyInput
	}

	h, err := bcrypt.GenerateFromPassword(prehash(input), b.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashFailed, err)
	}
	return string(h), nil
}

func (b *Bcrypt) Verify(input []byte, encoded string) bool {
	if !isBcryptHash(encoded) {
		return false
	}

	// Stored cost far above both ours and the default is treated as hostile.
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil || cost > max(b.cost, DefaultBcryptCost)+4 {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(encoded), prehash(input)) == nil
}

func prehash(input []byte) []byte {
	sum := sha256.Sum256(input)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

func isBcryptHash(encoded string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, p) {
			return true
		}
	}
	return false
}
