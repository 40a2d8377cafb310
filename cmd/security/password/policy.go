package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var commonSecrets = map[string]struct{}{
	"password":    {},
	"password123": {},
	"123456":      {},
	"12345678":    {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"11111111":    {},
	"letmein":     {},
	"welcome1":    {},
	"campus123":   {},
}

// Validate checks a plaintext secret chosen for the account named name.
// Length is counted in runes. Existing hashes are never re-checked at login.
func (c Config) Validate(name, secret string) error {
	n := utf8.RuneCountInString(secret)
	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak && looksVeryWeak(name, secret) {
		return ErrWeakPassword
	}
	return nil
}

// looksVeryWeak catches only the obvious cases; it is not an entropy estimator.
func looksVeryWeak(name, secret string) bool {
	s := strings.ToLower(strings.TrimSpace(secret))
	if s == "" {
		return true
	}

	if _, ok := commonSecrets[s]; ok {
		return true
	}

	// The secret is the account name, possibly with a numeric suffix.
	if n := strings.ToLower(strings.TrimSpace(name)); n != "" {
		if strings.TrimRightFunc(s, unicode.IsDigit) == n {
			return true
		}
	}

	first, _ := utf8.DecodeRuneInString(s)
	allSame, onlyDigits := true, true
	for _, r := range s {
		if r != first {
			allSame = false
		}
		if !unicode.IsDigit(r) {
			onlyDigits = false
		}
	}
	if allSame {
		return true
	}
	// PIN-like.
	return onlyDigits && utf8.RuneCountInString(s) < 12
}
