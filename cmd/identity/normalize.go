package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeRollNumber upper-cases roll numbers; "21cs001" and "21CS001" are the same student.
func NormalizeRollNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeName collapses inner whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
