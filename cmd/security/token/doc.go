// Package token issues and parses campus session tokens.
//
// Tokens are HS256 JWTs. The subject carries the identity id and a private
// "role" claim carries the role tag. Expiry is always present; a token
// without exp is rejected. There is no server-side state: validity is decided
// by signature and expiry alone.
package token
