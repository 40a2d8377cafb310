// Package password hashes and verifies campus credentials.
//
// A credential input is the concatenation of the account name, the secret
// and the server-wide pepper. Two strategies exist:
//
//   - Argon2id, encoded as $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<key>
//   - bcrypt (cost 12 by default) over a SHA-256 digest of the input, encoded
//     as the standard $2a$/$2b$ string
//
// The hashing strategy is chosen once at startup by New, which runs a
// capability self-test against the configured Argon2id parameters and falls
// back to bcrypt when the self-test fails. Verification always dispatches on the
// prefix of the stored hash, so hashes produced by either strategy remain
// verifiable regardless of which one is currently selected.
//
// Hash strings are untrusted input during Verify. Malformed hashes and
// parameters outside sane bounds verify as false.
package password
