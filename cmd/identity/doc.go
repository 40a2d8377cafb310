// Package identity owns campus principals: students, faculty and admins.
//
// It stores the display name, login handles (email, and roll number for
// students), the role tag and the credential hash. It never sees plaintext
// secrets; hashing happens in the auth layer before CreateIdentity.
package identity
