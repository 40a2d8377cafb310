package identity

import (
	"context"
	"strings"
	"time"
)

// Identity is a campus principal.
type Identity struct {
	ID         string
	Name       string
	Email      string
	RollNumber *string
	Role       Role

	// PasswordHash is the self-describing credential hash. Never log it.
	PasswordHash string

	CreatedAt time.Time
}

// CreateIdentityInput describes a new principal. PasswordHash must already be
// computed by the caller.
type CreateIdentityInput struct {
	Name         string
	Email        string
	RollNumber   *string
	Role         Role
	PasswordHash string
	Now          time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	CreateIdentity(ctx context.Context, in CreateIdentityInput) (Identity, error)
	GetByID(ctx context.Context, id string) (Identity, error)
	GetByEmail(ctx context.Context, email string) (Identity, error)
	GetByRollNumber(ctx context.Context, rollNumber string) (Identity, error)

	// List returns identities ordered by creation. An empty role lists all.
	List(ctx context.Context, role Role) ([]Identity, error)
}

// prepareCreate validates and normalizes in. Both stores share it.
func prepareCreate(op string, in CreateIdentityInput) (CreateIdentityInput, error) {
	out := in
	out.Name = NormalizeName(in.Name)
	out.Email = NormalizeEmail(in.Email)

	if out.Name == "" {
		return CreateIdentityInput{}, invalid(op, "name is required")
	}
	if out.Email == "" || !strings.Contains(out.Email, "@") {
		return CreateIdentityInput{}, invalid(op, "valid email is required")
	}
	if !out.Role.Valid() {
		return CreateIdentityInput{}, invalid(op, "invalid role")
	}
	if strings.TrimSpace(out.PasswordHash) == "" {
		return CreateIdentityInput{}, invalid(op, "password hash is required")
	}

	var roll string
	if in.RollNumber != nil {
		roll = NormalizeRollNumber(*in.RollNumber)
	}
	switch {
	case out.Role == RoleStudent && roll == "":
		return CreateIdentityInput{}, invalid(op, "roll_number is required for students")
	case out.Role != RoleStudent && roll != "":
		return CreateIdentityInput{}, invalid(op, "roll_number is only valid for students")
	case roll != "":
		out.RollNumber = &roll
	default:
		out.RollNumber = nil
	}

	if out.Now.IsZero() {
		out.Now = time.Now().UTC()
	}
	return out, nil
}
