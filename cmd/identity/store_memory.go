package identity

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is the in-process Store used when no database is configured
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Identity
	byEmail map[string]string // email_norm -> id
	byRoll  map[string]string // roll_number_norm -> id
	order   []string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Identity),
		byEmail: make(map[string]string),
		byRoll:  make(map[string]string),
	}
}

func (s *MemoryStore) CreateIdentity(ctx context.Context, in CreateIdentityInput) (Identity, error) {
	const op = "identity.CreateIdentity"

	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	in, err := prepareCreate(op, in)
	if err != nil {
		return Identity{}, err
	}

	id, err := NewULID(in.Now)
	if err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[in.Email]; ok {
		return Identity{}, ConflictError{Op: op, Field: "email"}
	}
	if in.RollNumber != nil {
		if _, ok := s.byRoll[*in.RollNumber]; ok {
			return Identity{}, ConflictError{Op: op, Field: "roll_number"}
		}
	}

	out := Identity{
		ID:           id,
		Name:         in.Name,
		Email:        in.Email,
		RollNumber:   in.RollNumber,
		Role:         in.Role,
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.Now,
	}
	s.byID[id] = out
	s.byEmail[in.Email] = id
	if in.RollNumber != nil {
		s.byRoll[*in.RollNumber] = id
	}
	s.order = append(s.order, id)

	return out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Identity{}, NotFoundError{Op: "identity.GetByID", Resource: "identity"}
	}
	return out, nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (Identity, error) {
	return s.lookup(ctx, "identity.GetByEmail", s.byEmail, NormalizeEmail(email))
}

func (s *MemoryStore) GetByRollNumber(ctx context.Context, rollNumber string) (Identity, error) {
	return s.lookup(ctx, "identity.GetByRollNumber", s.byRoll, NormalizeRollNumber(rollNumber))
}

func (s *MemoryStore) lookup(ctx context.Context, op string, index map[string]string, key string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := index[key]
	if !ok || key == "" {
		return Identity{}, NotFoundError{Op: op, Resource: "identity"}
	}
	return s.byID[id], nil
}

func (s *MemoryStore) List(ctx context.Context, role Role) ([]Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, invalid("identity.List", "invalid role")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Identity, 0, len(s.order))
	for _, id := range s.order {
		it := s.byID[id]
		if role != "" && it.Role != role {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
