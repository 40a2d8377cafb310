package identity

import (
	"context"
	"fmt"
	"strings"

	"campus/cmd/internal/pgutil"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pool is owned by the caller; this store never closes it. Identities
// live in <schema>.users and credential hashes in <schema>.credentials,
// written in one transaction.
type PostgresStore struct {
	db     pgutil.DB
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "campus").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgutil.ValidIdent(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db pgutil.DB, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		db:     db,
		schema: pgutil.DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) CreateIdentity(ctx context.Context, in CreateIdentityInput) (Identity, error) {
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

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Identity{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("users")+` (id, name, email, roll_number, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, in.Name, in.Email, in.RollNumber, string(in.Role), in.Now,
	)
	if err != nil {
		if c, ok := pgutil.UniqueViolation(err); ok {
			return Identity{}, ConflictError{Op: op, Field: conflictField(c)}
		}
		return Identity{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("credentials")+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		id, in.PasswordHash, in.Now,
	)
	if err != nil {
		return Identity{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Identity{}, err
	}

	return Identity{
		ID:           id,
		Name:         in.Name,
		Email:        in.Email,
		RollNumber:   in.RollNumber,
		Role:         in.Role,
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.Now,
	}, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Identity, error) {
	return s.getOne(ctx, "identity.GetByID", "u.id", strings.TrimSpace(id))
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (Identity, error) {
	return s.getOne(ctx, "identity.GetByEmail", "u.email", NormalizeEmail(email))
}

func (s *PostgresStore) GetByRollNumber(ctx context.Context, rollNumber string) (Identity, error) {
	return s.getOne(ctx, "identity.GetByRollNumber", "u.roll_number", NormalizeRollNumber(rollNumber))
}

func (s *PostgresStore) List(ctx context.Context, role Role) ([]Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, invalid("identity.List", "invalid role")
	}

	rows, err := s.db.Query(ctx,
		s.selectSQL()+` WHERE ($1 = '' OR u.role = $1) ORDER BY u.created_at, u.id`,
		string(role),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Identity, 0, 16)
	for rows.Next() {
		it, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) getOne(ctx context.Context, op, column, key string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	if key == "" {
		return Identity{}, NotFoundError{Op: op, Resource: "identity"}
	}

	it, err := scanIdentity(s.db.QueryRow(ctx, s.selectSQL()+` WHERE `+column+` = $1`, key))
	if err != nil {
		if pgutil.IsNoRows(err) {
			return Identity{}, NotFoundError{Op: op, Resource: "identity"}
		}
		return Identity{}, err
	}
	return it, nil
}

func (s *PostgresStore) selectSQL() string {
	return `SELECT u.id, u.name, u.email, u.roll_number, u.role, c.password_hash, u.created_at
	          FROM ` + s.table("users") + ` u
	          JOIN ` + s.table("credentials") + ` c ON c.user_id = u.id`
}

func (s *PostgresStore) table(name string) string { return pgutil.Ident(s.schema, name) }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(r rowScanner) (Identity, error) {
	var (
		out  Identity
		role string
	)
	if err := r.Scan(&out.ID, &out.Name, &out.Email, &out.RollNumber, &role, &out.PasswordHash, &out.CreatedAt); err != nil {
		return Identity{}, err
	}
	out.Role = Role(role)
	return out, nil
}

// conflictField maps constraint names to logical fields.
func conflictField(constraint string) string {
	switch {
	case strings.Contains(constraint, "roll"):
		return "roll_number"
	case strings.Contains(constraint, "email"):
		return "email"
	default:
		return "unique"
	}
}
