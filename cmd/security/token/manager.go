package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL is the session validity window.
	DefaultTTL = 15 * 24 * time.Hour

	// MinKeyBytes is the shortest accepted HS256 key.
	MinKeyBytes = 32

	// DefaultIssuer is written to iss and required on parse.
	DefaultIssuer = "campus"
)

// Claims is the JWT payload. Subject holds the identity id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Config configures a Manager.
type Config struct {
	Key    []byte
	TTL    time.Duration
	Issuer string

	// Now is the clock used for issuance and expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Manager signs and parses HS256 session tokens. Safe for concurrent use.
type Manager struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Key) == 0 {
		return nil, ErrKeyMissing
	}
	if len(cfg.Key) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)

	return &Manager{
		key:    key,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}, nil
}

// TTL reports the validity window of issued tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for subject with the given role. It returns the token
// and its expiry.
func (m *Manager) Issue(subject, role string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	role = strings.TrimSpace(role)
	if subject == "" || role == "" {
		return "", time.Time{}, ErrInvalidSubject
	}

	now := m.now().UTC()
	exp := now.Add(m.ttl)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
	})

	s, err := t.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// Parse verifies signature, issuer and expiry in one step. Every failure is
// reported as ErrInvalidToken.
func (m *Manager) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	t, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !t.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Role) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
