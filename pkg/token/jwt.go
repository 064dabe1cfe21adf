// Package token issues and verifies the bearer tokens the portal API hands
// out after login.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"eduportal/pkg/domain"
)

const (
	defaultIssuer   = "eduportal"
	defaultAudience = "eduportal-portal"
	defaultTTL      = 12 * time.Hour
	defaultLeeway   = 30 * time.Second
	minSecretLength = 32
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked")
)

// Options tunes claim validation. Zero values use defaults.
type Options struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
	Now      func() time.Time
}

type claims struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs HS256 tokens carrying the authenticated principal.
type Manager struct {
	secret   []byte
	revoker  Revoker
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
	now      func() time.Time
}

// NewManager builds a Manager. revoker may be nil, in which case Revoke is a
// no-op and tokens stay valid until they expire.
func NewManager(secret string, revoker Revoker, opts Options) (*Manager, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	if strings.TrimSpace(opts.Issuer) == "" {
		opts.Issuer = defaultIssuer
	}
	if strings.TrimSpace(opts.Audience) == "" {
		opts.Audience = defaultAudience
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultLeeway
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		secret:   []byte(secret),
		revoker:  revoker,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
		leeway:   opts.Leeway,
		now:      opts.Now,
	}, nil
}

// Issue signs a token for user.
func (m *Manager) Issue(user domain.User) (string, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", errors.New("token subject required")
	}
	now := m.now().UTC()
	c := claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// Verify checks the signature, claims and revocation state, returning the
// principal embedded in the token. LastLogin is never populated.
func (m *Manager) Verify(ctx context.Context, raw string) (domain.User, error) {
	c, err := m.parse(raw)
	if err != nil {
		return domain.User{}, err
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(ctx, c.ID)
		if err != nil {
			return domain.User{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return domain.User{}, ErrRevoked
		}
	}
	return domain.User{ID: c.Subject, Username: c.Username, Role: c.Role}, nil
}

// Revoke invalidates raw until it can no longer pass parse, that is expiry
// plus leeway. Tokens that fail to parse are ignored.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	if m.revoker == nil {
		return nil
	}
	c, err := m.parse(raw)
	if err != nil || c.ExpiresAt == nil {
		return nil
	}
	return m.revoker.Revoke(ctx, c.ID, c.ExpiresAt.Time.Add(m.leeway).Sub(m.now()))
}

func (m *Manager) parse(raw string) (claims, error) {
	var c claims
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return c, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return c, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.ID == "" || c.Subject == "" {
		return c, fmt.Errorf("%w: missing jti or subject", ErrInvalidToken)
	}
	switch c.Role {
	case domain.RoleAdmin, domain.RoleUser:
	default:
		return c, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return c, nil
}
