package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
)

var (
	// ErrMalformedToken covers unparsable tokens, bad signatures, foreign issuers and missing claims.
	ErrMalformedToken = errors.New("token: malformed")
	// ErrExpiredToken indicates the token's exp is not after the current time.
	ErrExpiredToken = errors.New("token: expired")
	// ErrUnsupportedTokenFormat indicates a non-HMAC algorithm or an unknown token type.
	ErrUnsupportedTokenFormat = errors.New("token: unsupported format")
)

var errUnexpectedAlgorithm = errors.New("unexpected signing algorithm")

// wireClaims is the JSON layout of the signed payload.
type wireClaims struct {
	Role   string `json:"role"`
	Type   string `json:"typ"`
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 tokens with a server-held secret.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenCodec constructs a codec. The secret must be non-empty and the issuer set.
func NewTokenCodec(secret, issuer string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("jwt: signing secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("jwt: issuer is required")
	}

	return &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock overrides the clock used for iat/exp and for expiry checks.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// Issue signs a fresh token for principal. Every call carries a new random jti.
func (c *TokenCodec) Issue(principal domain.Principal, tokenType domain.TokenType, ttl time.Duration) (string, *domain.TokenClaims, error) {
	if ttl <= 0 {
		return "", nil, fmt.Errorf("jwt: ttl must be positive")
	}
	if _, ok := domain.ParseTokenType(string(tokenType)); !ok {
		return "", nil, fmt.Errorf("jwt: unknown token type %q", tokenType)
	}
	if principal.ID == "" || principal.Username == "" {
		return "", nil, fmt.Errorf("jwt: principal id and username are required")
	}

	// NumericDate has second precision; truncating keeps the returned claims equal to what Parse yields.
	issuedAt := c.now().UTC().Truncate(time.Second)
	claims := domain.TokenClaims{
		ID:        uuid.NewString(),
		Subject:   principal.Username,
		Role:      principal.Role,
		Type:      tokenType,
		UserID:    principal.ID,
		Email:     principal.Email,
		Issuer:    c.issuer,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wireClaims{
		Role:   string(claims.Role),
		Type:   string(claims.Type),
		UserID: claims.UserID,
		Email:  claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.ID,
			Subject:   claims.Subject,
			Issuer:    claims.Issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, &claims, nil
}

// Parse verifies signature, issuer and expiry, then decodes the claims.
func (c *TokenCodec) Parse(tokenString string) (*domain.TokenClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMalformedToken
	}

	parser := jwt.NewParser(
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)

	var wire wireClaims
	_, err := parser.ParseWithClaims(tokenString, &wire, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", errUnexpectedAlgorithm, t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, errUnexpectedAlgorithm):
			return nil, ErrUnsupportedTokenFormat
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		default:
			return nil, ErrMalformedToken
		}
	}

	tokenType, ok := domain.ParseTokenType(wire.Type)
	if !ok {
		return nil, ErrUnsupportedTokenFormat
	}
	role, ok := domain.ParseRole(wire.Role)
	if !ok {
		return nil, ErrMalformedToken
	}
	if wire.Subject == "" || wire.UserID == "" || wire.ID == "" || wire.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}

	claims := &domain.TokenClaims{
		ID:        wire.ID,
		Subject:   wire.Subject,
		Role:      role,
		Type:      tokenType,
		UserID:    wire.UserID,
		Email:     wire.Email,
		Issuer:    wire.Issuer,
		ExpiresAt: wire.ExpiresAt.Time.UTC(),
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time.UTC()
	}

	return claims, nil
}

var _ port.TokenCodec = (*TokenCodec)(nil)
