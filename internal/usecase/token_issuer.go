package usecase

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/security"
)

// TokenSettings configures token lifetimes and the refresh token cap.
type TokenSettings struct {
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	RememberMeMultiplier int
	MaxRefreshPerUser    int
}

func (s TokenSettings) withDefaults() TokenSettings {
	if s.AccessTTL <= 0 {
		s.AccessTTL = 15 * time.Minute
	}
	if s.RefreshTTL <= 0 {
		s.RefreshTTL = 7 * 24 * time.Hour
	}
	if s.RememberMeMultiplier < 1 {
		s.RememberMeMultiplier = 1
	}
	return s
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken   string
	AccessClaims  *domain.TokenClaims
	RefreshToken  string
	RefreshClaims *domain.TokenClaims
}

// ExpiresIn returns the access token lifetime in whole seconds.
func (p *TokenPair) ExpiresIn() int64 {
	if p == nil || p.AccessClaims == nil {
		return 0
	}
	return int64(p.AccessClaims.ExpiresAt.Sub(p.AccessClaims.IssuedAt) / time.Second)
}

// TokenIssuer mints access tokens and persisted refresh tokens.
type TokenIssuer struct {
	codec    port.TokenCodec
	refresh  port.RefreshTokenRepository
	settings TokenSettings
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(codec port.TokenCodec, refresh port.RefreshTokenRepository, settings TokenSettings, log *zap.Logger) *TokenIssuer {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenIssuer{
		codec:    codec,
		refresh:  refresh,
		settings: settings.withDefaults(),
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for record timestamps.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		i.now = now
	}
	return i
}

// AccessTTL returns the access token lifetime for the given remember-me choice.
func (i *TokenIssuer) AccessTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return i.settings.AccessTTL * time.Duration(i.settings.RememberMeMultiplier)
	}
	return i.settings.AccessTTL
}

// IssueAccessToken signs an ACCESS token for principal. Access tokens are never stored.
func (i *TokenIssuer) IssueAccessToken(principal domain.Principal, rememberMe bool) (string, *domain.TokenClaims, error) {
	token, claims, err := i.codec.Issue(principal, domain.TokenTypeAccess, i.AccessTTL(rememberMe))
	if err != nil {
		return "", nil, fmt.Errorf("issue access token: %w", err)
	}
	return token, claims, nil
}

// IssueRefreshToken signs a REFRESH token and stores its hash, evicting the user's
// oldest records beyond the configured cap.
func (i *TokenIssuer) IssueRefreshToken(ctx context.Context, principal domain.Principal) (string, *domain.TokenClaims, error) {
	token, claims, record, err := i.mintRefreshToken(principal)
	if err != nil {
		return "", nil, err
	}

	if err := i.refresh.Create(ctx, record, i.settings.MaxRefreshPerUser); err != nil {
		return "", nil, fmt.Errorf("store refresh token: %w", err)
	}
	return token, claims, nil
}

// IssuePair issues an access token and a refresh token for principal.
func (i *TokenIssuer) IssuePair(ctx context.Context, principal domain.Principal, rememberMe bool) (*TokenPair, error) {
	access, accessClaims, err := i.IssueAccessToken(principal, rememberMe)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := i.IssueRefreshToken(ctx, principal)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:   access,
		AccessClaims:  accessClaims,
		RefreshToken:  refresh,
		RefreshClaims: refreshClaims,
	}, nil
}

func (i *TokenIssuer) mintRefreshToken(principal domain.Principal) (string, *domain.TokenClaims, domain.RefreshTokenRecord, error) {
	token, claims, err := i.codec.Issue(principal, domain.TokenTypeRefresh, i.settings.RefreshTTL)
	if err != nil {
		return "", nil, domain.RefreshTokenRecord{}, fmt.Errorf("issue refresh token: %w", err)
	}

	record := domain.RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    principal.ID,
		TokenHash: security.HashToken(token),
		ExpiresAt: claims.ExpiresAt,
		CreatedAt: i.now().UTC(),
	}
	return token, claims, record, nil
}
