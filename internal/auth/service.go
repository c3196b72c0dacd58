package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/provider"
)

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid credentials")
	ErrAccountInactive    = apperr.Unauthorized("account is deactivated")
	ErrAccountUnverified  = apperr.Unauthorized("account is not verified")
	ErrTokenRejected      = apperr.Unauthorized("invalid or expired token")
)

// ProviderLookup is the slice of the provider service login needs.
type ProviderLookup interface {
	GetByEmail(ctx context.Context, email string) (*provider.Provider, error)
}

// Revoker remembers logged-out token ids until they expire.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Provider  *provider.Provider
}

type Service struct {
	providers       ProviderLookup
	tokens          *TokenManager
	revoked         Revoker
	requireVerified bool
	log             zerolog.Logger
	compare         func(hash, password string) (bool, error)
}

func NewService(providers ProviderLookup, tokens *TokenManager, revoked Revoker, requireVerified bool, log zerolog.Logger) *Service {
	return &Service{
		providers:       providers,
		tokens:          tokens,
		revoked:         revoked,
		requireVerified: requireVerified,
		log:             log.With().Str("component", "auth").Logger(),
		compare:         provider.ComparePassword,
	}
}

// Login checks credentials and issues an access token. Unknown email and wrong
// password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	p, err := s.providers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	ok, err := s.compare(p.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		s.log.Warn().Str("provider_id", p.ID.String()).Msg("login failed: bad password")
		return nil, ErrInvalidCredentials
	}
	if !p.IsActive {
		return nil, ErrAccountInactive
	}
	if s.requireVerified && p.VerificationStatus != provider.VerificationVerified {
		return nil, ErrAccountUnverified
	}

	token, claims, err := s.tokens.Issue(p)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("provider_id", p.ID.String()).Msg("provider logged in")
	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, Provider: p}, nil
}

// Authenticate validates a raw bearer token and rejects revoked ones.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, ErrTokenRejected
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRejected
	}
	return claims, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if err := s.revoked.Revoke(ctx, claims.ID, s.tokens.Remaining(claims)); err != nil {
		return err
	}
	s.log.Info().Str("provider_id", claims.Subject).Msg("provider logged out")
	return nil
}
