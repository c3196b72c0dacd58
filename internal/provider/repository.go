package provider

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
)

var (
	ErrProviderNotFound = apperr.NotFound("provider not found")
	ErrEmailTaken       = apperr.Conflict("email is already registered")
	ErrPhoneTaken       = apperr.Conflict("phone number is already registered")
	ErrLicenseTaken     = apperr.Conflict("license number is already registered")
	ErrPasswordMismatch = apperr.Validation("password and confirm password do not match")
	ErrAlreadyInactive  = apperr.Conflict("provider is already deactivated")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetByEmail(ctx context.Context, email string) (*Provider, error)

	// Duplicate checks before insert; the unique constraints back them up
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	LicenseExists(ctx context.Context, license string) (bool, error)

	Deactivate(ctx context.Context, id uuid.UUID) error
	IsActive(ctx context.Context, id uuid.UUID) (bool, error)
}
