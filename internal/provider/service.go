package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
	hash func(string) (string, error)
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "provider").Logger(),
		hash: HashPassword,
	}
}

// Register creates a provider in PENDING verification. Email, phone and
// license number must each be unused.
func (s *Service) Register(ctx context.Context, reg Registration) (*Provider, error) {
	if reg.Password != reg.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	email := normalizeEmail(reg.Email)
	phone := strings.TrimSpace(reg.PhoneNumber)
	license := strings.TrimSpace(reg.LicenseNumber)

	if taken, err := s.repo.EmailExists(ctx, email); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if taken {
		return nil, ErrEmailTaken
	}
	if taken, err := s.repo.PhoneExists(ctx, phone); err != nil {
		return nil, fmt.Errorf("check phone: %w", err)
	} else if taken {
		return nil, ErrPhoneTaken
	}
	if taken, err := s.repo.LicenseExists(ctx, license); err != nil {
		return nil, fmt.Errorf("check license: %w", err)
	} else if taken {
		return nil, ErrLicenseTaken
	}

	hash, err := s.hash(reg.Password)
	if err != nil {
		return nil, err
	}

	status := VerificationPending
	if reg.Status.Valid() {
		status = reg.Status
	}

	p := &Provider{
		ID:                 uuid.New(),
		FirstName:          strings.TrimSpace(reg.FirstName),
		LastName:           strings.TrimSpace(reg.LastName),
		Email:              email,
		PhoneNumber:        phone,
		PasswordHash:       hash,
		Specialization:     strings.TrimSpace(reg.Specialization),
		LicenseNumber:      license,
		YearsOfExperience:  reg.YearsOfExperience,
		ClinicAddress:      reg.ClinicAddress,
		VerificationStatus: status,
		IsActive:           true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("provider_id", p.ID.String()).
		Str("specialization", p.Specialization).
		Msg("provider registered")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*Provider, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

// IsActive reports whether id names an existing, active provider.
func (s *Service) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.IsActive(ctx, id)
}

// Deactivate soft-deletes a provider. Their windows stay but drop out of search.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return ErrAlreadyInactive
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate provider: %w", err)
	}
	s.log.Info().Str("provider_id", id.String()).Msg("provider deactivated")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
