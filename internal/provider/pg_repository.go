package provider

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/health-first-scheduling/internal/db"
)

const providerColumns = `
	id, first_name, last_name, email, phone_number, password_hash, specialization,
	license_number, years_of_experience, clinic_street, clinic_city, clinic_state, clinic_zip,
	verification_status, is_active, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.PhoneNumber,
		&p.PasswordHash,
		&p.Specialization,
		&p.LicenseNumber,
		&p.YearsOfExperience,
		&p.ClinicAddress.Street,
		&p.ClinicAddress.City,
		&p.ClinicAddress.State,
		&p.ClinicAddress.Zip,
		&p.VerificationStatus,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

// mapUniqueErr reports a lost duplicate-check race with the same error the
// pre-insert check would have returned.
func mapUniqueErr(err error) error {
	name, ok := db.UniqueViolation(err)
	if !ok {
		return err
	}
	switch name {
	case "providers_email_key":
		return ErrEmailTaken
	case "providers_phone_key":
		return ErrPhoneTaken
	case "providers_license_key":
		return ErrLicenseTaken
	}
	return err
}

func (r *PgRepository) Create(ctx context.Context, p *Provider) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO providers (
			id, first_name, last_name, email, phone_number, password_hash, specialization,
			license_number, years_of_experience, clinic_street, clinic_city, clinic_state, clinic_zip,
			verification_status, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		RETURNING created_at, updated_at
	`,
		p.ID, p.FirstName, p.LastName, p.Email, p.PhoneNumber, p.PasswordHash, p.Specialization,
		p.LicenseNumber, p.YearsOfExperience, p.ClinicAddress.Street, p.ClinicAddress.City,
		p.ClinicAddress.State, p.ClinicAddress.Zip, string(p.VerificationStatus), p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapUniqueErr(err)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+providerColumns+`
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (*Provider, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+providerColumns+`
		FROM providers
		WHERE email = $1
	`, email)
	return scanProvider(row)
}

func (r *PgRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, arg).Scan(&exists)
	return exists, err
}

func (r *PgRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE email = $1)`, email)
}

func (r *PgRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE phone_number = $1)`, phone)
}

func (r *PgRepository) LicenseExists(ctx context.Context, license string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE license_number = $1)`, license)
}

func (r *PgRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE providers
		SET is_active = FALSE,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (r *PgRepository) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1 AND is_active = TRUE)`, id)
}
