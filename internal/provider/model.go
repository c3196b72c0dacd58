package provider

import (
	"time"

	"github.com/google/uuid"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

func (v VerificationStatus) Valid() bool {
	switch v {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// RoleProvider is the only role tokens are issued for.
const RoleProvider = "PROVIDER"

type ClinicAddress struct {
	Street string
	City   string
	State  string
	Zip    string
}

type Provider struct {
	ID                 uuid.UUID
	FirstName          string
	LastName           string
	Email              string
	PhoneNumber        string
	PasswordHash       string
	Specialization     string
	LicenseNumber      string
	YearsOfExperience  int
	ClinicAddress      ClinicAddress
	VerificationStatus VerificationStatus
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p *Provider) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Registration is a validated sign-up request.
type Registration struct {
	FirstName         string
	LastName          string
	Email             string
	PhoneNumber       string
	Password          string
	ConfirmPassword   string
	Specialization    string
	LicenseNumber     string
	YearsOfExperience int
	ClinicAddress     ClinicAddress

	// Status overrides the PENDING default. Only seeding sets it.
	Status VerificationStatus
}
