package api

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/availability"
	"github.com/hackgods/health-first-scheduling/internal/provider"
)

const dateLayout = "2006-01-02"

const defaultSlotDuration = 30

var (
	phonePattern   = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	licensePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	zipPattern     = regexp.MustCompile(`^[0-9]{5}(-[0-9]{4})?$`)
	currencyCode   = regexp.MustCompile(`^[A-Z]{3}$`)
	passwordSymbol = "@$!%*?&"
)

// fieldErrors collects per-field validation failures.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.ValidationFields(f)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(s))
}

// Availability

type LocationRequest struct {
	Type       string `json:"type"`
	Address    string `json:"address"`
	RoomNumber string `json:"room_number"`
}

type PricingRequest struct {
	BaseFee           decimal.NullDecimal `json:"base_fee"`
	InsuranceAccepted bool                `json:"insurance_accepted"`
	Currency          string              `json:"currency"`
}

type AvailabilityRequest struct {
	Date                string           `json:"date"`
	StartTime           string           `json:"start_time"`
	EndTime             string           `json:"end_time"`
	Timezone            string           `json:"timezone"`
	SlotDuration        *int             `json:"slot_duration"`
	BreakDuration       int              `json:"break_duration"`
	IsRecurring         bool             `json:"is_recurring"`
	RecurrencePattern   string           `json:"recurrence_pattern"`
	RecurrenceEndDate   string           `json:"recurrence_end_date"`
	AppointmentType     string           `json:"appointment_type"`
	Location            *LocationRequest `json:"location"`
	Pricing             *PricingRequest  `json:"pricing"`
	Notes               string           `json:"notes"`
	SpecialRequirements []string         `json:"special_requirements"`
}

// Input validates the request and converts it. Updates may omit location.
func (req AvailabilityRequest) Input(requireLocation bool) (availability.WindowInput, error) {
	var in availability.WindowInput
	errs := fieldErrors{}

	if req.Date == "" {
		errs.add("date", "date is required")
	} else if d, err := parseDate(req.Date); err != nil {
		errs.add("date", "date must be in YYYY-MM-DD format")
	} else {
		in.Date = d
	}

	if t, err := availability.ParseTimeOfDay(req.StartTime); err != nil {
		errs.add("start_time", "start time must be in HH:mm format")
	} else {
		in.StartTime = t
	}
	if t, err := availability.ParseTimeOfDay(req.EndTime); err != nil {
		errs.add("end_time", "end time must be in HH:mm format")
	} else {
		in.EndTime = t
	}

	in.Timezone = strings.TrimSpace(req.Timezone)
	if in.Timezone == "" {
		errs.add("timezone", "timezone is required")
	} else if _, err := time.LoadLocation(in.Timezone); err != nil {
		errs.add("timezone", "timezone must be a valid IANA zone")
	}

	in.SlotDuration = defaultSlotDuration
	if req.SlotDuration != nil {
		in.SlotDuration = *req.SlotDuration
	}
	if in.SlotDuration < availability.MinSlotDuration || in.SlotDuration > availability.MaxSlotDuration {
		errs.add("slot_duration", "slot duration must be between 15 and 480 minutes")
	}
	in.BreakDuration = req.BreakDuration
	if in.BreakDuration < 0 || in.BreakDuration > availability.MaxBreakDuration {
		errs.add("break_duration", "break duration must be between 0 and 120 minutes")
	}

	in.IsRecurring = req.IsRecurring
	if req.IsRecurring {
		in.RecurrencePattern = availability.RecurrencePattern(strings.ToUpper(req.RecurrencePattern))
		if !in.RecurrencePattern.Valid() {
			errs.add("recurrence_pattern", "recurrence pattern must be DAILY, WEEKLY or MONTHLY")
		}
		if req.RecurrenceEndDate == "" {
			errs.add("recurrence_end_date", "recurrence end date is required for recurring availability")
		} else if d, err := parseDate(req.RecurrenceEndDate); err != nil {
			errs.add("recurrence_end_date", "recurrence end date must be in YYYY-MM-DD format")
		} else {
			in.RecurrenceEndDate = &d
		}
	}

	in.AppointmentType = availability.TypeConsultation
	if req.AppointmentType != "" {
		in.AppointmentType = availability.AppointmentType(strings.ToUpper(req.AppointmentType))
		if !in.AppointmentType.Valid() {
			errs.add("appointment_type", "appointment type must be CONSULTATION, FOLLOW_UP, EMERGENCY or TELEMEDICINE")
		}
	}

	switch {
	case req.Location != nil:
		in.Location = availability.Location{
			Type:       availability.LocationType(strings.ToUpper(req.Location.Type)),
			Address:    strings.TrimSpace(req.Location.Address),
			RoomNumber: strings.TrimSpace(req.Location.RoomNumber),
		}
		if !in.Location.Type.Valid() {
			errs.add("location.type", "location type must be CLINIC, HOSPITAL, TELEMEDICINE or HOME_VISIT")
		}
		if in.Location.Address == "" && in.Location.Type != availability.LocationTelemedicine {
			errs.add("location.address", "location address is required")
		}
	case requireLocation:
		errs.add("location", "location is required")
	}

	if req.Pricing != nil {
		p := availability.Pricing{
			BaseFee:           req.Pricing.BaseFee,
			InsuranceAccepted: req.Pricing.InsuranceAccepted,
			Currency:          strings.ToUpper(strings.TrimSpace(req.Pricing.Currency)),
		}
		if p.BaseFee.Valid && !p.BaseFee.Decimal.IsPositive() {
			errs.add("pricing.base_fee", "base fee must be greater than 0")
		}
		if p.Currency != "" && !currencyCode.MatchString(p.Currency) {
			errs.add("pricing.currency", "currency must be a 3-letter ISO code")
		}
		in.Pricing = &p
	}

	if len([]rune(req.Notes)) > availability.MaxNotesLength {
		errs.add("notes", "notes cannot exceed 500 characters")
	}
	in.Notes = req.Notes
	in.SpecialRequirements = req.SpecialRequirements

	return in, errs.err()
}

type LocationResponse struct {
	Type       string `json:"type"`
	Address    string `json:"address,omitempty"`
	RoomNumber string `json:"room_number,omitempty"`
}

type PricingResponse struct {
	BaseFee           *decimal.Decimal `json:"base_fee,omitempty"`
	InsuranceAccepted bool             `json:"insurance_accepted"`
	Currency          string           `json:"currency"`
}

type AvailabilityResponse struct {
	ID                     uuid.UUID        `json:"id"`
	ProviderID             uuid.UUID        `json:"provider_id"`
	ProviderName           string           `json:"provider_name,omitempty"`
	Specialization         string           `json:"specialization,omitempty"`
	SeriesID               *uuid.UUID       `json:"series_id,omitempty"`
	Date                   string           `json:"date"`
	StartTime              string           `json:"start_time"`
	EndTime                string           `json:"end_time"`
	Timezone               string           `json:"timezone"`
	SlotDuration           int              `json:"slot_duration"`
	BreakDuration          int              `json:"break_duration"`
	IsRecurring            bool             `json:"is_recurring"`
	RecurrencePattern      string           `json:"recurrence_pattern,omitempty"`
	RecurrenceEndDate      string           `json:"recurrence_end_date,omitempty"`
	Status                 string           `json:"status"`
	MaxAppointmentsPerSlot int              `json:"max_appointments_per_slot"`
	CurrentAppointments    int              `json:"current_appointments"`
	AppointmentType        string           `json:"appointment_type"`
	Location               LocationResponse `json:"location"`
	Pricing                PricingResponse  `json:"pricing"`
	Notes                  string           `json:"notes,omitempty"`
	SpecialRequirements    []string         `json:"special_requirements"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

func toAvailabilityResponse(w *availability.Window) AvailabilityResponse {
	resp := AvailabilityResponse{
		ID:                     w.ID,
		ProviderID:             w.ProviderID,
		SeriesID:               w.SeriesID,
		Date:                   w.Date.Format(dateLayout),
		StartTime:              w.StartTime.String(),
		EndTime:                w.EndTime.String(),
		Timezone:               w.Timezone,
		SlotDuration:           w.SlotDuration,
		BreakDuration:          w.BreakDuration,
		IsRecurring:            w.IsRecurring,
		RecurrencePattern:      string(w.RecurrencePattern),
		Status:                 string(w.Status),
		MaxAppointmentsPerSlot: w.MaxAppointmentsPerSlot,
		CurrentAppointments:    w.CurrentAppointments,
		AppointmentType:        string(w.AppointmentType),
		Location: LocationResponse{
			Type:       string(w.Location.Type),
			Address:    w.Location.Address,
			RoomNumber: w.Location.RoomNumber,
		},
		Pricing: PricingResponse{
			InsuranceAccepted: w.Pricing.InsuranceAccepted,
			Currency:          w.Pricing.Currency,
		},
		Notes:               w.Notes,
		SpecialRequirements: w.SpecialRequirements,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
	if w.RecurrenceEndDate != nil {
		resp.RecurrenceEndDate = w.RecurrenceEndDate.Format(dateLayout)
	}
	if w.Pricing.BaseFee.Valid {
		fee := w.Pricing.BaseFee.Decimal
		resp.Pricing.BaseFee = &fee
	}
	if resp.SpecialRequirements == nil {
		resp.SpecialRequirements = []string{}
	}
	return resp
}

func toDetailResponse(d availability.WindowDetail) AvailabilityResponse {
	resp := toAvailabilityResponse(&d.Window)
	resp.ProviderName = d.ProviderName
	resp.Specialization = d.ProviderSpecialization
	return resp
}

type SlotResponse struct {
	ID               uuid.UUID  `json:"id"`
	AvailabilityID   uuid.UUID  `json:"availability_id"`
	ProviderID       uuid.UUID  `json:"provider_id"`
	StartTime        time.Time  `json:"slot_start_time"`
	EndTime          time.Time  `json:"slot_end_time"`
	Status           string     `json:"status"`
	PatientID        *uuid.UUID `json:"patient_id,omitempty"`
	AppointmentType  string     `json:"appointment_type"`
	BookingReference *string    `json:"booking_reference,omitempty"`
}

func toSlotResponses(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			ID:               s.ID,
			AvailabilityID:   s.AvailabilityID,
			ProviderID:       s.ProviderID,
			StartTime:        s.StartTime,
			EndTime:          s.EndTime,
			Status:           string(s.Status),
			PatientID:        s.PatientID,
			AppointmentType:  string(s.AppointmentType),
			BookingReference: s.BookingReference,
		})
	}
	return out
}

type WindowWithSlotsResponse struct {
	Availability AvailabilityResponse `json:"availability"`
	SlotsCreated int                  `json:"slots_created"`
	Slots        []SlotResponse       `json:"slots"`
}

type DeleteResponse struct {
	DeletedAvailabilityIDs []uuid.UUID `json:"deleted_availability_ids"`
	SlotsDeleted           int64       `json:"slots_deleted"`
}

type CountResponse struct {
	ProviderID uuid.UUID `json:"provider_id"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Count      int       `json:"count"`
}

// Providers

type ClinicAddressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip"`
}

type RegisterRequest struct {
	FirstName         string                `json:"first_name"`
	LastName          string                `json:"last_name"`
	Email             string                `json:"email"`
	PhoneNumber       string                `json:"phone_number"`
	Password          string                `json:"password"`
	ConfirmPassword   string                `json:"confirm_password"`
	Specialization    string                `json:"specialization"`
	LicenseNumber     string                `json:"license_number"`
	YearsOfExperience int                   `json:"years_of_experience"`
	ClinicAddress     *ClinicAddressRequest `json:"clinic_address"`
}

func lengthBetween(errs fieldErrors, field, label, value string, lo, hi int) {
	n := len([]rune(strings.TrimSpace(value)))
	switch {
	case n == 0:
		errs.add(field, label+" is required")
	case n < lo || n > hi:
		errs.add(field, label+" has an invalid length")
	}
}

// strongPassword requires 8+ characters drawn from letters, digits and
// @$!%*?&, with at least one of each class.
func strongPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r) && r < unicode.MaxASCII:
			lower = true
		case unicode.IsUpper(r) && r < unicode.MaxASCII:
			upper = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digit = true
		case strings.ContainsRune(passwordSymbol, r):
			symbol = true
		default:
			return false
		}
	}
	return lower && upper && digit && symbol
}

func (req RegisterRequest) Registration() (provider.Registration, error) {
	errs := fieldErrors{}

	lengthBetween(errs, "first_name", "first name", req.FirstName, 2, 50)
	lengthBetween(errs, "last_name", "last name", req.LastName, 2, 50)
	if req.Email == "" {
		errs.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != strings.TrimSpace(req.Email) {
		errs.add("email", "email must be a valid email address")
	}
	if !phonePattern.MatchString(req.PhoneNumber) {
		errs.add("phone_number", "phone number must be in international format")
	}
	if !strongPassword(req.Password) {
		errs.add("password", "password must contain at least 8 characters, one uppercase letter, one lowercase letter, one number, and one special character")
	}
	if req.ConfirmPassword == "" {
		errs.add("confirm_password", "password confirmation is required")
	}
	lengthBetween(errs, "specialization", "specialization", req.Specialization, 3, 100)
	if !licensePattern.MatchString(req.LicenseNumber) {
		errs.add("license_number", "license number must be alphanumeric")
	}
	if req.YearsOfExperience < 0 || req.YearsOfExperience > 50 {
		errs.add("years_of_experience", "years of experience must be between 0 and 50")
	}

	var addr provider.ClinicAddress
	if req.ClinicAddress == nil {
		errs.add("clinic_address", "clinic address is required")
	} else {
		a := req.ClinicAddress
		lengthBetween(errs, "clinic_address.street", "street", a.Street, 1, 200)
		lengthBetween(errs, "clinic_address.city", "city", a.City, 1, 100)
		lengthBetween(errs, "clinic_address.state", "state", a.State, 1, 50)
		if !zipPattern.MatchString(a.ZipCode) {
			errs.add("clinic_address.zip", "ZIP code must be in valid format (e.g., 12345 or 12345-6789)")
		}
		addr = provider.ClinicAddress{
			Street: strings.TrimSpace(a.Street),
			City:   strings.TrimSpace(a.City),
			State:  strings.TrimSpace(a.State),
			Zip:    a.ZipCode,
		}
	}

	if err := errs.err(); err != nil {
		return provider.Registration{}, err
	}
	return provider.Registration{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		Password:          req.Password,
		ConfirmPassword:   req.ConfirmPassword,
		Specialization:    req.Specialization,
		LicenseNumber:     req.LicenseNumber,
		YearsOfExperience: req.YearsOfExperience,
		ClinicAddress:     addr,
	}, nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req LoginRequest) Validate() error {
	errs := fieldErrors{}
	if strings.TrimSpace(req.Email) == "" {
		errs.add("email", "email is required")
	}
	if req.Password == "" {
		errs.add("password", "password is required")
	}
	return errs.err()
}

type ProviderResponse struct {
	ID                 uuid.UUID            `json:"id"`
	FirstName          string               `json:"first_name"`
	LastName           string               `json:"last_name"`
	Email              string               `json:"email"`
	PhoneNumber        string               `json:"phone_number"`
	Specialization     string               `json:"specialization"`
	LicenseNumber      string               `json:"license_number"`
	YearsOfExperience  int                  `json:"years_of_experience"`
	ClinicAddress      ClinicAddressRequest `json:"clinic_address"`
	VerificationStatus string               `json:"verification_status"`
	IsActive           bool                 `json:"is_active"`
	CreatedAt          time.Time            `json:"created_at"`
}

func toProviderResponse(p *provider.Provider) ProviderResponse {
	return ProviderResponse{
		ID:                p.ID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Email:             p.Email,
		PhoneNumber:       p.PhoneNumber,
		Specialization:    p.Specialization,
		LicenseNumber:     p.LicenseNumber,
		YearsOfExperience: p.YearsOfExperience,
		ClinicAddress: ClinicAddressRequest{
			Street:  p.ClinicAddress.Street,
			City:    p.ClinicAddress.City,
			State:   p.ClinicAddress.State,
			ZipCode: p.ClinicAddress.Zip,
		},
		VerificationStatus: string(p.VerificationStatus),
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
	}
}

type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int64            `json:"expires_in"`
	Provider    ProviderResponse `json:"provider"`
}
