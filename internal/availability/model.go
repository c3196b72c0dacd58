package availability

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusBooked      Status = "BOOKED"
	StatusCancelled   Status = "CANCELLED"
	StatusBlocked     Status = "BLOCKED"
	StatusMaintenance Status = "MAINTENANCE"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotBooked    SlotStatus = "BOOKED"
	SlotCancelled SlotStatus = "CANCELLED"
	SlotBlocked   SlotStatus = "BLOCKED"
)

type AppointmentType string

const (
	TypeConsultation AppointmentType = "CONSULTATION"
	TypeFollowUp     AppointmentType = "FOLLOW_UP"
	TypeEmergency    AppointmentType = "EMERGENCY"
	TypeTelemedicine AppointmentType = "TELEMEDICINE"
)

type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "DAILY"
	RecurrenceWeekly  RecurrencePattern = "WEEKLY"
	RecurrenceMonthly RecurrencePattern = "MONTHLY"
)

type LocationType string

const (
	LocationClinic       LocationType = "CLINIC"
	LocationHospital     LocationType = "HOSPITAL"
	LocationTelemedicine LocationType = "TELEMEDICINE"
	LocationHomeVisit    LocationType = "HOME_VISIT"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBooked, StatusCancelled, StatusBlocked, StatusMaintenance:
		return true
	}
	return false
}

func (t AppointmentType) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency, TypeTelemedicine:
		return true
	}
	return false
}

func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

func (l LocationType) Valid() bool {
	switch l {
	case LocationClinic, LocationHospital, LocationTelemedicine, LocationHomeVisit:
		return true
	}
	return false
}

// Bounds enforced before a window reaches the lifecycle.
const (
	MinSlotDuration  = 15
	MaxSlotDuration  = 480
	MaxBreakDuration = 120
	MaxNotesLength   = 500
	MinPerSlot       = 1
	MaxPerSlot       = 10

	DefaultCurrency = "USD"
)

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

var timeOfDayPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// ParseTimeOfDay accepts "HH:mm" (leading zero on the hour optional).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("time %q must be in HH:mm format", s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return TimeOfDay(h*60 + mm), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On resolves the time of day on the given calendar date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// CivilDate strips the clock and zone, keeping only the calendar date as UTC midnight.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type Location struct {
	Type       LocationType
	Address    string
	RoomNumber string
}

type Pricing struct {
	BaseFee           decimal.NullDecimal
	InsuranceAccepted bool
	Currency          string
}

// Window is a provider's declared working range on one calendar date.
type Window struct {
	ID                     uuid.UUID
	ProviderID             uuid.UUID
	SeriesID               *uuid.UUID // set on instances materialized from a recurring root
	Date                   time.Time
	StartTime              TimeOfDay
	EndTime                TimeOfDay
	Timezone               string
	SlotDuration           int // minutes
	BreakDuration          int // minutes
	IsRecurring            bool
	RecurrencePattern      RecurrencePattern
	RecurrenceEndDate      *time.Time
	Status                 Status
	MaxAppointmentsPerSlot int
	CurrentAppointments    int
	AppointmentType        AppointmentType
	Location               Location
	Pricing                Pricing
	Notes                  string
	SpecialRequirements    []string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// WindowDetail is a window joined with the provider fields responses need.
type WindowDetail struct {
	Window
	ProviderName           string
	ProviderSpecialization string
}

type Slot struct {
	ID               uuid.UUID
	AvailabilityID   uuid.UUID
	ProviderID       uuid.UUID
	StartTime        time.Time
	EndTime          time.Time
	Status           SlotStatus
	PatientID        *uuid.UUID
	AppointmentType  AppointmentType
	BookingReference *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WindowInput is a validated availability request.
type WindowInput struct {
	Date                time.Time
	StartTime           TimeOfDay
	EndTime             TimeOfDay
	Timezone            string
	SlotDuration        int
	BreakDuration       int
	IsRecurring         bool
	RecurrencePattern   RecurrencePattern
	RecurrenceEndDate   *time.Time
	AppointmentType     AppointmentType
	Location            Location
	Pricing             *Pricing
	Notes               string
	SpecialRequirements []string
}

type EventLog struct {
	ID             int64
	EventType      string
	ProviderID     *uuid.UUID
	AvailabilityID *uuid.UUID
	Payload        []byte
	CreatedAt      time.Time
}

// DeleteResult reports how much a delete removed.
type DeleteResult struct {
	WindowIDs    []uuid.UUID
	SlotsDeleted int64
}
