package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/pagination"
)

var (
	ErrAvailabilityNotFound = apperr.NotFound("availability not found")
	ErrProviderNotFound     = apperr.NotFound("provider not found")
)

// Repository contains all DB interactions needed by the service. Writes join the
// transaction carried by ctx when there is one.
type Repository interface {
	GetWindow(ctx context.Context, id uuid.UUID) (*WindowDetail, error)

	// Overlap detection and recurrence
	FindByProviderAndDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Window, error)
	FindActiveRecurring(ctx context.Context, providerID uuid.UUID, asOf time.Time) ([]Window, error)
	FindRecurringRoots(ctx context.Context, asOf time.Time) ([]Window, error)
	SeriesHasDate(ctx context.Context, seriesID uuid.UUID, date time.Time) (bool, error)

	// Window and slot writes
	InsertWindow(ctx context.Context, w *Window) error
	UpdateWindow(ctx context.Context, w *Window) error
	DeleteWindows(ctx context.Context, ids []uuid.UUID) (int64, error)
	InsertSlots(ctx context.Context, slots []Slot) error
	DeleteSlotsByWindows(ctx context.Context, windowIDs []uuid.UUID) (int64, error)
	ListSlotsByWindow(ctx context.Context, windowID uuid.UUID) ([]Slot, error)

	// Read side
	ListByProvider(ctx context.Context, f ProviderFilter, page pagination.Request) ([]WindowDetail, int, error)
	Search(ctx context.Context, f SearchFilter, page pagination.Request) ([]WindowDetail, int, error)
	Specializations(ctx context.Context, asOf time.Time) ([]string, error)
	Upcoming(ctx context.Context, providerID uuid.UUID, asOf time.Time) ([]WindowDetail, error)
	CountAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// ProviderChecker resolves whether a provider exists and is active.
type ProviderChecker interface {
	IsActive(ctx context.Context, id uuid.UUID) (bool, error)
}
