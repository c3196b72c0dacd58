package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
)

// Overlaps is the half-open interval test: touching ranges do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}

// WindowFinder is the slice of the repository the overlap check reads from.
type WindowFinder interface {
	FindByProviderAndDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Window, error)
}

type OverlapDetector struct {
	windows WindowFinder
}

func NewOverlapDetector(windows WindowFinder) *OverlapDetector {
	return &OverlapDetector{windows: windows}
}

// Conflicts returns the provider's windows on date that intersect [start, end),
// ignoring exclude (pass uuid.Nil on create).
func (d *OverlapDetector) Conflicts(ctx context.Context, providerID uuid.UUID, date time.Time, start, end TimeOfDay, exclude uuid.UUID) ([]Window, error) {
	existing, err := d.windows.FindByProviderAndDate(ctx, providerID, CivilDate(date))
	if err != nil {
		return nil, fmt.Errorf("load windows for overlap check: %w", err)
	}

	var hits []Window
	for _, w := range existing {
		if w.ID == exclude {
			continue
		}
		if Overlaps(w.StartTime, w.EndTime, start, end) {
			hits = append(hits, w)
		}
	}
	return hits, nil
}

func (d *OverlapDetector) HasOverlap(ctx context.Context, providerID uuid.UUID, date time.Time, start, end TimeOfDay, exclude uuid.UUID) (bool, error) {
	hits, err := d.Conflicts(ctx, providerID, date, start, end, exclude)
	if err != nil {
		return false, err
	}
	return len(hits) > 0, nil
}

// Check fails with a validation error when the candidate overlaps an existing window.
func (d *OverlapDetector) Check(ctx context.Context, providerID uuid.UUID, date time.Time, start, end TimeOfDay, exclude uuid.UUID) error {
	hits, err := d.Conflicts(ctx, providerID, date, start, end, exclude)
	if err != nil {
		return err
	}
	if len(hits) > 0 {
		h := hits[0]
		return apperr.Validation("time slot overlaps with existing availability %s-%s on %s",
			h.StartTime, h.EndTime, h.Date.Format("2006-01-02"))
	}
	return nil
}
