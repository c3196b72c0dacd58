package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CohortFinder loads recurring windows still active on a date.
type CohortFinder interface {
	FindActiveRecurring(ctx context.Context, providerID uuid.UUID, asOf time.Time) ([]Window, error)
}

type RecurrenceExpander struct {
	windows CohortFinder
}

func NewRecurrenceExpander(windows CohortFinder) *RecurrenceExpander {
	return &RecurrenceExpander{windows: windows}
}

// ActiveCohort returns the ids of the provider's recurring windows whose
// recurrence end date is on or after asOf.
func (e *RecurrenceExpander) ActiveCohort(ctx context.Context, providerID uuid.UUID, asOf time.Time) ([]uuid.UUID, error) {
	windows, err := e.windows.FindActiveRecurring(ctx, providerID, CivilDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("find active recurring windows: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(windows))
	for _, w := range windows {
		if !w.IsRecurring || w.RecurrenceEndDate == nil || w.RecurrenceEndDate.Before(CivilDate(asOf)) {
			continue
		}
		ids = append(ids, w.ID)
	}
	return ids, nil
}

// nthOccurrence is the n-th repetition of anchor under pattern. Monthly
// repetitions keep the anchor's day, clamped to the end of shorter months.
func nthOccurrence(pattern RecurrencePattern, anchor time.Time, n int) time.Time {
	switch pattern {
	case RecurrenceDaily:
		return anchor.AddDate(0, 0, n)
	case RecurrenceWeekly:
		return anchor.AddDate(0, 0, 7*n)
	case RecurrenceMonthly:
		first := time.Date(anchor.Year(), anchor.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1).Day()
		day := anchor.Day()
		if day > last {
			day = last
		}
		return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// Occurrences lists the dates after root.Date on which the series repeats,
// from asOf up to the earlier of the recurrence end date and asOf+horizon.
func Occurrences(root *Window, asOf time.Time, horizon time.Duration) []time.Time {
	if !root.IsRecurring || !root.RecurrencePattern.Valid() || root.RecurrenceEndDate == nil {
		return nil
	}

	anchor := CivilDate(root.Date)
	from := CivilDate(asOf)
	limit := CivilDate(asOf.Add(horizon))
	if end := CivilDate(*root.RecurrenceEndDate); end.Before(limit) {
		limit = end
	}

	var dates []time.Time
	for n := 1; ; n++ {
		d := nthOccurrence(root.RecurrencePattern, anchor, n)
		if d.After(limit) {
			break
		}
		if d.Before(from) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}
