package availability

import (
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
)

// Interval is a half-open [Start, End) range of absolute instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// slotOffsets walks a cursor from start, emitting a slot whenever a full slot
// still fits before end and stepping past the slot plus its break. Trailing
// partial slots are dropped.
func slotOffsets(start, end TimeOfDay, slotMinutes, breakMinutes int) []TimeOfDay {
	if slotMinutes <= 0 || breakMinutes < 0 {
		return nil
	}
	var out []TimeOfDay
	for cursor := start; cursor+TimeOfDay(slotMinutes) <= end; cursor += TimeOfDay(slotMinutes + breakMinutes) {
		out = append(out, cursor)
	}
	return out
}

// Partition splits a window into its bookable intervals, ordered by start.
// Each slot is exactly SlotDuration long. Only the window bounds are resolved
// in the window's timezone; slots are laid out in elapsed time from the start,
// so a DST jump cannot reorder them. Slots that would end past the resolved
// window end are dropped.
func Partition(w *Window) ([]Interval, error) {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, apperr.Validation("unknown timezone %q", w.Timezone)
	}

	length := time.Duration(w.SlotDuration) * time.Minute
	offsets := slotOffsets(w.StartTime, w.EndTime, w.SlotDuration, w.BreakDuration)

	windowStart := w.StartTime.On(w.Date, loc)
	windowEnd := w.EndTime.On(w.Date, loc)

	intervals := make([]Interval, 0, len(offsets))
	for _, off := range offsets {
		start := windowStart.Add(time.Duration(off-w.StartTime) * time.Minute)
		end := start.Add(length)
		if end.After(windowEnd) {
			break
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals, nil
}

// BuildSlots partitions w and wraps each interval in an AVAILABLE slot owned by w.
func BuildSlots(w *Window) ([]Slot, error) {
	intervals, err := Partition(w)
	if err != nil {
		return nil, err
	}

	slots := make([]Slot, 0, len(intervals))
	for _, iv := range intervals {
		slots = append(slots, Slot{
			ID:              uuid.New(),
			AvailabilityID:  w.ID,
			ProviderID:      w.ProviderID,
			StartTime:       iv.Start,
			EndTime:         iv.End,
			Status:          SlotAvailable,
			AppointmentType: w.AppointmentType,
		})
	}
	return slots, nil
}
