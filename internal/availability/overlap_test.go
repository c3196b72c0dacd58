package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name         string
		aStart, aEnd TimeOfDay
		bStart, bEnd TimeOfDay
		want         bool
	}{
		{"disjoint", 540, 600, 660, 720, false},
		{"touching end to start", 540, 600, 600, 660, false},
		{"touching start to end", 600, 660, 540, 600, false},
		{"partial", 540, 600, 570, 630, true},
		{"contained", 540, 720, 600, 630, true},
		{"identical", 540, 600, 540, 600, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlapDetector(t *testing.T) {
	repo := newMemRepo()
	providerID, otherProvider := uuid.New(), uuid.New()
	date := day(2025, 1, 6)

	existing := Window{ID: uuid.New(), ProviderID: providerID, Date: date, StartTime: tod(t, "09:00"), EndTime: tod(t, "10:00")}
	repo.put(existing)
	repo.put(Window{ID: uuid.New(), ProviderID: otherProvider, Date: date, StartTime: tod(t, "09:00"), EndTime: tod(t, "10:00")})
	repo.put(Window{ID: uuid.New(), ProviderID: providerID, Date: day(2025, 1, 7), StartTime: tod(t, "09:00"), EndTime: tod(t, "10:00")})

	d := NewOverlapDetector(repo)
	ctx := context.Background()

	tests := []struct {
		name       string
		provider   uuid.UUID
		start, end string
		exclude    uuid.UUID
		want       bool
	}{
		{"same slot", providerID, "09:00", "10:00", uuid.Nil, true},
		{"abutting after", providerID, "10:00", "11:00", uuid.Nil, false},
		{"abutting before", providerID, "08:00", "09:00", uuid.Nil, false},
		{"straddles start", providerID, "08:30", "09:15", uuid.Nil, true},
		{"self excluded", providerID, "09:30", "10:30", existing.ID, false},
		{"other provider ignored", otherProvider, "10:00", "11:00", uuid.Nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.HasOverlap(ctx, tt.provider, date, tod(t, tt.start), tod(t, tt.end), tt.exclude)
			if err != nil {
				t.Fatalf("HasOverlap: %v", err)
			}
			if got != tt.want {
				t.Fatalf("HasOverlap = %v, want %v", got, tt.want)
			}
		})
	}

	err := d.Check(ctx, providerID, date, tod(t, "09:45"), tod(t, "10:15"), uuid.Nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Check err = %v, want validation error", err)
	}
}
