package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNthOccurrence(t *testing.T) {
	tests := []struct {
		name    string
		pattern RecurrencePattern
		anchor  time.Time
		n       int
		want    time.Time
	}{
		{"daily", RecurrenceDaily, day(2025, 1, 30), 3, day(2025, 2, 2)},
		{"weekly", RecurrenceWeekly, day(2025, 1, 6), 2, day(2025, 1, 20)},
		{"monthly", RecurrenceMonthly, day(2025, 1, 15), 1, day(2025, 2, 15)},
		{"monthly clamps to february", RecurrenceMonthly, day(2025, 1, 31), 1, day(2025, 2, 28)},
		{"monthly leap year", RecurrenceMonthly, day(2024, 1, 31), 1, day(2024, 2, 29)},
		{"monthly recovers day after clamp", RecurrenceMonthly, day(2025, 1, 31), 2, day(2025, 3, 31)},
		{"monthly across year", RecurrenceMonthly, day(2025, 11, 30), 3, day(2026, 2, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nthOccurrence(tt.pattern, tt.anchor, tt.n); !got.Equal(tt.want) {
				t.Fatalf("got %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestOccurrences(t *testing.T) {
	end := day(2025, 1, 31)
	root := &Window{
		Date:              day(2025, 1, 6),
		IsRecurring:       true,
		RecurrencePattern: RecurrenceWeekly,
		RecurrenceEndDate: &end,
	}

	got := Occurrences(root, day(2025, 1, 6), 30*24*time.Hour)
	want := []time.Time{day(2025, 1, 13), day(2025, 1, 20), day(2025, 1, 27)}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %s", i, got[i].Format("2006-01-02"))
		}
	}

	// horizon shorter than the series
	short := Occurrences(root, day(2025, 1, 10), 7*24*time.Hour)
	if len(short) != 1 || !short[0].Equal(day(2025, 1, 13)) {
		t.Errorf("short horizon = %v", short)
	}

	if Occurrences(&Window{Date: day(2025, 1, 6)}, day(2025, 1, 6), 24*time.Hour) != nil {
		t.Error("non-recurring window has no occurrences")
	}
}

func TestActiveCohort(t *testing.T) {
	repo := newMemRepo()
	providerID := uuid.New()
	today := day(2025, 1, 10)

	future, expired, todayEnd := day(2025, 2, 1), day(2025, 1, 9), today
	active := Window{ID: uuid.New(), ProviderID: providerID, Date: day(2025, 1, 6), IsRecurring: true, RecurrencePattern: RecurrenceWeekly, RecurrenceEndDate: &future}
	endsToday := Window{ID: uuid.New(), ProviderID: providerID, Date: day(2025, 1, 3), IsRecurring: true, RecurrencePattern: RecurrenceDaily, RecurrenceEndDate: &todayEnd}
	repo.put(active)
	repo.put(endsToday)
	repo.put(Window{ID: uuid.New(), ProviderID: providerID, Date: day(2025, 1, 2), IsRecurring: true, RecurrenceEndDate: &expired})
	repo.put(Window{ID: uuid.New(), ProviderID: providerID, Date: day(2025, 1, 12)})
	repo.put(Window{ID: uuid.New(), ProviderID: uuid.New(), Date: day(2025, 1, 12), IsRecurring: true, RecurrenceEndDate: &future})

	ids, err := NewRecurrenceExpander(repo).ActiveCohort(context.Background(), providerID, today)
	if err != nil {
		t.Fatalf("ActiveCohort: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("cohort = %v, want 2 windows", ids)
	}
	got := map[uuid.UUID]bool{ids[0]: true, ids[1]: true}
	if !got[active.ID] || !got[endsToday.ID] {
		t.Fatalf("cohort = %v", ids)
	}
}
