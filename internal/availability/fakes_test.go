package availability

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/health-first-scheduling/internal/pagination"
	redisclient "github.com/hackgods/health-first-scheduling/internal/redis"
)

// memRepo is an in-memory Repository. memTx snapshots it to emulate rollback.
type memRepo struct {
	mu      sync.Mutex
	windows map[uuid.UUID]Window
	slots   map[uuid.UUID]Slot
	events  []EventLog
	// specialization per provider, for search and joined details
	specs map[uuid.UUID]string

	failInsertSlots error
	failEvents      error
}

func newMemRepo() *memRepo {
	return &memRepo{
		windows: map[uuid.UUID]Window{},
		slots:   map[uuid.UUID]Slot{},
		specs:   map[uuid.UUID]string{},
	}
}

func (r *memRepo) snapshot() (map[uuid.UUID]Window, map[uuid.UUID]Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws := make(map[uuid.UUID]Window, len(r.windows))
	for k, v := range r.windows {
		ws[k] = v
	}
	ss := make(map[uuid.UUID]Slot, len(r.slots))
	for k, v := range r.slots {
		ss[k] = v
	}
	return ws, ss
}

func (r *memRepo) restore(ws map[uuid.UUID]Window, ss map[uuid.UUID]Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows, r.slots = ws, ss
}

func (r *memRepo) put(w Window) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows[w.ID] = w
}

func (r *memRepo) slotsOf(windowID uuid.UUID) []Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, s := range r.slots {
		if s.AvailabilityID == windowID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *memRepo) GetWindow(_ context.Context, id uuid.UUID) (*WindowDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	return &WindowDetail{Window: w, ProviderName: "Jane Doe", ProviderSpecialization: "Cardiology"}, nil
}

func (r *memRepo) filter(keep func(Window) bool) []Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Window
	for _, w := range r.windows {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (r *memRepo) FindByProviderAndDate(_ context.Context, providerID uuid.UUID, date time.Time) ([]Window, error) {
	return r.filter(func(w Window) bool {
		return w.ProviderID == providerID && w.Date.Equal(CivilDate(date))
	}), nil
}

func (r *memRepo) FindActiveRecurring(_ context.Context, providerID uuid.UUID, asOf time.Time) ([]Window, error) {
	return r.filter(func(w Window) bool {
		return w.ProviderID == providerID && w.IsRecurring &&
			w.RecurrenceEndDate != nil && !w.RecurrenceEndDate.Before(asOf)
	}), nil
}

func (r *memRepo) FindRecurringRoots(_ context.Context, asOf time.Time) ([]Window, error) {
	return r.filter(func(w Window) bool {
		return w.IsRecurring && w.SeriesID == nil &&
			w.RecurrenceEndDate != nil && !w.RecurrenceEndDate.Before(asOf)
	}), nil
}

func (r *memRepo) SeriesHasDate(_ context.Context, seriesID uuid.UUID, date time.Time) (bool, error) {
	hits := r.filter(func(w Window) bool {
		return w.SeriesID != nil && *w.SeriesID == seriesID && w.Date.Equal(date)
	})
	return len(hits) > 0, nil
}

func (r *memRepo) InsertWindow(_ context.Context, w *Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	r.windows[w.ID] = *w
	return nil
}

func (r *memRepo) UpdateWindow(_ context.Context, w *Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[w.ID]; !ok {
		return ErrAvailabilityNotFound
	}
	w.UpdatedAt = time.Now()
	r.windows[w.ID] = *w
	return nil
}

func (r *memRepo) DeleteWindows(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.windows[id]; ok {
			delete(r.windows, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) InsertSlots(_ context.Context, slots []Slot) error {
	if r.failInsertSlots != nil {
		return r.failInsertSlots
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range slots {
		r.slots[s.ID] = s
	}
	return nil
}

func (r *memRepo) DeleteSlotsByWindows(_ context.Context, windowIDs []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := map[uuid.UUID]bool{}
	for _, id := range windowIDs {
		ids[id] = true
	}
	var n int64
	for id, s := range r.slots {
		if ids[s.AvailabilityID] {
			delete(r.slots, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ListSlotsByWindow(_ context.Context, windowID uuid.UUID) ([]Slot, error) {
	return r.slotsOf(windowID), nil
}

func (r *memRepo) details(ws []Window) []WindowDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WindowDetail, 0, len(ws))
	for _, w := range ws {
		out = append(out, WindowDetail{Window: w, ProviderSpecialization: r.specs[w.ProviderID]})
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}

func (r *memRepo) specOf(providerID uuid.UUID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.specs[providerID]
}

func (r *memRepo) ListByProvider(_ context.Context, f ProviderFilter, _ pagination.Request) ([]WindowDetail, int, error) {
	ws := r.filter(func(w Window) bool {
		return w.ProviderID == f.ProviderID && !w.Date.Before(CivilDate(f.From)) && !w.Date.After(CivilDate(f.To))
	})
	return r.details(ws), len(ws), nil
}

func (r *memRepo) Search(_ context.Context, f SearchFilter, _ pagination.Request) ([]WindowDetail, int, error) {
	specs := map[uuid.UUID]string{}
	r.mu.Lock()
	for id, s := range r.specs {
		specs[id] = s
	}
	r.mu.Unlock()

	ws := r.filter(func(w Window) bool {
		switch {
		case w.Status != StatusAvailable:
			return false
		case !f.From.IsZero() && w.Date.Before(CivilDate(f.From)):
			return false
		case !f.To.IsZero() && w.Date.After(CivilDate(f.To)):
			return false
		case f.Specialization != "" && !containsFold(specs[w.ProviderID], f.Specialization):
			return false
		case f.Location != "" && !containsFold(w.Location.Address, f.Location):
			return false
		case f.AppointmentType != "" && w.AppointmentType != f.AppointmentType:
			return false
		case f.InsuranceAccepted != nil && w.Pricing.InsuranceAccepted != *f.InsuranceAccepted:
			return false
		case f.MaxPrice.Valid && (!w.Pricing.BaseFee.Valid || w.Pricing.BaseFee.Decimal.GreaterThan(f.MaxPrice.Decimal)):
			return false
		}
		return true
	})
	return r.details(ws), len(ws), nil
}

func (r *memRepo) Specializations(_ context.Context, asOf time.Time) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, w := range r.filter(func(w Window) bool {
		return w.Status == StatusAvailable && !w.Date.Before(CivilDate(asOf))
	}) {
		s := r.specOf(w.ProviderID)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memRepo) Upcoming(_ context.Context, providerID uuid.UUID, asOf time.Time) ([]WindowDetail, error) {
	return r.details(r.filter(func(w Window) bool {
		return w.ProviderID == providerID && !w.Date.Before(CivilDate(asOf))
	})), nil
}

func (r *memRepo) CountAvailable(_ context.Context, providerID uuid.UUID, from, to time.Time) (int, error) {
	return len(r.filter(func(w Window) bool {
		return w.ProviderID == providerID && w.Status == StatusAvailable &&
			!w.Date.Before(from) && !w.Date.After(to)
	})), nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	if r.failEvents != nil {
		return r.failEvents
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// memTx restores the repository when fn fails.
type memTx struct {
	repo *memRepo
}

func (t memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ws, ss := t.repo.snapshot()
	if err := fn(ctx); err != nil {
		t.repo.restore(ws, ss)
		return err
	}
	return nil
}

type memLocker struct {
	busy bool
	keys [][]string
	// onAcquire runs once the lock is held, before fn
	onAcquire func()
}

func (l *memLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, keys)
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	if l.onAcquire != nil {
		l.onAcquire()
	}
	return fn(ctx)
}

type activeProviders map[uuid.UUID]bool

func (p activeProviders) IsActive(_ context.Context, id uuid.UUID) (bool, error) {
	return p[id], nil
}
