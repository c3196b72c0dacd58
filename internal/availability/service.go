package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/db"
	redisclient "github.com/hackgods/health-first-scheduling/internal/redis"
)

const (
	EventAvailabilityCreated      = "AVAILABILITY_CREATED"
	EventAvailabilityUpdated      = "AVAILABILITY_UPDATED"
	EventAvailabilityDeleted      = "AVAILABILITY_DELETED"
	EventAvailabilityMaterialized = "AVAILABILITY_MATERIALIZED"
)

var ErrScheduleBusy = apperr.Conflict("schedule for this provider and date is being modified, please retry")

type Service struct {
	repo      Repository
	providers ProviderChecker
	tx        db.Transactor
	locker    redisclient.Locker
	overlap   *OverlapDetector
	recur     *RecurrenceExpander
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, providers ProviderChecker, tx db.Transactor, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		providers: providers,
		tx:        tx,
		locker:    locker,
		overlap:   NewOverlapDetector(repo),
		recur:     NewRecurrenceExpander(repo),
		log:       log.With().Str("component", "availability").Logger(),
		now:       time.Now,
	}
}

// today is the UTC calendar date used for cohort and upcoming cut-offs.
func (s *Service) today() time.Time {
	return CivilDate(s.now().UTC())
}

// Create persists a new window for providerID and generates its slots.
// The overlap check and both writes share one transaction, run under the
// provider-date lock.
func (s *Service) Create(ctx context.Context, providerID uuid.UUID, in WindowInput) (*Window, []Slot, error) {
	active, err := s.providers.IsActive(ctx, providerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load provider: %w", err)
	}
	if !active {
		return nil, nil, ErrProviderNotFound
	}
	if err := checkInput(in); err != nil {
		return nil, nil, err
	}

	w := newWindow(providerID, in)
	slots, err := s.insert(ctx, w)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("availability_id", w.ID.String()).
		Str("provider_id", providerID.String()).
		Int("slots", len(slots)).
		Msg("availability created")
	s.logEvent(ctx, EventAvailabilityCreated, w.ProviderID, w.ID, map[string]any{
		"date":  w.Date.Format("2006-01-02"),
		"start": w.StartTime.String(),
		"end":   w.EndTime.String(),
		"slots": len(slots),
	})
	return w, slots, nil
}

// insert runs overlap check, window insert, partition and slot insert as one unit.
func (s *Service) insert(ctx context.Context, w *Window) ([]Slot, error) {
	var slots []Slot
	keys := []string{redisclient.ProviderDateKey(w.ProviderID, w.Date)}

	err := s.locker.WithLock(ctx, keys, func(lockCtx context.Context) error {
		return s.tx.WithinTx(lockCtx, func(txCtx context.Context) error {
			if err := s.overlap.Check(txCtx, w.ProviderID, w.Date, w.StartTime, w.EndTime, uuid.Nil); err != nil {
				return err
			}
			if err := s.repo.InsertWindow(txCtx, w); err != nil {
				return fmt.Errorf("insert window: %w", err)
			}
			built, err := BuildSlots(w)
			if err != nil {
				return err
			}
			if err := s.repo.InsertSlots(txCtx, built); err != nil {
				return fmt.Errorf("insert slots: %w", err)
			}
			slots = built
			return nil
		})
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, ErrScheduleBusy
	}
	return slots, err
}

// Update overwrites the mutable fields of a window owned by providerID and
// regenerates its slots. Previously generated slot ids are not kept.
func (s *Service) Update(ctx context.Context, providerID, windowID uuid.UUID, in WindowInput) (*Window, []Slot, error) {
	current, err := s.ownedWindow(ctx, providerID, windowID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkInput(in); err != nil {
		return nil, nil, err
	}

	keys := []string{
		redisclient.ProviderDateKey(providerID, current.Date),
		redisclient.ProviderDateKey(providerID, CivilDate(in.Date)),
	}

	var (
		updated *Window
		slots   []Slot
	)
	err = s.locker.WithLock(ctx, keys, func(lockCtx context.Context) error {
		return s.tx.WithinTx(lockCtx, func(txCtx context.Context) error {
			// reload: the window may have changed between the first read and the lock
			fresh, err := s.ownedWindow(txCtx, providerID, windowID)
			if err != nil {
				return err
			}
			// moved by a concurrent update: its date is not covered by our keys
			if !fresh.Date.Equal(current.Date) {
				return ErrScheduleBusy
			}
			w := fresh.Window
			applyInput(&w, in)

			if err := s.overlap.Check(txCtx, providerID, w.Date, w.StartTime, w.EndTime, w.ID); err != nil {
				return err
			}
			if err := s.repo.UpdateWindow(txCtx, &w); err != nil {
				return fmt.Errorf("update window: %w", err)
			}
			if _, err := s.repo.DeleteSlotsByWindows(txCtx, []uuid.UUID{w.ID}); err != nil {
				return fmt.Errorf("delete slots: %w", err)
			}
			built, err := BuildSlots(&w)
			if err != nil {
				return err
			}
			if err := s.repo.InsertSlots(txCtx, built); err != nil {
				return fmt.Errorf("insert slots: %w", err)
			}
			updated, slots = &w, built
			return nil
		})
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, nil, ErrScheduleBusy
	}
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("availability_id", windowID.String()).
		Int("slots", len(slots)).
		Msg("availability updated")
	s.logEvent(ctx, EventAvailabilityUpdated, providerID, windowID, map[string]any{
		"previous_date": current.Date.Format("2006-01-02"),
		"date":          updated.Date.Format("2006-01-02"),
		"start":         updated.StartTime.String(),
		"end":           updated.EndTime.String(),
		"slots":         len(slots),
	})
	return updated, slots, nil
}

// Delete removes a window and its slots. With deleteRecurring on a recurring
// window, every recurring window of the provider still active today goes too.
// Slots are always removed before the windows that own them.
func (s *Service) Delete(ctx context.Context, providerID, windowID uuid.UUID, deleteRecurring bool, reason string) (DeleteResult, error) {
	var res DeleteResult

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		w, err := s.ownedWindow(txCtx, providerID, windowID)
		if err != nil {
			return err
		}

		ids := []uuid.UUID{w.ID}
		if deleteRecurring && w.IsRecurring {
			cohort, err := s.recur.ActiveCohort(txCtx, w.ProviderID, s.today())
			if err != nil {
				return err
			}
			ids = unionIDs(ids, cohort)
		}

		slots, err := s.repo.DeleteSlotsByWindows(txCtx, ids)
		if err != nil {
			return fmt.Errorf("delete slots: %w", err)
		}
		n, err := s.repo.DeleteWindows(txCtx, ids)
		if err != nil {
			return fmt.Errorf("delete windows: %w", err)
		}
		if n == 0 {
			return ErrAvailabilityNotFound
		}

		res = DeleteResult{WindowIDs: ids, SlotsDeleted: slots}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}

	s.log.Info().
		Str("availability_id", windowID.String()).
		Int("windows", len(res.WindowIDs)).
		Int64("slots", res.SlotsDeleted).
		Bool("recurring", deleteRecurring).
		Msg("availability deleted")
	s.logEvent(ctx, EventAvailabilityDeleted, providerID, windowID, map[string]any{
		"reason":           reason,
		"delete_recurring": deleteRecurring,
		"windows_deleted":  len(res.WindowIDs),
		"slots_deleted":    res.SlotsDeleted,
	})
	return res, nil
}

// MaterializeResult summarises one materialization pass.
type MaterializeResult struct {
	Roots   int
	Created int
	Skipped int
}

// MaterializeRecurring creates the missing instances of every active recurring
// series for dates in [asOf, asOf+horizon], asOf taken as a UTC date. Instances that would overlap an
// existing window are skipped and logged.
func (s *Service) MaterializeRecurring(ctx context.Context, asOf time.Time, horizon time.Duration) (MaterializeResult, error) {
	var res MaterializeResult
	asOf = asOf.UTC()

	roots, err := s.repo.FindRecurringRoots(ctx, CivilDate(asOf))
	if err != nil {
		return res, fmt.Errorf("find recurring roots: %w", err)
	}
	res.Roots = len(roots)

	for i := range roots {
		root := &roots[i]
		for _, date := range Occurrences(root, asOf, horizon) {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			exists, err := s.repo.SeriesHasDate(ctx, root.ID, date)
			if err != nil {
				return res, fmt.Errorf("check series instance: %w", err)
			}
			if exists {
				continue
			}

			inst := instanceOf(root, date)
			slots, err := s.insert(ctx, inst)
			if err != nil {
				if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrConflict) {
					s.log.Warn().Err(err).
						Str("series_id", root.ID.String()).
						Str("date", date.Format("2006-01-02")).
						Msg("skipping recurring instance")
					res.Skipped++
					continue
				}
				return res, fmt.Errorf("materialize %s on %s: %w", root.ID, date.Format("2006-01-02"), err)
			}

			res.Created++
			s.logEvent(ctx, EventAvailabilityMaterialized, inst.ProviderID, inst.ID, map[string]any{
				"series_id": root.ID.String(),
				"date":      date.Format("2006-01-02"),
				"slots":     len(slots),
			})
		}
	}
	return res, nil
}

func (s *Service) ownedWindow(ctx context.Context, providerID, windowID uuid.UUID) (*WindowDetail, error) {
	w, err := s.repo.GetWindow(ctx, windowID)
	if err != nil {
		return nil, err
	}
	// someone else's window is reported as missing
	if w.ProviderID != providerID {
		return nil, ErrAvailabilityNotFound
	}
	return w, nil
}

func (s *Service) logEvent(ctx context.Context, eventType string, providerID, availabilityID uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType:      eventType,
		ProviderID:     &providerID,
		AvailabilityID: &availabilityID,
		Payload:        data,
		CreatedAt:      s.now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("availability_id", availabilityID.String()).
			Msg("failed to insert event log")
	}
}

// checkInput holds the rules the core enforces regardless of the caller.
func checkInput(in WindowInput) error {
	if in.StartTime >= in.EndTime {
		return apperr.Validation("start time must be before end time")
	}
	if in.SlotDuration < MinSlotDuration || in.SlotDuration > MaxSlotDuration {
		return apperr.Validation("slot duration must be between %d and %d minutes", MinSlotDuration, MaxSlotDuration)
	}
	if in.BreakDuration < 0 || in.BreakDuration > MaxBreakDuration {
		return apperr.Validation("break duration must be between 0 and %d minutes", MaxBreakDuration)
	}
	if in.IsRecurring {
		if !in.RecurrencePattern.Valid() {
			return apperr.Validation("recurrence pattern is required for recurring availability")
		}
		if in.RecurrenceEndDate == nil {
			return apperr.Validation("recurrence end date is required for recurring availability")
		}
		if CivilDate(*in.RecurrenceEndDate).Before(CivilDate(in.Date)) {
			return apperr.Validation("recurrence end date must not be before the availability date")
		}
	}
	return nil
}

func newWindow(providerID uuid.UUID, in WindowInput) *Window {
	w := &Window{
		ID:                     uuid.New(),
		ProviderID:             providerID,
		Status:                 StatusAvailable,
		MaxAppointmentsPerSlot: MinPerSlot,
		Pricing:                Pricing{Currency: DefaultCurrency},
	}
	applyInput(w, in)
	return w
}

// applyInput copies the mutable fields. Location and pricing are only replaced
// when the input carries them.
func applyInput(w *Window, in WindowInput) {
	w.Date = CivilDate(in.Date)
	w.StartTime = in.StartTime
	w.EndTime = in.EndTime
	w.Timezone = in.Timezone
	w.SlotDuration = in.SlotDuration
	w.BreakDuration = in.BreakDuration
	w.IsRecurring = in.IsRecurring
	w.RecurrencePattern = ""
	w.RecurrenceEndDate = nil
	if in.IsRecurring {
		end := CivilDate(*in.RecurrenceEndDate)
		w.RecurrencePattern = in.RecurrencePattern
		w.RecurrenceEndDate = &end
	}
	if in.AppointmentType != "" {
		w.AppointmentType = in.AppointmentType
	}
	if in.Location.Type != "" {
		w.Location = in.Location
	}
	if in.Pricing != nil {
		w.Pricing = *in.Pricing
		if w.Pricing.Currency == "" {
			w.Pricing.Currency = DefaultCurrency
		}
	}
	w.Notes = in.Notes
	w.SpecialRequirements = in.SpecialRequirements
}

// instanceOf copies a recurring root onto another date within its series.
func instanceOf(root *Window, date time.Time) *Window {
	seriesID := root.ID
	inst := *root
	inst.ID = uuid.New()
	inst.SeriesID = &seriesID
	inst.Date = CivilDate(date)
	inst.Status = StatusAvailable
	inst.CurrentAppointments = 0
	inst.SpecialRequirements = append([]string(nil), root.SpecialRequirements...)
	inst.CreatedAt = time.Time{}
	inst.UpdatedAt = time.Time{}
	return &inst
}

func unionIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, list := range [][]uuid.UUID{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
