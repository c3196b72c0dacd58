package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/db"
	"github.com/hackgods/health-first-scheduling/internal/pagination"
)

const constraintNoOverlap = "provider_availability_no_overlap"

const windowColumns = `
	a.id, a.provider_id, a.series_id, a.date, a.start_time, a.end_time, a.timezone,
	a.slot_duration, a.break_duration, a.is_recurring, a.recurrence_pattern, a.recurrence_end_date,
	a.status, a.max_appointments_per_slot, a.current_appointments, a.appointment_type,
	a.location_type, a.location_address, a.location_room,
	a.base_fee, a.insurance_accepted, a.currency,
	a.notes, a.special_requirements, a.created_at, a.updated_at`

const detailColumns = windowColumns + `,
	p.first_name || ' ' || p.last_name, p.specialization`

const detailFrom = `
	FROM provider_availability a
	JOIN providers p ON p.id = a.provider_id`

const slotColumns = `
	id, availability_id, provider_id, slot_start_time, slot_end_time, status,
	patient_id, appointment_type, booking_reference, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func minutesOf(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func pgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// scanWindow reads windowColumns followed by any extra destinations.
func scanWindow(row pgx.Row, w *Window, extra ...any) error {
	var (
		start, end                    pgtype.Time
		pattern, address, room, notes *string
		baseFee                       *string
		requirements                  []string
	)

	dest := []any{
		&w.ID,
		&w.ProviderID,
		&w.SeriesID,
		&w.Date,
		&start,
		&end,
		&w.Timezone,
		&w.SlotDuration,
		&w.BreakDuration,
		&w.IsRecurring,
		&pattern,
		&w.RecurrenceEndDate,
		&w.Status,
		&w.MaxAppointmentsPerSlot,
		&w.CurrentAppointments,
		&w.AppointmentType,
		&w.Location.Type,
		&address,
		&room,
		&baseFee,
		&w.Pricing.InsuranceAccepted,
		&w.Pricing.Currency,
		&notes,
		&requirements,
		&w.CreatedAt,
		&w.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAvailabilityNotFound
		}
		return err
	}

	w.StartTime = minutesOf(start)
	w.EndTime = minutesOf(end)
	if pattern != nil {
		w.RecurrencePattern = RecurrencePattern(*pattern)
	}
	if address != nil {
		w.Location.Address = *address
	}
	if room != nil {
		w.Location.RoomNumber = *room
	}
	if notes != nil {
		w.Notes = *notes
	}
	if baseFee != nil {
		fee, err := decimal.NewFromString(*baseFee)
		if err != nil {
			return fmt.Errorf("parse base fee %q: %w", *baseFee, err)
		}
		w.Pricing.BaseFee = decimal.NewNullDecimal(fee)
	}
	w.SpecialRequirements = requirements
	return nil
}

func scanDetail(row pgx.Row) (*WindowDetail, error) {
	var d WindowDetail
	if err := scanWindow(row, &d.Window, &d.ProviderName, &d.ProviderSpecialization); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.AvailabilityID,
		&s.ProviderID,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.PatientID,
		&s.AppointmentType,
		&s.BookingReference,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectWindows(rows pgx.Rows) ([]Window, error) {
	defer rows.Close()

	var result []Window
	for rows.Next() {
		var w Window
		if err := scanWindow(rows, &w); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectDetails(rows pgx.Rows) ([]WindowDetail, error) {
	defer rows.Close()

	var result []WindowDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// mapWriteErr turns constraint violations into domain errors.
func mapWriteErr(err error) error {
	if name, ok := db.ExclusionViolation(err); ok && name == constraintNoOverlap {
		return apperr.Conflict("time slot overlaps with existing availability")
	}
	if name, ok := db.UniqueViolation(err); ok {
		return apperr.Conflict("duplicate value violates %s", name)
	}
	if name, ok := db.CheckViolation(err); ok {
		return apperr.Validation("value violates %s", name)
	}
	return err
}

// Interface methods

func (r *PgRepository) GetWindow(ctx context.Context, id uuid.UUID) (*WindowDetail, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+detailColumns+detailFrom+`
		WHERE a.id = $1
	`, id)
	return scanDetail(row)
}

func (r *PgRepository) FindByProviderAndDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Window, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+windowColumns+`
		FROM provider_availability a
		WHERE a.provider_id = $1 AND a.date = $2
		ORDER BY a.start_time
	`, providerID, CivilDate(date))
	if err != nil {
		return nil, err
	}
	return collectWindows(rows)
}

func (r *PgRepository) FindActiveRecurring(ctx context.Context, providerID uuid.UUID, asOf time.Time) ([]Window, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+windowColumns+`
		FROM provider_availability a
		WHERE a.provider_id = $1
		  AND a.is_recurring = TRUE
		  AND a.recurrence_end_date >= $2
	`, providerID, CivilDate(asOf))
	if err != nil {
		return nil, err
	}
	return collectWindows(rows)
}

func (r *PgRepository) FindRecurringRoots(ctx context.Context, asOf time.Time) ([]Window, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+windowColumns+detailFrom+`
		WHERE a.is_recurring = TRUE
		  AND a.series_id IS NULL
		  AND a.recurrence_end_date >= $1
		  AND p.is_active = TRUE
		ORDER BY a.date, a.start_time
	`, CivilDate(asOf))
	if err != nil {
		return nil, err
	}
	return collectWindows(rows)
}

func (r *PgRepository) SeriesHasDate(ctx context.Context, seriesID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM provider_availability
			WHERE series_id = $1 AND date = $2
		)
	`, seriesID, CivilDate(date)).Scan(&exists)
	return exists, err
}

func (r *PgRepository) InsertWindow(ctx context.Context, w *Window) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO provider_availability (
			id, provider_id, series_id, date, start_time, end_time, timezone,
			slot_duration, break_duration, is_recurring, recurrence_pattern, recurrence_end_date,
			status, max_appointments_per_slot, current_appointments, appointment_type,
			location_type, location_address, location_room,
			base_fee, insurance_accepted, currency, notes, special_requirements,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, now(), now())
		RETURNING created_at, updated_at
	`,
		w.ID, w.ProviderID, w.SeriesID, w.Date, pgTime(w.StartTime), pgTime(w.EndTime), w.Timezone,
		w.SlotDuration, w.BreakDuration, w.IsRecurring, nullableString(string(w.RecurrencePattern)), w.RecurrenceEndDate,
		string(w.Status), w.MaxAppointmentsPerSlot, w.CurrentAppointments, string(w.AppointmentType),
		string(w.Location.Type), nullableString(w.Location.Address), nullableString(w.Location.RoomNumber),
		nullableDecimal(w.Pricing.BaseFee), w.Pricing.InsuranceAccepted, w.Pricing.Currency,
		nullableString(w.Notes), nonNil(w.SpecialRequirements),
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	return mapWriteErr(err)
}

func (r *PgRepository) UpdateWindow(ctx context.Context, w *Window) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE provider_availability
		SET date = $2,
		    start_time = $3,
		    end_time = $4,
		    timezone = $5,
		    slot_duration = $6,
		    break_duration = $7,
		    is_recurring = $8,
		    recurrence_pattern = $9,
		    recurrence_end_date = $10,
		    appointment_type = $11,
		    location_type = $12,
		    location_address = $13,
		    location_room = $14,
		    base_fee = $15,
		    insurance_accepted = $16,
		    currency = $17,
		    notes = $18,
		    special_requirements = $19,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`,
		w.ID, w.Date, pgTime(w.StartTime), pgTime(w.EndTime), w.Timezone,
		w.SlotDuration, w.BreakDuration, w.IsRecurring, nullableString(string(w.RecurrencePattern)), w.RecurrenceEndDate,
		string(w.AppointmentType), string(w.Location.Type), nullableString(w.Location.Address), nullableString(w.Location.RoomNumber),
		nullableDecimal(w.Pricing.BaseFee), w.Pricing.InsuranceAccepted, w.Pricing.Currency,
		nullableString(w.Notes), nonNil(w.SpecialRequirements),
	).Scan(&w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAvailabilityNotFound
	}
	return mapWriteErr(err)
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func (r *PgRepository) DeleteWindows(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM provider_availability WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertSlots bulk-loads slots with COPY.
func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) error {
	if len(slots) == 0 {
		return nil
	}
	now := time.Now()
	_, err := db.Conn(ctx, r.pool).CopyFrom(ctx,
		pgx.Identifier{"appointment_slots"},
		[]string{
			"id", "availability_id", "provider_id", "slot_start_time", "slot_end_time", "status",
			"patient_id", "appointment_type", "booking_reference", "created_at", "updated_at",
		},
		pgx.CopyFromSlice(len(slots), func(i int) ([]any, error) {
			s := slots[i]
			return []any{
				s.ID, s.AvailabilityID, s.ProviderID, s.StartTime, s.EndTime, string(s.Status),
				s.PatientID, string(s.AppointmentType), s.BookingReference, now, now,
			}, nil
		}),
	)
	return mapWriteErr(err)
}

func (r *PgRepository) DeleteSlotsByWindows(ctx context.Context, windowIDs []uuid.UUID) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM appointment_slots WHERE availability_id = ANY($1)
	`, windowIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListSlotsByWindow(ctx context.Context, windowID uuid.UUID) ([]Slot, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE availability_id = $1
		ORDER BY slot_start_time
	`, windowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// pagedDetails runs a count and a page query over the same filter.
func (r *PgRepository) pagedDetails(ctx context.Context, where whereBuilder, page pagination.Request) ([]WindowDetail, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT count(*)`+detailFrom+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	n := where.next()
	query := `SELECT ` + detailColumns + detailFrom + where.sql() +
		fmt.Sprintf(" ORDER BY %s, a.id LIMIT $%d OFFSET $%d", page.OrderBy(SortColumns), n, n+1)
	args := append(where.args, page.Size, page.Offset())

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectDetails(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PgRepository) ListByProvider(ctx context.Context, f ProviderFilter, page pagination.Request) ([]WindowDetail, int, error) {
	return r.pagedDetails(ctx, providerWhere(f), page)
}

func (r *PgRepository) Search(ctx context.Context, f SearchFilter, page pagination.Request) ([]WindowDetail, int, error) {
	return r.pagedDetails(ctx, searchWhere(f), page)
}

func (r *PgRepository) Specializations(ctx context.Context, asOf time.Time) ([]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT DISTINCT p.specialization`+detailFrom+`
		WHERE a.status = 'AVAILABLE'
		  AND a.date >= $1
		  AND p.is_active = TRUE
		ORDER BY p.specialization
	`, CivilDate(asOf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) Upcoming(ctx context.Context, providerID uuid.UUID, asOf time.Time) ([]WindowDetail, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+detailColumns+detailFrom+`
		WHERE a.provider_id = $1 AND a.date >= $2
		ORDER BY a.date, a.start_time
	`, providerID, CivilDate(asOf))
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) CountAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*)
		FROM provider_availability
		WHERE provider_id = $1
		  AND status = 'AVAILABLE'
		  AND date BETWEEN $2 AND $3
	`, providerID, CivilDate(from), CivilDate(to)).Scan(&n)
	return n, err
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO event_logs (event_type, provider_id, availability_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.ProviderID, ev.AvailabilityID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
