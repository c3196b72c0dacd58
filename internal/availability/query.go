package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/pagination"
)

// SortColumns maps public sort keys to SQL columns.
var SortColumns = map[string]string{
	"createdAt": "a.created_at",
	"date":      "a.date",
	"startTime": "a.start_time",
	"baseFee":   "a.base_fee",
}

// ProviderFilter selects one provider's windows in an inclusive date range.
type ProviderFilter struct {
	ProviderID      uuid.UUID
	From            time.Time
	To              time.Time
	Status          Status          // empty = any
	AppointmentType AppointmentType // empty = any
}

// SearchFilter is the global search over AVAILABLE windows. Zero values mean
// "no constraint".
type SearchFilter struct {
	From              time.Time
	To                time.Time
	Specialization    string
	Location          string
	AppointmentType   AppointmentType
	InsuranceAccepted *bool
	MaxPrice          decimal.NullDecimal
}

// whereBuilder accumulates AND-ed clauses with positional placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

// add appends a clause; every %d in format is replaced by the new arg's position.
func (b *whereBuilder) add(format string, arg any) {
	b.args = append(b.args, arg)
	n := len(b.args)
	b.clauses = append(b.clauses, strings.ReplaceAll(format, "%d", fmt.Sprint(n)))
}

func (b *whereBuilder) raw(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *whereBuilder) sql() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func (b *whereBuilder) next() int { return len(b.args) + 1 }

func providerWhere(f ProviderFilter) whereBuilder {
	var b whereBuilder
	b.add("a.provider_id = $%d", f.ProviderID)
	b.add("a.date >= $%d", CivilDate(f.From))
	b.add("a.date <= $%d", CivilDate(f.To))
	if f.Status != "" {
		b.add("a.status = $%d", string(f.Status))
	}
	if f.AppointmentType != "" {
		b.add("a.appointment_type = $%d", string(f.AppointmentType))
	}
	return b
}

func searchWhere(f SearchFilter) whereBuilder {
	var b whereBuilder
	b.raw("a.status = 'AVAILABLE'")
	b.raw("p.is_active = TRUE")
	if !f.From.IsZero() {
		b.add("a.date >= $%d", CivilDate(f.From))
	}
	if !f.To.IsZero() {
		b.add("a.date <= $%d", CivilDate(f.To))
	}
	if s := strings.TrimSpace(f.Specialization); s != "" {
		b.add("p.specialization ILIKE $%d", containsPattern(s))
	}
	if s := strings.TrimSpace(f.Location); s != "" {
		b.add("a.location_address ILIKE $%d", containsPattern(s))
	}
	if f.AppointmentType != "" {
		b.add("a.appointment_type = $%d", string(f.AppointmentType))
	}
	if f.InsuranceAccepted != nil {
		b.add("a.insurance_accepted = $%d", *f.InsuranceAccepted)
	}
	if f.MaxPrice.Valid {
		b.add("a.base_fee <= $%d", f.MaxPrice.Decimal)
	}
	return b
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a substring LIKE pattern with metacharacters escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func checkRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return apperr.Validation("start_date and end_date are required")
	}
	if CivilDate(to).Before(CivilDate(from)) {
		return apperr.Validation("end_date must not be before start_date")
	}
	return nil
}

// ListByProvider returns one provider's windows in an inclusive date range.
func (s *Service) ListByProvider(ctx context.Context, f ProviderFilter, page pagination.Request) (pagination.Page[WindowDetail], error) {
	if err := checkRange(f.From, f.To); err != nil {
		return pagination.Page[WindowDetail]{}, err
	}
	items, total, err := s.repo.ListByProvider(ctx, f, page)
	if err != nil {
		return pagination.Page[WindowDetail]{}, fmt.Errorf("list provider availability: %w", err)
	}
	return pagination.NewPage(items, page, total), nil
}

// Search runs the global search over AVAILABLE windows.
func (s *Service) Search(ctx context.Context, f SearchFilter, page pagination.Request) (pagination.Page[WindowDetail], error) {
	if err := checkRange(f.From, f.To); err != nil {
		return pagination.Page[WindowDetail]{}, err
	}
	if f.MaxPrice.Valid && f.MaxPrice.Decimal.IsNegative() {
		return pagination.Page[WindowDetail]{}, apperr.Validation("max_price must not be negative")
	}
	items, total, err := s.repo.Search(ctx, f, page)
	if err != nil {
		return pagination.Page[WindowDetail]{}, fmt.Errorf("search availability: %w", err)
	}
	return pagination.NewPage(items, page, total), nil
}

// Specializations lists distinct specializations offering AVAILABLE windows today or later.
func (s *Service) Specializations(ctx context.Context) ([]string, error) {
	specs, err := s.repo.Specializations(ctx, s.today())
	if err != nil {
		return nil, fmt.Errorf("list specializations: %w", err)
	}
	if specs == nil {
		specs = []string{}
	}
	return specs, nil
}

// Upcoming returns the provider's windows dated today or later, by date then start time.
func (s *Service) Upcoming(ctx context.Context, providerID uuid.UUID) ([]WindowDetail, error) {
	items, err := s.repo.Upcoming(ctx, providerID, s.today())
	if err != nil {
		return nil, fmt.Errorf("list upcoming availability: %w", err)
	}
	return items, nil
}

// CountAvailable counts AVAILABLE windows for a provider in an inclusive range.
func (s *Service) CountAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int, error) {
	if err := checkRange(from, to); err != nil {
		return 0, err
	}
	n, err := s.repo.CountAvailable(ctx, providerID, CivilDate(from), CivilDate(to))
	if err != nil {
		return 0, fmt.Errorf("count available windows: %w", err)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*WindowDetail, error) {
	return s.repo.GetWindow(ctx, id)
}

// Slots returns the generated slots of a window ordered by start.
func (s *Service) Slots(ctx context.Context, windowID uuid.UUID) ([]Slot, error) {
	if _, err := s.repo.GetWindow(ctx, windowID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListSlotsByWindow(ctx, windowID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}
