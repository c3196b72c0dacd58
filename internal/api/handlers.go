package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/auth"
	"github.com/hackgods/health-first-scheduling/internal/availability"
	"github.com/hackgods/health-first-scheduling/internal/pagination"
)

// AvailabilityService is what the HTTP layer needs from availability.Service.
type AvailabilityService interface {
	Create(ctx context.Context, providerID uuid.UUID, in availability.WindowInput) (*availability.Window, []availability.Slot, error)
	Update(ctx context.Context, providerID, windowID uuid.UUID, in availability.WindowInput) (*availability.Window, []availability.Slot, error)
	Delete(ctx context.Context, providerID, windowID uuid.UUID, deleteRecurring bool, reason string) (availability.DeleteResult, error)
	ListByProvider(ctx context.Context, f availability.ProviderFilter, page pagination.Request) (pagination.Page[availability.WindowDetail], error)
	Search(ctx context.Context, f availability.SearchFilter, page pagination.Request) (pagination.Page[availability.WindowDetail], error)
	Specializations(ctx context.Context) ([]string, error)
	Upcoming(ctx context.Context, providerID uuid.UUID) ([]availability.WindowDetail, error)
	CountAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int, error)
	Slots(ctx context.Context, windowID uuid.UUID) ([]availability.Slot, error)
}

type availabilityHandler struct {
	svc    AvailabilityService
	errors errorWriter
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("could not parse JSON body")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation("%s must be a valid UUID", name)
	}
	return id, nil
}

// currentProvider is set by auth.Middleware on every protected route.
func currentProvider(r *http.Request) (uuid.UUID, error) {
	id, ok := auth.ProviderIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, auth.ErrTokenRejected
	}
	return id, nil
}

func queryDateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	errs := fieldErrors{}
	var from, to time.Time
	var err error

	if v := q.Get("start_date"); v == "" {
		errs.add("start_date", "start_date is required")
	} else if from, err = parseDate(v); err != nil {
		errs.add("start_date", "start_date must be in YYYY-MM-DD format")
	}
	if v := q.Get("end_date"); v == "" {
		errs.add("end_date", "end_date is required")
	} else if to, err = parseDate(v); err != nil {
		errs.add("end_date", "end_date must be in YYYY-MM-DD format")
	}
	return from, to, errs.err()
}

func queryPage(r *http.Request) (pagination.Request, error) {
	q := r.URL.Query()
	page, size := 0, 0
	var err error
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return pagination.Request{}, apperr.Validation("page must be a number")
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil {
			return pagination.Request{}, apperr.Validation("size must be a number")
		}
	}
	req, err := pagination.New(page, size, q.Get("sort"), q.Get("direction"), availability.SortColumns)
	if err != nil {
		return pagination.Request{}, apperr.Validation("%s", err.Error())
	}
	return req, nil
}

func queryAppointmentType(r *http.Request) (availability.AppointmentType, error) {
	v := strings.ToUpper(r.URL.Query().Get("appointment_type"))
	if v == "" {
		return "", nil
	}
	t := availability.AppointmentType(v)
	if !t.Valid() {
		return "", apperr.Validation("unknown appointment_type %q", v)
	}
	return t, nil
}

func (h *availabilityHandler) create(w http.ResponseWriter, r *http.Request) {
	providerID, err := currentProvider(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	var req AvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	in, err := req.Input(true)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	window, slots, err := h.svc.Create(r.Context(), providerID, in)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, "availability created", WindowWithSlotsResponse{
		Availability: toAvailabilityResponse(window),
		SlotsCreated: len(slots),
		Slots:        toSlotResponses(slots),
	})
}

func (h *availabilityHandler) update(w http.ResponseWriter, r *http.Request) {
	providerID, err := currentProvider(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	windowID, err := pathUUID(r, "availability_id")
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	var req AvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	in, err := req.Input(false)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	window, slots, err := h.svc.Update(r.Context(), providerID, windowID, in)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	writeData(w, http.StatusOK, "availability updated", WindowWithSlotsResponse{
		Availability: toAvailabilityResponse(window),
		SlotsCreated: len(slots),
		Slots:        toSlotResponses(slots),
	})
}

func (h *availabilityHandler) remove(w http.ResponseWriter, r *http.Request) {
	providerID, err := currentProvider(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	windowID, err := pathUUID(r, "availability_id")
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	deleteRecurring := false
	if v := r.URL.Query().Get("delete_recurring"); v != "" {
		if deleteRecurring, err = strconv.ParseBool(v); err != nil {
			h.errors.write(w, r, apperr.Validation("delete_recurring must be true or false"))
			return
		}
	}
	reason := r.URL.Query().Get("reason")

	res, err := h.svc.Delete(r.Context(), providerID, windowID, deleteRecurring, reason)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	writeData(w, http.StatusOK, "availability deleted", DeleteResponse{
		DeletedAvailabilityIDs: res.WindowIDs,
		SlotsDeleted:           res.SlotsDeleted,
	})
}

func (h *availabilityHandler) listByProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathUUID(r, "provider_id")
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	from, to, err := queryDateRange(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	page, err := queryPage(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	apptType, err := queryAppointmentType(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	filter := availability.ProviderFilter{
		ProviderID:      providerID,
		From:            from,
		To:              to,
		AppointmentType: apptType,
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = availability.Status(strings.ToUpper(v))
		if !filter.Status.Valid() {
			h.errors.write(w, r, apperr.Validation("unknown status %q", v))
			return
		}
	}

	result, err := h.svc.ListByProvider(r.Context(), filter, page)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", pagination.Map(result, toDetailResponse))
}

func (h *availabilityHandler) countAvailable(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathUUID(r, "provider_id")
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	from, to, err := queryDateRange(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	n, err := h.svc.CountAvailable(r.Context(), providerID, from, to)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", CountResponse{
		ProviderID: providerID,
		StartDate:  from.Format(dateLayout),
		EndDate:    to.Format(dateLayout),
		Count:      n,
	})
}

func (h *availabilityHandler) search(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryDateRange(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	page, err := queryPage(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	apptType, err := queryAppointmentType(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := availability.SearchFilter{
		From:            from,
		To:              to,
		Specialization:  q.Get("specialization"),
		Location:        q.Get("location"),
		AppointmentType: apptType,
	}
	if v := q.Get("insurance_accepted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.errors.write(w, r, apperr.Validation("insurance_accepted must be true or false"))
			return
		}
		filter.InsuranceAccepted = &b
	}
	if v := q.Get("max_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			h.errors.write(w, r, apperr.Validation("max_price must be a number"))
			return
		}
		filter.MaxPrice = decimal.NewNullDecimal(d)
	}

	result, err := h.svc.Search(r.Context(), filter, page)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", pagination.Map(result, toDetailResponse))
}

func (h *availabilityHandler) specializations(w http.ResponseWriter, r *http.Request) {
	specs, err := h.svc.Specializations(r.Context())
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", specs)
}

func (h *availabilityHandler) upcoming(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathUUID(r, "provider_id")
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	items, err := h.svc.Upcoming(r.Context(), providerID)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	out := make([]AvailabilityResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toDetailResponse(d))
	}
	writeData(w, http.StatusOK, "", out)
}

func (h *availabilityHandler) slots(w http.ResponseWriter, r *http.Request) {
	windowID, err := pathUUID(r, "availability_id")
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	slots, err := h.svc.Slots(r.Context(), windowID)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", toSlotResponses(slots))
}
