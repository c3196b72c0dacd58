package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/health-first-scheduling/internal/apperr"
	"github.com/hackgods/health-first-scheduling/internal/auth"
	"github.com/hackgods/health-first-scheduling/internal/availability"
	"github.com/hackgods/health-first-scheduling/internal/pagination"
	"github.com/hackgods/health-first-scheduling/internal/provider"
)

const validToken = "valid-token"

var callerID = uuid.MustParse("5f0c1b8e-3a4d-4c55-9a7e-2f1d0e6b7c11")

type stubAvailability struct {
	createIn    availability.WindowInput
	createErr   error
	deleteArgs  []any
	search      availability.SearchFilter
	searchPage  pagination.Request
	createdFor  uuid.UUID
	createCalls int
}

func (s *stubAvailability) Create(_ context.Context, providerID uuid.UUID, in availability.WindowInput) (*availability.Window, []availability.Slot, error) {
	s.createCalls++
	s.createdFor = providerID
	s.createIn = in
	if s.createErr != nil {
		return nil, nil, s.createErr
	}
	w := &availability.Window{
		ID:              uuid.New(),
		ProviderID:      providerID,
		Date:            in.Date,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Timezone:        in.Timezone,
		SlotDuration:    in.SlotDuration,
		Status:          availability.StatusAvailable,
		AppointmentType: in.AppointmentType,
		Location:        in.Location,
	}
	slots := []availability.Slot{{ID: uuid.New(), AvailabilityID: w.ID, ProviderID: providerID}}
	return w, slots, nil
}

func (s *stubAvailability) Update(context.Context, uuid.UUID, uuid.UUID, availability.WindowInput) (*availability.Window, []availability.Slot, error) {
	return nil, nil, errors.New("not implemented")
}

func (s *stubAvailability) Delete(_ context.Context, providerID, windowID uuid.UUID, deleteRecurring bool, reason string) (availability.DeleteResult, error) {
	s.deleteArgs = []any{providerID, windowID, deleteRecurring, reason}
	return availability.DeleteResult{WindowIDs: []uuid.UUID{windowID}, SlotsDeleted: 4}, nil
}

func (s *stubAvailability) ListByProvider(context.Context, availability.ProviderFilter, pagination.Request) (pagination.Page[availability.WindowDetail], error) {
	return pagination.Page[availability.WindowDetail]{}, nil
}

func (s *stubAvailability) Search(_ context.Context, f availability.SearchFilter, page pagination.Request) (pagination.Page[availability.WindowDetail], error) {
	s.search = f
	s.searchPage = page
	return pagination.NewPage[availability.WindowDetail](nil, page, 0), nil
}

func (s *stubAvailability) Specializations(context.Context) ([]string, error) {
	return []string{"Cardiology"}, nil
}

func (s *stubAvailability) Upcoming(context.Context, uuid.UUID) ([]availability.WindowDetail, error) {
	return nil, nil
}

func (s *stubAvailability) CountAvailable(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return 7, nil
}

func (s *stubAvailability) Slots(context.Context, uuid.UUID) ([]availability.Slot, error) {
	return nil, availability.ErrAvailabilityNotFound
}

type stubProviders struct {
	registered  *provider.Registration
	deactivated uuid.UUID
}

func (s *stubProviders) Register(_ context.Context, reg provider.Registration) (*provider.Provider, error) {
	s.registered = &reg
	return &provider.Provider{ID: uuid.New(), Email: reg.Email, VerificationStatus: provider.VerificationPending, IsActive: true}, nil
}

func (s *stubProviders) Get(_ context.Context, id uuid.UUID) (*provider.Provider, error) {
	if id != callerID {
		return nil, provider.ErrProviderNotFound
	}
	return &provider.Provider{ID: id, FirstName: "Ada", LastName: "Byron", IsActive: true}, nil
}

func (s *stubProviders) Deactivate(_ context.Context, id uuid.UUID) error {
	s.deactivated = id
	return nil
}

type stubAuth struct {
	loggedOut int
}

func (s *stubAuth) Authenticate(_ context.Context, raw string) (*auth.Claims, error) {
	if raw != validToken {
		return nil, auth.ErrTokenRejected
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: callerID.String(), ID: "jti-1"}}, nil
}

func (s *stubAuth) Login(context.Context, string, string) (*auth.LoginResult, error) {
	return nil, auth.ErrInvalidCredentials
}

func (s *stubAuth) Logout(context.Context, *auth.Claims) error {
	s.loggedOut++
	return nil
}

type testServer struct {
	handler   http.Handler
	avail     *stubAvailability
	providers *stubProviders
	auth      *stubAuth
}

func newTestServer(health *HealthHandler) *testServer {
	ts := &testServer{
		avail:     &stubAvailability{},
		providers: &stubProviders{},
		auth:      &stubAuth{},
	}
	ts.handler = NewRouter(RouterConfig{
		Availability: ts.avail,
		Providers:    ts.providers,
		Auth:         ts.auth,
		Health:       health,
		Logger:       zerolog.Nop(),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func availabilityBody() map[string]any {
	return map[string]any{
		"date":       "2025-02-15",
		"start_time": "09:00",
		"end_time":   "17:00",
		"timezone":   "America/New_York",
		"location":   map[string]any{"type": "clinic", "address": "123 Medical Center Dr"},
		"pricing":    map[string]any{"base_fee": 150.00, "insurance_accepted": true, "currency": "usd"},
	}
}

func TestCreateAvailability(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/provider/availability", availabilityBody(), validToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ts.avail.createdFor != callerID {
		t.Fatalf("created for %s, want token subject %s", ts.avail.createdFor, callerID)
	}

	in := ts.avail.createIn
	if in.SlotDuration != 30 {
		t.Errorf("slot duration = %d, want default 30", in.SlotDuration)
	}
	if in.AppointmentType != availability.TypeConsultation {
		t.Errorf("appointment type = %q", in.AppointmentType)
	}
	if in.Location.Type != availability.LocationClinic {
		t.Errorf("location type = %q", in.Location.Type)
	}
	if in.Pricing == nil || in.Pricing.Currency != "USD" || in.Pricing.BaseFee.Decimal.String() != "150" {
		t.Errorf("pricing = %+v", in.Pricing)
	}

	var resp struct {
		Success bool                    `json:"success"`
		Data    WindowWithSlotsResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data.SlotsCreated != 1 || resp.Data.Availability.StartTime != "09:00" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCreateAvailabilityRequiresToken(t *testing.T) {
	ts := newTestServer(nil)

	for _, token := range []string{"", "forged"} {
		rec := ts.do(t, http.MethodPost, "/api/v1/provider/availability", availabilityBody(), token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d", token, rec.Code)
		}
		if got := decodeError(t, rec).Error; got != "unauthorized" {
			t.Errorf("token %q: error code = %q", token, got)
		}
	}
	if ts.avail.createCalls != 0 {
		t.Errorf("service called %d times without auth", ts.avail.createCalls)
	}
}

func TestCreateAvailabilityValidation(t *testing.T) {
	ts := newTestServer(nil)

	body := availabilityBody()
	body["start_time"] = "9am"
	body["slot_duration"] = 5
	body["is_recurring"] = true
	delete(body, "location")

	rec := ts.do(t, http.MethodPost, "/api/v1/provider/availability", body, validToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeError(t, rec)
	for _, field := range []string{"start_time", "slot_duration", "recurrence_pattern", "recurrence_end_date", "location"} {
		if _, ok := resp.Details[field]; !ok {
			t.Errorf("missing detail for %s in %v", field, resp.Details)
		}
	}
	if ts.avail.createCalls != 0 {
		t.Error("service must not run on invalid input")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"conflict", apperr.Conflict("overlaps an existing window"), http.StatusConflict, "conflict", "overlaps an existing window"},
		{"not found", availability.ErrProviderNotFound, http.StatusNotFound, "not_found", ""},
		{"validation", apperr.Validation("bad"), http.StatusBadRequest, "validation_error", "bad"},
		{"wrapped conflict", errors.Join(errors.New("ctx"), availability.ErrScheduleBusy), http.StatusConflict, "conflict", ""},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(nil)
			ts.avail.createErr = tt.err

			rec := ts.do(t, http.MethodPost, "/api/v1/provider/availability", availabilityBody(), validToken)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeError(t, rec)
			if resp.Success || resp.Error != tt.wantCode {
				t.Errorf("envelope = %+v", resp)
			}
			if tt.wantMsg != "" && resp.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMsg)
			}
		})
	}
}

func TestDeleteAvailabilityPassesFlags(t *testing.T) {
	ts := newTestServer(nil)
	windowID := uuid.New()

	rec := ts.do(t, http.MethodDelete, "/api/v1/provider/availability/"+windowID.String()+"?delete_recurring=true&reason=vacation", nil, validToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	want := []any{callerID, windowID, true, "vacation"}
	for i := range want {
		if ts.avail.deleteArgs[i] != want[i] {
			t.Errorf("arg %d = %v, want %v", i, ts.avail.deleteArgs[i], want[i])
		}
	}

	rec = ts.do(t, http.MethodDelete, "/api/v1/provider/availability/"+windowID.String()+"?delete_recurring=maybe", nil, validToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad flag: status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/api/v1/provider/availability/not-a-uuid", nil, validToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d", rec.Code)
	}
}

func TestSearchParsesQuery(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/provider/availability/search?start_date=2025-02-15&end_date=2025-02-20&specialization=cardio&location=Boston&appointment_type=telemedicine&insurance_accepted=true&max_price=200.50&page=1&size=5&sort=baseFee&direction=desc", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	f := ts.avail.search
	if f.From.Format(dateLayout) != "2025-02-15" || f.To.Format(dateLayout) != "2025-02-20" {
		t.Errorf("range = %s..%s", f.From, f.To)
	}
	if f.Specialization != "cardio" || f.Location != "Boston" {
		t.Errorf("text filters = %q %q", f.Specialization, f.Location)
	}
	if f.AppointmentType != availability.TypeTelemedicine {
		t.Errorf("appointment type = %q", f.AppointmentType)
	}
	if f.InsuranceAccepted == nil || !*f.InsuranceAccepted {
		t.Errorf("insurance accepted = %v", f.InsuranceAccepted)
	}
	if !f.MaxPrice.Valid || f.MaxPrice.Decimal.String() != "200.5" {
		t.Errorf("max price = %+v", f.MaxPrice)
	}
	if p := ts.avail.searchPage; p.Page != 1 || p.Size != 5 || !p.Desc {
		t.Errorf("page = %+v", p)
	}
}

func TestSearchRequiresDates(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/provider/availability/search?end_date=2025-13-01", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	details := decodeError(t, rec).Details
	if details["start_date"] == "" || details["end_date"] == "" {
		t.Errorf("details = %v", details)
	}
}

func TestPublicReadRoutes(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/provider/availability/specializations", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("specializations: status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/provider/"+callerID.String()+"/availability/count?start_date=2025-02-01&end_date=2025-02-28", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("count: status = %d", rec.Code)
	}
	var count struct {
		Data CountResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &count); err != nil {
		t.Fatal(err)
	}
	if count.Data.Count != 7 || count.Data.StartDate != "2025-02-01" {
		t.Errorf("count = %+v", count.Data)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/provider/availability/"+uuid.NewString()+"/slots", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("slots of unknown window: status = %d", rec.Code)
	}
}

func TestDeactivateOnlySelf(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodDelete, "/api/v1/provider/"+uuid.NewString(), nil, validToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("other provider: status = %d", rec.Code)
	}
	if ts.providers.deactivated != uuid.Nil {
		t.Fatal("deactivated another provider")
	}

	rec = ts.do(t, http.MethodDelete, "/api/v1/provider/"+callerID.String(), nil, validToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("self: status = %d", rec.Code)
	}
	if ts.providers.deactivated != callerID || ts.auth.loggedOut != 1 {
		t.Errorf("deactivated = %s, logouts = %d", ts.providers.deactivated, ts.auth.loggedOut)
	}
}

func TestMeAndLogout(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/provider/me", nil, validToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/v1/provider/logout", nil, validToken)
	if rec.Code != http.StatusOK || ts.auth.loggedOut != 1 {
		t.Fatalf("logout: status = %d, logouts = %d", rec.Code, ts.auth.loggedOut)
	}
}

func TestLoginRejected(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/provider/login", map[string]string{"email": "a@b.com", "password": "wrong"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; msg != "invalid credentials" {
		t.Errorf("message = %q", msg)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/provider/login", map[string]string{}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body: status = %d", rec.Code)
	}
}

func registerBody() map[string]any {
	return map[string]any{
		"first_name":          "John",
		"last_name":           "Doe",
		"email":               "john.doe@clinic.com",
		"phone_number":        "+1234567890",
		"password":            "SecurePassword123!",
		"confirm_password":    "SecurePassword123!",
		"specialization":      "Cardiology",
		"license_number":      "MD123456789",
		"years_of_experience": 10,
		"clinic_address": map[string]any{
			"street": "123 Medical Center Dr",
			"city":   "New York",
			"state":  "NY",
			"zip":    "10001",
		},
	}
}

func TestRegister(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/provider/register", registerBody(), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ts.providers.registered == nil || ts.providers.registered.ClinicAddress.Zip != "10001" {
		t.Errorf("registered = %+v", ts.providers.registered)
	}

	body := registerBody()
	body["password"] = "password"
	body["phone_number"] = "555-1234"
	body["clinic_address"] = map[string]any{"street": "x", "city": "y", "state": "z", "zip": "1234"}
	rec = ts.do(t, http.MethodPost, "/api/v1/provider/register", body, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid: status = %d", rec.Code)
	}
	details := decodeError(t, rec).Details
	for _, field := range []string{"password", "phone_number", "clinic_address.zip"} {
		if details[field] == "" {
			t.Errorf("missing detail for %s in %v", field, details)
		}
	}
}

func TestStrongPassword(t *testing.T) {
	tests := map[string]bool{
		"SecurePassword123!": true,
		"Aa1@aaaa":           true,
		"Aa1@aaa":            false,
		"securepassword1!":   false,
		"SECUREPASSWORD1!":   false,
		"SecurePassword!":    false,
		"SecurePassword123":  false,
		"Secure Password1!":  false,
		"Sécure1!x":          false,
	}
	for pw, want := range tests {
		if got := strongPassword(pw); got != want {
			t.Errorf("strongPassword(%q) = %v, want %v", pw, got, want)
		}
	}
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name       string
		postgres   PingFunc
		redis      PingFunc
		wantStatus int
		wantBody   string
	}{
		{"all up", ok, ok, http.StatusOK, "ok"},
		{"redis down", ok, down, http.StatusOK, "degraded"},
		{"postgres down", down, ok, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(NewHealthHandler(tt.postgres, tt.redis, "test", "v1"))

			rec := ts.do(t, http.MethodGet, "/health/ready", nil, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp ReadinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("status field = %q, want %q", resp.Status, tt.wantBody)
			}
		})
	}

	ts := newTestServer(NewHealthHandler(ok, ok, "test", "v1"))
	rec := ts.do(t, http.MethodGet, "/health/live", nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("live: status = %d, request id = %q", rec.Code, rec.Header().Get("X-Request-ID"))
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
