package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/booking"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/internal/outbox"
	"github.com/naildiary/booking/internal/schedule"
	"github.com/naildiary/booking/libs/auth"
)

// In-memory store backing the booking service for transport-level tests.
type memStore struct {
	appts map[string]model.Appointment
}

func (m *memStore) Insert(_ context.Context, a *model.Appointment, _ outbox.Event) error {
	m.appts[a.ID] = *a
	return nil
}

func (m *memStore) Update(_ context.Context, a *model.Appointment) error {
	m.appts[a.ID] = *a
	return nil
}

func (m *memStore) SetStatus(_ context.Context, id string, status model.Status, archivedAt *time.Time, _ outbox.Event) (model.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
	}
	a.Status = status
	if archivedAt != nil {
		a.Archived = true
		a.ArchivedAt = archivedAt
	}
	m.appts[id] = a
	return a, nil
}

func (m *memStore) Unarchive(_ context.Context, id string) (model.Appointment, error) {
	a := m.appts[id]
	a.Archived = false
	a.ArchivedAt = nil
	m.appts[id] = a
	return a, nil
}

func (m *memStore) Delete(_ context.Context, id string, _ outbox.Event) error {
	delete(m.appts, id)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (model.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
	}
	return a, nil
}

func (m *memStore) GetByToken(_ context.Context, token string) (model.Appointment, error) {
	for _, a := range m.appts {
		if a.Token == token {
			return a, nil
		}
	}
	return model.Appointment{}, apperr.New(apperr.KindNotFound, "no appointment matches this verification code")
}

func (m *memStore) GetByPINAndEmail(_ context.Context, pin, email string) (model.Appointment, error) {
	for _, a := range m.appts {
		if a.PIN == pin && strings.EqualFold(a.ClientEmail, email) {
			return a, nil
		}
	}
	return model.Appointment{}, apperr.New(apperr.KindNotFound, "no appointment matches this verification code")
}

func (m *memStore) List(_ context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.appts {
		if a.Archived != f.Archived {
			continue
		}
		if f.From != nil && a.ScheduledAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.ScheduledAt.Before(*f.To) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) ActiveIntervalsOn(_ context.Context, day time.Time, excludeID string) ([]schedule.Interval, error) {
	next := day.AddDate(0, 0, 1)
	var out []schedule.Interval
	for _, a := range m.appts {
		if a.ID == excludeID || !a.Status.Active() {
			continue
		}
		if a.ScheduledAt.Before(day) || !a.ScheduledAt.Before(next) {
			continue
		}
		out = append(out, schedule.Interval{Start: a.ScheduledAt, End: a.EndTime})
	}
	return out, nil
}

type memOfferings struct{}

func (memOfferings) Resolve(_ context.Context, id string) (model.Offering, error) {
	if id != "manicure" {
		return model.Offering{}, apperr.New(apperr.KindOfferingNotFound, "offering not found")
	}
	return model.Offering{ID: id, Name: "Manicure", DurationMinutes: 60, Price: 35, Active: true}, nil
}

type memSettings struct{}

func (memSettings) GetAvailability(context.Context) (*model.AvailabilityConfig, error) {
	return nil, nil
}
func (memSettings) SaveAvailability(context.Context, model.AvailabilityConfig) error { return nil }

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	store := &memStore{appts: map[string]model.Appointment{}}
	checker := schedule.NewChecker(schedule.NewPolicy(memSettings{}), store)
	svc := booking.NewService(store, memOfferings{}, checker)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewAppointmentHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/appointments", h.Create)
	mux.HandleFunc("GET /api/v1/appointments", h.List)
	mux.HandleFunc("GET /api/v1/verify/{token}", h.VerifyByToken)
	mux.HandleFunc("POST /api/v1/verify/pin", h.VerifyByPIN)
	return mux
}

func bookingBody(start time.Time) string {
	return fmt.Sprintf(`{
		"name": "Maria Silva",
		"email": "maria@example.com",
		"phone": "11987654321",
		"offeringId": "manicure",
		"scheduledAt": %q
	}`, start.Format(time.RFC3339))
}

func nextTuesday() time.Time {
	d := time.Now().AddDate(0, 0, 7)
	for d.Weekday() != time.Tuesday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local)
}

func TestCreateAndVerifyFlow(t *testing.T) {
	mux := newTestMux(t)
	start := nextTuesday().Add(10 * time.Hour)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(bookingBody(start))))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}

	var created appointmentJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.VerificationToken == "" || created.VerificationPIN == "" {
		t.Fatalf("creation response must carry the verification credentials: %+v", created)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/verify/"+created.VerificationToken, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("verify by token: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	body := fmt.Sprintf(`{"pin": %q, "email": "maria@example.com"}`, created.VerificationPIN)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/verify/pin", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("verify by pin: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateConflictMapsTo409(t *testing.T) {
	mux := newTestMux(t)
	start := nextTuesday().Add(10 * time.Hour)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(bookingBody(start))))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first booking: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(bookingBody(start.Add(30*time.Minute)))))
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlapping booking: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestListDateOnlyRangeEndIncludesWholeDay(t *testing.T) {
	mux := newTestMux(t)
	start := nextTuesday().Add(10 * time.Hour)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(bookingBody(start))))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}

	list := func(to string) []appointmentJSON {
		t.Helper()
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments?to="+to, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("list to=%s: status %d, body %s", to, rec.Code, rec.Body.String())
		}
		var out []appointmentJSON
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		return out
	}

	// A date-only range end means the whole of that day, so a 10:00
	// appointment on the named day is still in range.
	if got := list(start.Format("2006-01-02")); len(got) != 1 {
		t.Fatalf("to=booking day: got %d appointments, want 1", len(got))
	}
	if got := list(start.AddDate(0, 0, -1).Format("2006-01-02")); len(got) != 0 {
		t.Fatalf("to=day before: got %d appointments, want 0", len(got))
	}
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	mux := newTestMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindOfferingNotFound, http.StatusNotFound},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindSlotUnavailable, http.StatusConflict},
		{apperr.KindPastDate, http.StatusUnprocessableEntity},
		{apperr.KindClosedDay, http.StatusUnprocessableEntity},
		{apperr.KindOutsideHours, http.StatusUnprocessableEntity},
		{apperr.KindInvalidTransition, http.StatusUnprocessableEntity},
		{apperr.KindNotArchived, http.StatusUnprocessableEntity},
		{apperr.KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusOf(tc.kind); got != tc.want {
			t.Errorf("kind %d: status %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestRequireRole(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	protected := RequireRole("secret", "admin", logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Error("claims missing from context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	sign := func(role string) string {
		token, err := auth.SignHS256(auth.Claims{
			Sub: "user-1", Role: role,
			Iat: time.Now().Unix(), Exp: time.Now().Add(time.Hour).Unix(),
		}, "secret")
		if err != nil {
			t.Fatalf("SignHS256 failed: %v", err)
		}
		return token
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign("client"))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign("admin"))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin token: status %d", rec.Code)
	}
}
