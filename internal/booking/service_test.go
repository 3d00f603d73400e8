package booking

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/internal/outbox"
	"github.com/naildiary/booking/internal/schedule"
)

// fakeStore keeps appointments in memory and also serves as the conflict
// checker's interval source, so booking flows are exercised end to end.
type fakeStore struct {
	appts  map[string]model.Appointment
	events []outbox.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{appts: make(map[string]model.Appointment)}
}

func (f *fakeStore) Insert(_ context.Context, a *model.Appointment, evt outbox.Event) error {
	f.appts[a.ID] = *a
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeStore) Update(_ context.Context, a *model.Appointment) error {
	if _, ok := f.appts[a.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "appointment not found")
	}
	f.appts[a.ID] = *a
	return nil
}

func (f *fakeStore) SetStatus(_ context.Context, id string, status model.Status, archivedAt *time.Time, evt outbox.Event) (model.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
	}
	a.Status = status
	if archivedAt != nil {
		a.Archived = true
		a.ArchivedAt = archivedAt
	}
	f.appts[id] = a
	f.events = append(f.events, evt)
	return a, nil
}

func (f *fakeStore) Unarchive(_ context.Context, id string) (model.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
	}
	a.Archived = false
	a.ArchivedAt = nil
	f.appts[id] = a
	return a, nil
}

func (f *fakeStore) Delete(_ context.Context, id string, evt outbox.Event) error {
	f.events = append(f.events, evt)
	if _, ok := f.appts[id]; !ok {
		return apperr.New(apperr.KindNotFound, "appointment not found")
	}
	delete(f.appts, id)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (model.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
	}
	return a, nil
}

func (f *fakeStore) GetByToken(_ context.Context, token string) (model.Appointment, error) {
	for _, a := range f.appts {
		if a.Token == token {
			return a, nil
		}
	}
	return model.Appointment{}, apperr.New(apperr.KindNotFound, "no appointment matches this verification code")
}

func (f *fakeStore) GetByPINAndEmail(_ context.Context, pin, email string) (model.Appointment, error) {
	for _, a := range f.appts {
		if a.PIN == pin && strings.EqualFold(a.ClientEmail, email) {
			return a, nil
		}
	}
	return model.Appointment{}, apperr.New(apperr.KindNotFound, "no appointment matches this verification code")
}

func (f *fakeStore) List(_ context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.Archived != filter.Archived {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) ActiveIntervalsOn(_ context.Context, day time.Time, excludeID string) ([]schedule.Interval, error) {
	next := day.AddDate(0, 0, 1)
	var out []schedule.Interval
	for _, a := range f.appts {
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

type fakeOfferings struct {
	byID map[string]model.Offering
}

func (f *fakeOfferings) Resolve(_ context.Context, id string) (model.Offering, error) {
	o, ok := f.byID[id]
	if !ok {
		return model.Offering{}, apperr.New(apperr.KindOfferingNotFound, "offering not found")
	}
	return o, nil
}

type memSettings struct{}

func (memSettings) GetAvailability(context.Context) (*model.AvailabilityConfig, error) {
	return nil, nil
}
func (memSettings) SaveAvailability(context.Context, model.AvailabilityConfig) error { return nil }

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	offerings := &fakeOfferings{byID: map[string]model.Offering{
		"manicure": {ID: "manicure", Name: "Manicure", DurationMinutes: 60, Price: 35, Active: true},
		"spa":      {ID: "spa", Name: "Spa Day", DurationMinutes: 120, Price: 120, Active: true},
		"retired":  {ID: "retired", Name: "Retired", DurationMinutes: 30, Price: 10, Active: false},
	}}
	checker := schedule.NewChecker(schedule.NewPolicy(memSettings{}), store)
	return NewService(store, offerings, checker), store
}

// nextTuesday returns a midnight at least a week out, so every test books
// strictly in the future on a weekday the default policy keeps open.
func nextTuesday() time.Time {
	d := time.Now().AddDate(0, 0, 7)
	for d.Weekday() != time.Tuesday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local)
}

func validInput(start time.Time) CreateInput {
	return CreateInput{
		ClientName:  "Maria Silva",
		ClientEmail: "maria@example.com",
		ClientPhone: "11987654321",
		OfferingID:  "manicure",
		ScheduledAt: start,
	}
}

func TestCreateMintsCredentialsAndSnapshots(t *testing.T) {
	svc, store := newTestService(t)
	start := nextTuesday().Add(10 * time.Hour)

	appt, err := svc.Create(context.Background(), validInput(start))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if appt.Status != model.StatusPending {
		t.Errorf("status = %s, want PENDING", appt.Status)
	}
	if len(appt.Token) != 32 {
		t.Errorf("token %q is not 32 hex chars", appt.Token)
	}
	if len(appt.PIN) != 4 || appt.PIN < "1000" {
		t.Errorf("pin %q is not in 1000-9999", appt.PIN)
	}
	if appt.DurationMinutes != 60 || !appt.EndTime.Equal(start.Add(time.Hour)) {
		t.Errorf("duration snapshot wrong: %d minutes, end %v", appt.DurationMinutes, appt.EndTime)
	}
	if appt.Archived || appt.ArchivedAt != nil {
		t.Error("new appointments must not be archived")
	}
	if len(store.events) != 1 || store.events[0].EventType != EventBooked {
		t.Fatalf("expected one %s event, got %+v", EventBooked, store.events)
	}

	var payload map[string]string
	if err := json.Unmarshal(store.events[0].Payload, &payload); err != nil {
		t.Fatalf("event payload is not valid JSON: %v", err)
	}
	if payload["appointment_id"] != appt.ID || payload["offering_name"] != "Manicure" {
		t.Errorf("event payload missing booking identity: %v", payload)
	}
	if _, err := time.Parse(time.RFC3339, payload["scheduled_at"]); err != nil {
		t.Errorf("scheduled_at %q is not RFC 3339: %v", payload["scheduled_at"], err)
	}
}

func TestCreateValidatesClientFields(t *testing.T) {
	svc, _ := newTestService(t)
	start := nextTuesday().Add(10 * time.Hour)
	ctx := context.Background()

	cases := map[string]CreateInput{}

	in := validInput(start)
	in.ClientName = "M"
	cases["short name"] = in

	in = validInput(start)
	in.ClientEmail = "not-an-email"
	cases["bad email"] = in

	in = validInput(start)
	in.ClientPhone = "12345"
	cases["short phone"] = in

	in = validInput(start)
	in.OfferingID = ""
	cases["missing offering"] = in

	in = validInput(start)
	in.ScheduledAt = time.Time{}
	cases["missing time"] = in

	in = validInput(start)
	in.Status = "MAYBE"
	cases["unknown status"] = in

	for name, input := range cases {
		if _, err := svc.Create(ctx, input); !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("%s: got %v, want validation error", name, err)
		}
	}
}

func TestCreateOfferingGuards(t *testing.T) {
	svc, _ := newTestService(t)
	start := nextTuesday().Add(10 * time.Hour)
	ctx := context.Background()

	in := validInput(start)
	in.OfferingID = "missing"
	if _, err := svc.Create(ctx, in); !apperr.IsKind(err, apperr.KindOfferingNotFound) {
		t.Errorf("unknown offering: got %v", err)
	}

	in = validInput(start)
	in.OfferingID = "retired"
	if _, err := svc.Create(ctx, in); !apperr.IsKind(err, apperr.KindOfferingInactive) {
		t.Errorf("inactive offering: got %v", err)
	}
}

func TestCreateEnforcesNoOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	day := nextTuesday()
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput(day.Add(10*time.Hour))); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := svc.Create(ctx, validInput(day.Add(10*time.Hour+30*time.Minute))); !apperr.IsKind(err, apperr.KindSlotUnavailable) {
		t.Fatalf("overlapping booking: got %v", err)
	}
	// Half-open intervals: starting exactly at the previous end succeeds.
	if _, err := svc.Create(ctx, validInput(day.Add(11*time.Hour))); err != nil {
		t.Fatalf("back-to-back booking failed: %v", err)
	}
}

func TestCancelledAppointmentsFreeTheSlot(t *testing.T) {
	svc, _ := newTestService(t)
	start := nextTuesday().Add(10 * time.Hour)
	ctx := context.Background()

	first, err := svc.Create(ctx, validInput(start))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := svc.Create(ctx, validInput(start)); err != nil {
		t.Fatalf("slot not freed after cancellation: %v", err)
	}
}

func TestUpdateReschedulesExcludingSelf(t *testing.T) {
	svc, _ := newTestService(t)
	day := nextTuesday()
	ctx := context.Background()

	appt, err := svc.Create(ctx, validInput(day.Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Shifting inside the old window only collides with itself, which the
	// checker must exclude.
	newStart := day.Add(10*time.Hour + 15*time.Minute)
	updated, err := svc.Update(ctx, appt.ID, UpdateInput{ScheduledAt: &newStart})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.ScheduledAt.Equal(newStart) || !updated.EndTime.Equal(newStart.Add(time.Hour)) {
		t.Fatalf("reschedule not applied: %+v", updated)
	}

	// Switching to a longer offering recomputes the snapshot.
	spa := "spa"
	updated, err = svc.Update(ctx, appt.ID, UpdateInput{OfferingID: &spa})
	if err != nil {
		t.Fatalf("Update offering failed: %v", err)
	}
	if updated.DurationMinutes != 120 || !updated.EndTime.Equal(newStart.Add(2*time.Hour)) {
		t.Fatalf("duration not recomputed: %+v", updated)
	}
}

func TestUpdateCollidesWithOthers(t *testing.T) {
	svc, _ := newTestService(t)
	day := nextTuesday()
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput(day.Add(10*time.Hour))); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := svc.Create(ctx, validInput(day.Add(14*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	clash := day.Add(10*time.Hour + 30*time.Minute)
	if _, err := svc.Update(ctx, second.ID, UpdateInput{ScheduledAt: &clash}); !apperr.IsKind(err, apperr.KindSlotUnavailable) {
		t.Fatalf("expected slot conflict, got %v", err)
	}
}

func TestUpdateBlockedInTerminalStates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, validInput(nextTuesday().Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, appt.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	name := "New Name"
	if _, err := svc.Update(ctx, appt.ID, UpdateInput{ClientName: &name}); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("update of cancelled appointment: got %v", err)
	}
}

func TestConfirmOnlyFromPending(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, validInput(nextTuesday().Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	confirmed, err := svc.Confirm(ctx, appt.ID)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want CONFIRMED", confirmed.Status)
	}
	if _, err := svc.Confirm(ctx, appt.ID); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("double confirm: got %v", err)
	}
	if _, err := svc.Confirm(ctx, "missing"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("confirm missing id: got %v", err)
	}
}

func TestCancelGuards(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, validInput(nextTuesday().Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, appt.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, appt.ID); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("double cancel: got %v", err)
	}

	done, err := svc.Create(ctx, validInput(nextTuesday().Add(14*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.SetStatus(ctx, done.ID, model.StatusCompleted); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, done.ID); !apperr.IsKind(err, apperr.KindInvalidTransition) {
		t.Fatalf("cancel completed: got %v", err)
	}
}

func TestCompletionArchivesAtomically(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, validInput(nextTuesday().Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	done, err := svc.SetStatus(ctx, appt.ID, model.StatusCompleted)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if done.Status != model.StatusCompleted || !done.Archived || done.ArchivedAt == nil {
		t.Fatalf("completion must archive in the same write, got %+v", done)
	}
	if store.events[len(store.events)-1].EventType != EventCompleted {
		t.Fatalf("expected %s event, got %+v", EventCompleted, store.events)
	}

	// Other statuses leave the archive flag untouched.
	other, err := svc.Create(ctx, validInput(nextTuesday().Add(14*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	moved, err := svc.SetStatus(ctx, other.ID, model.StatusConfirmed)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if moved.Archived || moved.ArchivedAt != nil {
		t.Fatalf("non-completion transition must not archive, got %+v", moved)
	}

	if _, err := svc.SetStatus(ctx, other.ID, "BOGUS"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("bogus status: got %v", err)
	}
}

func TestUnarchive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, validInput(nextTuesday().Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Unarchive(ctx, appt.ID); !apperr.IsKind(err, apperr.KindNotArchived) {
		t.Fatalf("unarchive of live appointment: got %v", err)
	}

	if _, err := svc.SetStatus(ctx, appt.ID, model.StatusCompleted); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	restored, err := svc.Unarchive(ctx, appt.ID)
	if err != nil {
		t.Fatalf("Unarchive failed: %v", err)
	}
	if restored.Archived || restored.ArchivedAt != nil {
		t.Fatalf("archive flags not cleared: %+v", restored)
	}
	if restored.Status != model.StatusCompleted {
		t.Fatalf("unarchive must not change status, got %s", restored.Status)
	}
}

func TestDeleteOnlyCancelled(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, validInput(nextTuesday().Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, status := range []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusCompleted} {
		if _, err := svc.SetStatus(ctx, appt.ID, status); err != nil {
			t.Fatalf("SetStatus(%s) failed: %v", status, err)
		}
		if err := svc.Delete(ctx, appt.ID); !apperr.IsKind(err, apperr.KindInvalidTransition) {
			t.Fatalf("delete in %s: got %v", status, err)
		}
	}

	if _, err := svc.SetStatus(ctx, appt.ID, model.StatusCancelled); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := svc.Delete(ctx, appt.ID); err != nil {
		t.Fatalf("delete of cancelled appointment failed: %v", err)
	}
	if _, ok := store.appts[appt.ID]; ok {
		t.Fatal("record still present after delete")
	}
	if last := store.events[len(store.events)-1]; last.EventType != EventDeleted {
		t.Fatalf("expected %s event, got %s", EventDeleted, last.EventType)
	}
	if err := svc.Delete(ctx, appt.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("delete of missing id: got %v", err)
	}
}

func TestVerificationLookups(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, validInput(nextTuesday().Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	byToken, err := svc.VerifyByToken(ctx, appt.Token)
	if err != nil {
		t.Fatalf("VerifyByToken failed: %v", err)
	}
	if byToken.ID != appt.ID {
		t.Fatalf("token lookup returned %s, want %s", byToken.ID, appt.ID)
	}
	if _, err := svc.VerifyByToken(ctx, strings.Repeat("0", 32)); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("unknown token: got %v", err)
	}
	if _, err := svc.VerifyByToken(ctx, "short"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("malformed token: got %v", err)
	}

	byPIN, err := svc.VerifyByPIN(ctx, appt.PIN, appt.ClientEmail)
	if err != nil {
		t.Fatalf("VerifyByPIN failed: %v", err)
	}
	if byPIN.ID != appt.ID {
		t.Fatalf("pin lookup returned %s, want %s", byPIN.ID, appt.ID)
	}
	if _, err := svc.VerifyByPIN(ctx, appt.PIN, "other@example.com"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("pin with wrong email: got %v", err)
	}
	if _, err := svc.VerifyByPIN(ctx, "12ab", appt.ClientEmail); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("malformed pin: got %v", err)
	}
}

func TestMintPIN(t *testing.T) {
	for i := 0; i < 200; i++ {
		pin, err := MintPIN()
		if err != nil {
			t.Fatalf("MintPIN failed: %v", err)
		}
		if len(pin) != 4 || pin < "1000" || pin > "9999" {
			t.Fatalf("pin %q outside 1000-9999", pin)
		}
	}
}
