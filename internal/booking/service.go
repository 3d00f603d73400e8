// Package booking implements the appointment lifecycle: creation behind the
// availability checks, status transitions with automatic archiving on
// completion, and unauthenticated verification lookups.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/internal/outbox"
	"github.com/naildiary/booking/internal/schedule"
)

const aggregateType = "appointment"

// Event types double as Kafka topic names.
const (
	EventBooked        = "booking.appointment.booked.v1"
	EventConfirmed     = "booking.appointment.confirmed.v1"
	EventCancelled     = "booking.appointment.cancelled.v1"
	EventCompleted     = "booking.appointment.completed.v1"
	EventStatusChanged = "booking.appointment.status_changed.v1"
	EventDeleted       = "booking.appointment.deleted.v1"
)

// Store persists appointments. Implementations must return errors tagged
// apperr.KindNotFound when an id, token or PIN+email pair matches nothing,
// and apperr.KindSlotUnavailable when an insert or reschedule loses the race
// against a concurrent booking for the same slot.
type Store interface {
	Insert(ctx context.Context, a *model.Appointment, evt outbox.Event) error
	Update(ctx context.Context, a *model.Appointment) error
	SetStatus(ctx context.Context, id string, status model.Status, archivedAt *time.Time, evt outbox.Event) (model.Appointment, error)
	Unarchive(ctx context.Context, id string) (model.Appointment, error)
	Delete(ctx context.Context, id string, evt outbox.Event) error
	GetByID(ctx context.Context, id string) (model.Appointment, error)
	GetByToken(ctx context.Context, token string) (model.Appointment, error)
	GetByPINAndEmail(ctx context.Context, pin, email string) (model.Appointment, error)
	List(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
}

// OfferingResolver looks up a bookable offering, failing with
// apperr.KindOfferingNotFound when the id matches nothing.
type OfferingResolver interface {
	Resolve(ctx context.Context, id string) (model.Offering, error)
}

type Service struct {
	store     Store
	offerings OfferingResolver
	checker   *schedule.Checker
	now       func() time.Time
}

func NewService(store Store, offerings OfferingResolver, checker *schedule.Checker) *Service {
	return &Service{
		store:     store,
		offerings: offerings,
		checker:   checker,
		now:       time.Now,
	}
}

type CreateInput struct {
	ClientName  string
	ClientEmail string
	ClientPhone string
	OfferingID  string
	ScheduledAt time.Time
	Notes       string

	// Status overrides the PENDING default in seeding contexts. Leave empty
	// for public bookings.
	Status model.Status
}

type UpdateInput struct {
	ClientName  *string
	ClientEmail *string
	ClientPhone *string
	OfferingID  *string
	ScheduledAt *time.Time
	Notes       *string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Appointment, error) {
	if err := validateClient(in.ClientName, in.ClientEmail, in.ClientPhone); err != nil {
		return model.Appointment{}, err
	}
	if in.OfferingID == "" {
		return model.Appointment{}, apperr.New(apperr.KindValidation, "an offering must be selected")
	}
	if in.ScheduledAt.IsZero() {
		return model.Appointment{}, apperr.New(apperr.KindValidation, "a date and time must be provided")
	}
	status := model.StatusPending
	if in.Status != "" {
		if !in.Status.Valid() {
			return model.Appointment{}, apperr.Newf(apperr.KindValidation, "unknown status %q", in.Status)
		}
		status = in.Status
	}

	off, err := s.offerings.Resolve(ctx, in.OfferingID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !off.Active {
		return model.Appointment{}, apperr.Newf(apperr.KindOfferingInactive, "%s is not currently bookable", off.Name)
	}
	if err := s.checker.CheckAvailability(ctx, in.ScheduledAt, off.DurationMinutes, ""); err != nil {
		return model.Appointment{}, err
	}

	token, err := MintToken()
	if err != nil {
		return model.Appointment{}, err
	}
	pin, err := MintPIN()
	if err != nil {
		return model.Appointment{}, err
	}

	now := s.now()
	appt := model.Appointment{
		ID:              uuid.NewString(),
		ClientName:      strings.TrimSpace(in.ClientName),
		ClientEmail:     strings.TrimSpace(in.ClientEmail),
		ClientPhone:     strings.TrimSpace(in.ClientPhone),
		OfferingID:      off.ID,
		ScheduledAt:     in.ScheduledAt,
		EndTime:         in.ScheduledAt.Add(time.Duration(off.DurationMinutes) * time.Minute),
		DurationMinutes: off.DurationMinutes,
		Status:          status,
		Token:           token,
		PIN:             pin,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	evt, err := s.event(EventBooked, appt, off.Name)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.store.Insert(ctx, &appt, evt); err != nil {
		return model.Appointment{}, err
	}
	appt.Offering = &off
	return appt, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !appt.Status.Active() {
		return model.Appointment{}, apperr.Newf(apperr.KindInvalidTransition, "a %s appointment can no longer be edited", strings.ToLower(string(appt.Status)))
	}

	if in.ClientName != nil {
		appt.ClientName = strings.TrimSpace(*in.ClientName)
	}
	if in.ClientEmail != nil {
		appt.ClientEmail = strings.TrimSpace(*in.ClientEmail)
	}
	if in.ClientPhone != nil {
		appt.ClientPhone = strings.TrimSpace(*in.ClientPhone)
	}
	if in.Notes != nil {
		appt.Notes = strings.TrimSpace(*in.Notes)
	}
	if err := validateClient(appt.ClientName, appt.ClientEmail, appt.ClientPhone); err != nil {
		return model.Appointment{}, err
	}

	reschedule := in.ScheduledAt != nil && !in.ScheduledAt.Equal(appt.ScheduledAt)
	reoffer := in.OfferingID != nil && *in.OfferingID != appt.OfferingID
	if reschedule {
		appt.ScheduledAt = *in.ScheduledAt
	}
	if reoffer {
		appt.OfferingID = *in.OfferingID
	}
	if reschedule || reoffer {
		off, err := s.offerings.Resolve(ctx, appt.OfferingID)
		if err != nil {
			return model.Appointment{}, err
		}
		if !off.Active {
			return model.Appointment{}, apperr.Newf(apperr.KindOfferingInactive, "%s is not currently bookable", off.Name)
		}
		if err := s.checker.CheckAvailability(ctx, appt.ScheduledAt, off.DurationMinutes, appt.ID); err != nil {
			return model.Appointment{}, err
		}
		appt.DurationMinutes = off.DurationMinutes
		appt.EndTime = appt.ScheduledAt.Add(time.Duration(off.DurationMinutes) * time.Minute)
	}

	appt.UpdatedAt = s.now()
	if err := s.store.Update(ctx, &appt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) Confirm(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status != model.StatusPending {
		return model.Appointment{}, apperr.New(apperr.KindInvalidTransition, "only pending appointments can be confirmed")
	}
	evt, err := s.event(EventConfirmed, appt, "")
	if err != nil {
		return model.Appointment{}, err
	}
	return s.store.SetStatus(ctx, id, model.StatusConfirmed, nil, evt)
}

func (s *Service) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	switch appt.Status {
	case model.StatusCancelled:
		return model.Appointment{}, apperr.New(apperr.KindInvalidTransition, "appointment is already cancelled")
	case model.StatusCompleted:
		return model.Appointment{}, apperr.New(apperr.KindInvalidTransition, "a completed appointment cannot be cancelled")
	}
	evt, err := s.event(EventCancelled, appt, "")
	if err != nil {
		return model.Appointment{}, err
	}
	return s.store.SetStatus(ctx, id, model.StatusCancelled, nil, evt)
}

// SetStatus is the generic transition used by the admin panel. Moving into
// COMPLETED archives the appointment in the same write.
func (s *Service) SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	if !status.Valid() {
		return model.Appointment{}, apperr.Newf(apperr.KindValidation, "unknown status %q", status)
	}
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	var archivedAt *time.Time
	eventType := EventStatusChanged
	switch status {
	case model.StatusCompleted:
		now := s.now()
		archivedAt = &now
		eventType = EventCompleted
	case model.StatusConfirmed:
		eventType = EventConfirmed
	case model.StatusCancelled:
		eventType = EventCancelled
	}
	evt, err := s.event(eventType, appt, "")
	if err != nil {
		return model.Appointment{}, err
	}
	return s.store.SetStatus(ctx, id, status, archivedAt, evt)
}

func (s *Service) Unarchive(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !appt.Archived {
		return model.Appointment{}, apperr.New(apperr.KindNotArchived, "appointment is not archived")
	}
	return s.store.Unarchive(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status != model.StatusCancelled {
		return apperr.New(apperr.KindInvalidTransition, "only cancelled appointments can be deleted")
	}
	evt, err := s.event(EventDeleted, appt, "")
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, id, evt)
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown status %q", *f.Status)
	}
	return s.store.List(ctx, f)
}

// VerifyByToken retrieves an appointment by the opaque token handed out at
// booking time. No authentication involved.
func (s *Service) VerifyByToken(ctx context.Context, token string) (model.Appointment, error) {
	token = strings.TrimSpace(token)
	if len(token) != 32 {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "no appointment matches this verification code")
	}
	return s.store.GetByToken(ctx, token)
}

// VerifyByPIN retrieves an appointment by PIN plus booking email. PINs are
// only four digits, so the email acts as the disambiguating second factor.
func (s *Service) VerifyByPIN(ctx context.Context, pin, email string) (model.Appointment, error) {
	pin = strings.TrimSpace(pin)
	if len(pin) != 4 || strings.IndexFunc(pin, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return model.Appointment{}, apperr.New(apperr.KindValidation, "the PIN must be exactly 4 digits")
	}
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Appointment{}, apperr.New(apperr.KindValidation, "a valid email address is required")
	}
	return s.store.GetByPINAndEmail(ctx, pin, email)
}

func (s *Service) event(eventType string, appt model.Appointment, offeringName string) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"client_name":    appt.ClientName,
		"client_email":   appt.ClientEmail,
		"offering_id":    appt.OfferingID,
		"offering_name":  offeringName,
		"scheduled_at":   appt.ScheduledAt.Format(time.RFC3339),
		"occurred_at":    s.now().Format(time.RFC3339),
	})
	if err != nil {
		return outbox.Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

func validateClient(name, email, phone string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return apperr.New(apperr.KindValidation, "name must be at least 2 characters")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return apperr.New(apperr.KindValidation, "a valid email address is required")
	}
	if len(strings.TrimSpace(phone)) < 10 {
		return apperr.New(apperr.KindValidation, "phone must be at least 10 characters")
	}
	return nil
}
