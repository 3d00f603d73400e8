package model

import "time"

// Status is the appointment lifecycle state. PENDING and CONFIRMED
// appointments occupy calendar time; CANCELLED and COMPLETED do not.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether an appointment in this status blocks the calendar.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Appointment struct {
	ID              string
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	OfferingID      string
	ScheduledAt     time.Time
	EndTime         time.Time
	DurationMinutes int
	Status          Status
	Archived        bool
	ArchivedAt      *time.Time
	Token           string
	PIN             string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Offering is populated on reads that join the catalog; nil otherwise.
	Offering *Offering
}

type Offering struct {
	ID              string
	Name            string
	Description     string
	DurationMinutes int
	Price           float64
	Icon            string
	Active          bool
	CreatedAt       time.Time
}

type Tip struct {
	ID        string
	Title     string
	Content   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// AvailabilityConfig is the business-hours policy: which weekdays accept
// bookings (time.Weekday numbering, 0 = Sunday) and the open/close hours.
// A booking at close hour or later is rejected; one at the last open hour
// is accepted.
type AvailabilityConfig struct {
	Weekdays  []int `json:"availableWeekdays"`
	OpenHour  int   `json:"openHour"`
	CloseHour int   `json:"closeHour"`
}

// DefaultAvailability is used until an explicit configuration is saved:
// Tuesday through Saturday, 08:00-18:00.
func DefaultAvailability() AvailabilityConfig {
	return AvailabilityConfig{
		Weekdays:  []int{2, 3, 4, 5, 6},
		OpenHour:  8,
		CloseHour: 18,
	}
}

func (c AvailabilityConfig) AllowsWeekday(d time.Weekday) bool {
	for _, wd := range c.Weekdays {
		if wd == int(d) {
			return true
		}
	}
	return false
}

type AppointmentFilter struct {
	Status   *Status
	From     *time.Time
	To       *time.Time
	Archived bool
}
