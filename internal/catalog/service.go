// Package catalog manages the offerings clients can book.
package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
)

const (
	minDurationMinutes = 15
	maxDurationMinutes = 480
	maxPrice           = 10000
)

// Store persists offerings. GetByID and GetByName must return errors tagged
// apperr.KindNotFound on a miss; name matching is case-insensitive.
type Store interface {
	Insert(ctx context.Context, o *model.Offering) error
	Update(ctx context.Context, o *model.Offering) error
	GetByID(ctx context.Context, id string) (model.Offering, error)
	GetByName(ctx context.Context, name string) (model.Offering, error)
	List(ctx context.Context, activeOnly bool) ([]model.Offering, error)
	Delete(ctx context.Context, id string) error
	CountAppointments(ctx context.Context, offeringID string) (int, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateInput struct {
	Name            string
	Description     string
	DurationMinutes int
	Price           float64
	Icon            string
}

type UpdateInput struct {
	Name            *string
	Description     *string
	DurationMinutes *int
	Price           *float64
	Icon            *string
	Active          *bool
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]model.Offering, error) {
	return s.store.List(ctx, activeOnly)
}

func (s *Service) Get(ctx context.Context, id string) (model.Offering, error) {
	return s.store.GetByID(ctx, id)
}

// Resolve is the lookup used by the booking flow; a miss is reported as an
// offering problem rather than a plain not-found.
func (s *Service) Resolve(ctx context.Context, id string) (model.Offering, error) {
	o, err := s.store.GetByID(ctx, id)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return model.Offering{}, apperr.New(apperr.KindOfferingNotFound, "the selected offering does not exist")
	}
	return o, err
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Offering, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate(in.Name, in.DurationMinutes, in.Price); err != nil {
		return model.Offering{}, err
	}
	if _, err := s.store.GetByName(ctx, in.Name); err == nil {
		return model.Offering{}, apperr.Newf(apperr.KindConflict, "an offering named %q already exists", in.Name)
	} else if !apperr.IsKind(err, apperr.KindNotFound) {
		return model.Offering{}, err
	}

	o := model.Offering{
		ID:              uuid.NewString(),
		Name:            in.Name,
		Description:     strings.TrimSpace(in.Description),
		DurationMinutes: in.DurationMinutes,
		Price:           in.Price,
		Icon:            strings.TrimSpace(in.Icon),
		Active:          true,
	}
	if err := s.store.Insert(ctx, &o); err != nil {
		return model.Offering{}, err
	}
	return o, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.Offering, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Offering{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if !strings.EqualFold(name, o.Name) {
			if _, err := s.store.GetByName(ctx, name); err == nil {
				return model.Offering{}, apperr.Newf(apperr.KindConflict, "an offering named %q already exists", name)
			} else if !apperr.IsKind(err, apperr.KindNotFound) {
				return model.Offering{}, err
			}
		}
		o.Name = name
	}
	if in.Description != nil {
		o.Description = strings.TrimSpace(*in.Description)
	}
	if in.DurationMinutes != nil {
		o.DurationMinutes = *in.DurationMinutes
	}
	if in.Price != nil {
		o.Price = *in.Price
	}
	if in.Icon != nil {
		o.Icon = strings.TrimSpace(*in.Icon)
	}
	if in.Active != nil {
		o.Active = *in.Active
	}
	if err := validate(o.Name, o.DurationMinutes, o.Price); err != nil {
		return model.Offering{}, err
	}

	if err := s.store.Update(ctx, &o); err != nil {
		return model.Offering{}, err
	}
	return o, nil
}

// Delete removes an offering that was never booked. Offerings with
// appointment history are deactivated instead, keeping statistics intact.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.store.CountAppointments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.New(apperr.KindConflict, "offering has appointments; deactivate it instead of deleting")
	}
	return s.store.Delete(ctx, id)
}

func validate(name string, durationMinutes int, price float64) error {
	if len(name) < 2 {
		return apperr.New(apperr.KindValidation, "name must be at least 2 characters")
	}
	if durationMinutes < minDurationMinutes || durationMinutes > maxDurationMinutes {
		return apperr.Newf(apperr.KindValidation, "duration must be between %d and %d minutes", minDurationMinutes, maxDurationMinutes)
	}
	if price < 0 || price > maxPrice {
		return apperr.Newf(apperr.KindValidation, "price must be between 0 and %d", maxPrice)
	}
	return nil
}
