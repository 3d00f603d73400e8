// Package tips manages the care tips shown on the public site.
package tips

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
)

type Store interface {
	Insert(ctx context.Context, tip *model.Tip) error
	Update(ctx context.Context, tip *model.Tip) error
	GetByID(ctx context.Context, id string) (model.Tip, error)
	List(ctx context.Context, activeOnly bool) ([]model.Tip, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type Input struct {
	Title   string
	Content string
	Active  *bool
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]model.Tip, error) {
	return s.store.List(ctx, activeOnly)
}

func (s *Service) Get(ctx context.Context, id string) (model.Tip, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (model.Tip, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := validate(in.Title, in.Content); err != nil {
		return model.Tip{}, err
	}
	tip := model.Tip{
		ID:      uuid.NewString(),
		Title:   in.Title,
		Content: in.Content,
		Active:  true,
	}
	if in.Active != nil {
		tip.Active = *in.Active
	}
	if err := s.store.Insert(ctx, &tip); err != nil {
		return model.Tip{}, err
	}
	return tip, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (model.Tip, error) {
	tip, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Tip{}, err
	}
	if in.Title != "" {
		tip.Title = strings.TrimSpace(in.Title)
	}
	if in.Content != "" {
		tip.Content = strings.TrimSpace(in.Content)
	}
	if in.Active != nil {
		tip.Active = *in.Active
	}
	if err := validate(tip.Title, tip.Content); err != nil {
		return model.Tip{}, err
	}
	if err := s.store.Update(ctx, &tip); err != nil {
		return model.Tip{}, err
	}
	return tip, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func validate(title, content string) error {
	if len(title) < 3 {
		return apperr.New(apperr.KindValidation, "title must be at least 3 characters")
	}
	if len(content) < 10 {
		return apperr.New(apperr.KindValidation, "content must be at least 10 characters")
	}
	return nil
}
