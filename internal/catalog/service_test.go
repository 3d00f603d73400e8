package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
)

type fakeStore struct {
	offerings map[string]model.Offering
	booked    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{offerings: map[string]model.Offering{}, booked: map[string]int{}}
}

func (f *fakeStore) Insert(_ context.Context, o *model.Offering) error {
	f.offerings[o.ID] = *o
	return nil
}

func (f *fakeStore) Update(_ context.Context, o *model.Offering) error {
	if _, ok := f.offerings[o.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "offering not found")
	}
	f.offerings[o.ID] = *o
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (model.Offering, error) {
	o, ok := f.offerings[id]
	if !ok {
		return model.Offering{}, apperr.New(apperr.KindNotFound, "offering not found")
	}
	return o, nil
}

func (f *fakeStore) GetByName(_ context.Context, name string) (model.Offering, error) {
	for _, o := range f.offerings {
		if strings.EqualFold(o.Name, name) {
			return o, nil
		}
	}
	return model.Offering{}, apperr.New(apperr.KindNotFound, "offering not found")
}

func (f *fakeStore) List(_ context.Context, activeOnly bool) ([]model.Offering, error) {
	var out []model.Offering
	for _, o := range f.offerings {
		if activeOnly && !o.Active {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.offerings, id)
	return nil
}

func (f *fakeStore) CountAppointments(_ context.Context, offeringID string) (int, error) {
	return f.booked[offeringID], nil
}

func TestCreateValidatesAndActivates(t *testing.T) {
	svc := NewService(newFakeStore())
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateInput{Name: "Manicure", DurationMinutes: 60, Price: 35})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !o.Active {
		t.Fatal("new offerings must start active")
	}

	cases := map[string]CreateInput{
		"short name":     {Name: "M", DurationMinutes: 60, Price: 35},
		"duration low":   {Name: "Quick", DurationMinutes: 10, Price: 35},
		"duration high":  {Name: "Epic", DurationMinutes: 500, Price: 35},
		"negative price": {Name: "Gratis", DurationMinutes: 60, Price: -1},
		"absurd price":   {Name: "Gold", DurationMinutes: 60, Price: 10001},
	}
	for name, in := range cases {
		if _, err := svc.Create(ctx, in); !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("%s: got %v, want validation error", name, err)
		}
	}
}

func TestCreateRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	svc := NewService(newFakeStore())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Name: "Manicure", DurationMinutes: 60, Price: 35}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Name: "MANICURE", DurationMinutes: 30, Price: 20}); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("duplicate name: got %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	svc := NewService(newFakeStore())
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateInput{Name: "Manicure", DurationMinutes: 60, Price: 35})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	price := 40.0
	updated, err := svc.Update(ctx, o.ID, UpdateInput{Price: &price})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Price != 40 || updated.Name != "Manicure" || updated.DurationMinutes != 60 {
		t.Fatalf("partial update clobbered fields: %+v", updated)
	}

	active := false
	updated, err = svc.Update(ctx, o.ID, UpdateInput{Active: &active})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Active {
		t.Fatal("deactivation not applied")
	}

	bad := 5
	if _, err := svc.Update(ctx, o.ID, UpdateInput{DurationMinutes: &bad}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("invalid duration: got %v", err)
	}
}

func TestDeleteBlockedWhenBooked(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateInput{Name: "Manicure", DurationMinutes: 60, Price: 35})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	store.booked[o.ID] = 3
	if err := svc.Delete(ctx, o.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("delete of booked offering: got %v", err)
	}

	store.booked[o.ID] = 0
	if err := svc.Delete(ctx, o.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(ctx, o.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("delete of missing offering: got %v", err)
	}
}

func TestResolveRemapsNotFound(t *testing.T) {
	svc := NewService(newFakeStore())
	if _, err := svc.Resolve(context.Background(), "missing"); !apperr.IsKind(err, apperr.KindOfferingNotFound) {
		t.Fatalf("got %v, want offering-not-found", err)
	}
}
