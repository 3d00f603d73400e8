// Package schedule decides when the calendar accepts bookings: the
// business-hours policy, the conflict check against existing appointments,
// and the per-day occupied-slot view.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
)

// SettingsStore persists the availability configuration. GetAvailability
// returns (nil, nil) when no configuration has ever been saved.
type SettingsStore interface {
	GetAvailability(ctx context.Context) (*model.AvailabilityConfig, error)
	SaveAvailability(ctx context.Context, cfg model.AvailabilityConfig) error
}

// Policy serves the current availability configuration, falling back to
// model.DefaultAvailability until one is saved. Reads are cached after the
// first hit; Set refreshes the cache.
type Policy struct {
	store SettingsStore

	mu     sync.RWMutex
	cached *model.AvailabilityConfig
}

func NewPolicy(store SettingsStore) *Policy {
	return &Policy{store: store}
}

func (p *Policy) Get(ctx context.Context) (model.AvailabilityConfig, error) {
	p.mu.RLock()
	if p.cached != nil {
		cfg := *p.cached
		p.mu.RUnlock()
		return cfg, nil
	}
	p.mu.RUnlock()

	cfg, err := p.store.GetAvailability(ctx)
	if err != nil {
		return model.AvailabilityConfig{}, fmt.Errorf("load availability config: %w", err)
	}
	if cfg == nil {
		return model.DefaultAvailability(), nil
	}

	p.mu.Lock()
	p.cached = cfg
	p.mu.Unlock()
	return *cfg, nil
}

func (p *Policy) Set(ctx context.Context, cfg model.AvailabilityConfig) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	sort.Ints(cfg.Weekdays)
	if err := p.store.SaveAvailability(ctx, cfg); err != nil {
		return fmt.Errorf("save availability config: %w", err)
	}

	p.mu.Lock()
	p.cached = &cfg
	p.mu.Unlock()
	return nil
}

// ValidateConfig rejects empty weekday sets, out-of-range values and
// inverted or zero-width opening windows.
func ValidateConfig(cfg model.AvailabilityConfig) error {
	if len(cfg.Weekdays) == 0 {
		return apperr.New(apperr.KindValidation, "at least one weekday must be open for bookings")
	}
	seen := map[int]bool{}
	for _, wd := range cfg.Weekdays {
		if wd < 0 || wd > 6 {
			return apperr.Newf(apperr.KindValidation, "weekday %d is out of range (0=Sunday .. 6=Saturday)", wd)
		}
		if seen[wd] {
			return apperr.Newf(apperr.KindValidation, "weekday %d appears more than once", wd)
		}
		seen[wd] = true
	}
	if cfg.OpenHour < 0 || cfg.OpenHour > 23 {
		return apperr.Newf(apperr.KindValidation, "open hour %d is out of range", cfg.OpenHour)
	}
	if cfg.CloseHour < 1 || cfg.CloseHour > 23 {
		return apperr.Newf(apperr.KindValidation, "close hour %d is out of range", cfg.CloseHour)
	}
	if cfg.OpenHour >= cfg.CloseHour {
		return apperr.New(apperr.KindValidation, "open hour must be before close hour")
	}
	return nil
}
