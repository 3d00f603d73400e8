// Package stats folds completed appointments into revenue totals and
// groupings by offering, day and month.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Row is one completed appointment joined with its offering's current
// price. Appointments whose offering no longer resolves are excluded
// upstream and never reach the fold.
type Row struct {
	OfferingName string
	Price        float64
	ScheduledAt  time.Time
}

type OfferingGroup struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

type DayGroup struct {
	Date    string  `json:"date"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

type MonthGroup struct {
	Month   string  `json:"month"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

type Report struct {
	TotalRevenue float64         `json:"totalRevenue"`
	TotalClients int             `json:"totalClients"`
	ByOffering   []OfferingGroup `json:"byOffering"`
	ByDay        []DayGroup      `json:"byDay"`
	ByMonth      []MonthGroup    `json:"byMonth"`
}

// Aggregate folds rows into a report. Day and month groups come back sorted
// ascending by key; offering groups keep first-seen order.
func Aggregate(rows []Row) Report {
	report := Report{
		TotalClients: len(rows),
		ByOffering:   []OfferingGroup{},
		ByDay:        []DayGroup{},
		ByMonth:      []MonthGroup{},
	}

	offeringIdx := map[string]int{}
	days := map[string]*DayGroup{}
	months := map[string]*MonthGroup{}

	for _, r := range rows {
		report.TotalRevenue += r.Price

		i, ok := offeringIdx[r.OfferingName]
		if !ok {
			i = len(report.ByOffering)
			offeringIdx[r.OfferingName] = i
			report.ByOffering = append(report.ByOffering, OfferingGroup{Name: r.OfferingName})
		}
		report.ByOffering[i].Count++
		report.ByOffering[i].Revenue += r.Price

		dayKey := r.ScheduledAt.Format("2006-01-02")
		if g, ok := days[dayKey]; ok {
			g.Count++
			g.Revenue += r.Price
		} else {
			days[dayKey] = &DayGroup{Date: dayKey, Count: 1, Revenue: r.Price}
		}

		monthKey := r.ScheduledAt.Format("2006-01")
		if g, ok := months[monthKey]; ok {
			g.Count++
			g.Revenue += r.Price
		} else {
			months[monthKey] = &MonthGroup{Month: monthKey, Count: 1, Revenue: r.Price}
		}
	}

	for _, g := range days {
		report.ByDay = append(report.ByDay, *g)
	}
	sort.Slice(report.ByDay, func(i, j int) bool { return report.ByDay[i].Date < report.ByDay[j].Date })

	for _, g := range months {
		report.ByMonth = append(report.ByMonth, *g)
	}
	sort.Slice(report.ByMonth, func(i, j int) bool { return report.ByMonth[i].Month < report.ByMonth[j].Month })

	return report
}

// Source yields the completed-appointment rows inside an optional range.
type Source interface {
	CompletedRows(ctx context.Context, from, to *time.Time) ([]Row, error)
}

type Service struct {
	src Source
}

func NewService(src Source) *Service {
	return &Service{src: src}
}

func (s *Service) Report(ctx context.Context, from, to *time.Time) (Report, error) {
	rows, err := s.src.CompletedRows(ctx, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("load completed appointments: %w", err)
	}
	return Aggregate(rows), nil
}
