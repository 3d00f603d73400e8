package stats

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate(nil)
	if r.TotalRevenue != 0 || r.TotalClients != 0 {
		t.Fatalf("empty input produced totals: %+v", r)
	}
	if r.ByOffering == nil || r.ByDay == nil || r.ByMonth == nil {
		t.Fatal("groups must be empty slices, not nil")
	}
}

func TestAggregateTotalsAndDayGroup(t *testing.T) {
	r := Aggregate([]Row{
		{OfferingName: "Manicure", Price: 35, ScheduledAt: day(2026, 3, 10)},
		{OfferingName: "Pedicure", Price: 40, ScheduledAt: day(2026, 3, 10)},
	})
	if r.TotalRevenue != 75 {
		t.Errorf("TotalRevenue = %v, want 75", r.TotalRevenue)
	}
	if r.TotalClients != 2 {
		t.Errorf("TotalClients = %d, want 2", r.TotalClients)
	}
	if len(r.ByDay) != 1 || r.ByDay[0].Date != "2026-03-10" || r.ByDay[0].Count != 2 || r.ByDay[0].Revenue != 75 {
		t.Errorf("ByDay = %+v", r.ByDay)
	}
	if len(r.ByOffering) != 2 {
		t.Errorf("ByOffering = %+v", r.ByOffering)
	}
}

func TestAggregateGroupsSortedAscending(t *testing.T) {
	r := Aggregate([]Row{
		{OfferingName: "Manicure", Price: 35, ScheduledAt: day(2026, 4, 2)},
		{OfferingName: "Manicure", Price: 35, ScheduledAt: day(2026, 3, 15)},
		{OfferingName: "Manicure", Price: 35, ScheduledAt: day(2026, 3, 1)},
	})
	wantDays := []string{"2026-03-01", "2026-03-15", "2026-04-02"}
	if len(r.ByDay) != 3 {
		t.Fatalf("ByDay = %+v", r.ByDay)
	}
	for i, want := range wantDays {
		if r.ByDay[i].Date != want {
			t.Errorf("ByDay[%d] = %s, want %s", i, r.ByDay[i].Date, want)
		}
	}
	if len(r.ByMonth) != 2 || r.ByMonth[0].Month != "2026-03" || r.ByMonth[1].Month != "2026-04" {
		t.Fatalf("ByMonth = %+v", r.ByMonth)
	}
	if r.ByMonth[0].Count != 2 || r.ByMonth[0].Revenue != 70 {
		t.Errorf("March group = %+v", r.ByMonth[0])
	}
}

func TestAggregateOfferingAccumulation(t *testing.T) {
	r := Aggregate([]Row{
		{OfferingName: "Manicure", Price: 35, ScheduledAt: day(2026, 3, 10)},
		{OfferingName: "Spa Day", Price: 120, ScheduledAt: day(2026, 3, 11)},
		{OfferingName: "Manicure", Price: 35, ScheduledAt: day(2026, 3, 12)},
	})
	if len(r.ByOffering) != 2 {
		t.Fatalf("ByOffering = %+v", r.ByOffering)
	}
	for _, g := range r.ByOffering {
		switch g.Name {
		case "Manicure":
			if g.Count != 2 || g.Revenue != 70 {
				t.Errorf("Manicure group = %+v", g)
			}
		case "Spa Day":
			if g.Count != 1 || g.Revenue != 120 {
				t.Errorf("Spa Day group = %+v", g)
			}
		default:
			t.Errorf("unexpected group %+v", g)
		}
	}
}
