package weekly

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/parkdash/internal/model"
	"github.com/verte-zerg/parkdash/internal/timefmt"
)

func occurrence(t *testing.T, code, date string, last, volunteers int) model.EventOccurrence {
	t.Helper()
	d, err := timefmt.ParseQueryDate(date)
	if err != nil {
		t.Fatalf("parse %q: %v", date, err)
	}
	return model.EventOccurrence{EventCode: code, EventDate: d, LastPosition: last, Volunteers: volunteers}
}

func TestAggregateSingleMonth(t *testing.T) {
	rows := Aggregate([]model.EventOccurrence{
		occurrence(t, "A", "2024-03-02", 50, 5),
		occurrence(t, "A", "2024-03-09", 48, 6),
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := model.WeekMatrixRow{
		MonthLabel: "March - 2024",
		Weeks:      [5]string{"A:50(5)", "A:48(6)", "", "", ""},
	}
	if rows[0] != want {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestAggregateKeepsFirstSeenOrder(t *testing.T) {
	rows := Aggregate([]model.EventOccurrence{
		occurrence(t, "A", "2024-05-04", 10, 1),
		occurrence(t, "A", "2023-12-30", 20, 2),
		occurrence(t, "A", "2024-05-25", 30, 3),
		occurrence(t, "A", "2024-01-06", 40, 4),
	})
	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row.MonthLabel)
	}
	got := strings.Join(labels, "|")
	if got != "May - 2024|December - 2023|January - 2024" {
		t.Fatalf("unexpected order: %s", got)
	}
	if rows[0].Weeks[0] != "A:10(1)" || rows[0].Weeks[3] != "A:30(3)" {
		t.Fatalf("unexpected May cells: %+v", rows[0].Weeks)
	}
	if rows[1].Weeks[4] != "A:20(2)" {
		t.Fatalf("expected day 30 in week 5, got %+v", rows[1].Weeks)
	}
}

func TestAggregateLastWriteWins(t *testing.T) {
	rows := Aggregate([]model.EventOccurrence{
		occurrence(t, "A", "2024-03-01", 50, 5),
		occurrence(t, "B", "2024-03-07", 60, 7),
	})
	if len(rows) != 1 || rows[0].Weeks[0] != "B:60(7)" {
		t.Fatalf("expected later occurrence to win, got %+v", rows)
	}
}

func TestAggregateSlotsMatchDayOfMonth(t *testing.T) {
	var occs []model.EventOccurrence
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for day := start; day.Year() == 2023; day = day.AddDate(0, 0, 3) {
		occs = append(occs, model.EventOccurrence{EventCode: "X", EventDate: timefmt.FromTime(day), LastPosition: day.Day()})
	}
	rows := Aggregate(occs)
	if len(rows) != 12 {
		t.Fatalf("expected 12 months, got %d", len(rows))
	}
	for _, row := range rows {
		for i, cell := range row.Weeks {
			if cell == "" {
				continue
			}
			var day int
			if _, err := fmt.Sscanf(cell, "X:%d(0)", &day); err != nil {
				t.Fatalf("parse cell %q: %v", cell, err)
			}
			if slot, _ := WeekSlot(day); slot != i+1 {
				t.Fatalf("day %d in slot %d, expected %d", day, i+1, slot)
			}
		}
	}
}

func TestWeekSlotBounds(t *testing.T) {
	cases := map[int]int{1: 1, 7: 1, 8: 2, 28: 4, 29: 5, 31: 5}
	for day, want := range cases {
		got, ok := WeekSlot(day)
		if !ok || got != want {
			t.Fatalf("WeekSlot(%d) = %d, %v; want %d", day, got, ok, want)
		}
	}
	for _, day := range []int{0, -1, 36} {
		if _, ok := WeekSlot(day); ok {
			t.Fatalf("expected day %d to be rejected", day)
		}
	}
}

func TestAggregateSkipsInvalidDates(t *testing.T) {
	rows := Aggregate([]model.EventOccurrence{
		{EventCode: "A", EventDate: timefmt.Date{Year: 2024, Month: time.February, Day: 30}},
		{EventCode: "A"},
	})
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestDisplayCells(t *testing.T) {
	row := model.WeekMatrixRow{MonthLabel: "March - 2024", Weeks: [5]string{"A:1(1)"}}
	got := strings.Join(DisplayCells(row), ",")
	if got != "A:1(1),-,-,-,-" {
		t.Fatalf("unexpected cells: %s", got)
	}
	if strings.Join(Headers(), ",") != "Date,Wk 1,Wk 2,Wk 3,Wk 4,Wk 5" {
		t.Fatalf("unexpected headers: %v", Headers())
	}
}
