package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/verte-zerg/parkdash/internal/model"
	"github.com/verte-zerg/parkdash/internal/timefmt"
)

func TestWriteRoundTrips(t *testing.T) {
	d1, _ := timefmt.NewDate(2024, time.February, 3)
	d2, _ := timefmt.NewDate(2024, time.February, 10)
	occurrences := []model.EventOccurrence{
		{EventCode: "bushy", EventDate: d1, LastPosition: 412, Volunteers: 35},
		{EventCode: "bushy", EventDate: d2, LastPosition: 398, Volunteers: 31},
		{EventCode: "bushy", EventDate: timefmt.Date{Year: 2024, Month: time.February, Day: 30}},
	}
	var buf bytes.Buffer
	stamp := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	if err := Write(&buf, "bushy", occurrences, stamp); err != nil {
		t.Fatalf("write: %v", err)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	first := events[0]
	if got := first.GetProperty(ics.ComponentPropertyUniqueId).Value; got != "bushy-2024-02-03@parkdash" {
		t.Fatalf("unexpected uid: %s", got)
	}
	if got := first.GetProperty(ics.ComponentPropertySummary).Value; got != "bushy parkrun" {
		t.Fatalf("unexpected summary: %s", got)
	}
	if got := first.GetProperty(ics.ComponentPropertyDtStart).Value; got != "20240203" {
		t.Fatalf("unexpected start: %s", got)
	}
	if got := first.GetProperty(ics.ComponentPropertyDescription).Value; !strings.Contains(got, "412") {
		t.Fatalf("unexpected description: %s", got)
	}
}

func TestBuildEmpty(t *testing.T) {
	cal := Build("", nil, time.Now())
	if len(cal.Events()) != 0 {
		t.Fatalf("expected no events")
	}
	if !strings.Contains(cal.Serialize(), "BEGIN:VCALENDAR") {
		t.Fatalf("expected calendar envelope")
	}
}
