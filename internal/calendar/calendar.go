// Package calendar exports event occurrences as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/verte-zerg/parkdash/internal/model"
	"github.com/verte-zerg/parkdash/internal/timefmt"
)

const productID = "-//parkdash//occurrences//EN"

// Build returns a calendar with one all-day event per valid occurrence.
// Occurrences with an invalid date are skipped.
func Build(name string, occurrences []model.EventOccurrence, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	for _, occ := range occurrences {
		query, err := timefmt.ToQueryDate(occ.EventDate)
		if err != nil {
			continue
		}
		start := occ.EventDate.Time()
		event := cal.AddEvent(UID(occ.EventCode, query))
		event.SetDtStampTime(stamp.UTC())
		event.SetAllDayStartAt(start)
		event.SetAllDayEndAt(start.AddDate(0, 0, 1))
		event.SetSummary(fmt.Sprintf("%s parkrun", occ.EventCode))
		event.SetDescription(fmt.Sprintf("Finishers: %d, Volunteers: %d", occ.LastPosition, occ.Volunteers))
	}
	return cal
}

// UID is the stable identifier of an occurrence in the feed.
func UID(eventCode, queryDate string) string {
	return fmt.Sprintf("%s-%s@parkdash", eventCode, queryDate)
}

// Write serializes the calendar for occurrences to w.
func Write(w io.Writer, name string, occurrences []model.EventOccurrence, stamp time.Time) error {
	if _, err := io.WriteString(w, Build(name, occurrences, stamp).Serialize()); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}
