// Package model defines shared data structures.
package model

import "github.com/verte-zerg/parkdash/internal/timefmt"

// WeekSlots is the fixed number of week buckets per month.
const WeekSlots = 5

// EventSummary identifies a recurring event series.
type EventSummary struct {
	Code string `json:"event_code"`
	Name string `json:"event_name"`
}

// ResultRow is one finisher's record for one event occurrence.
type ResultRow struct {
	Position  int    `json:"position"`
	Name      string `json:"name"`
	Time      string `json:"time"`
	AgeGroup  string `json:"age_group"`
	AgeGrade  string `json:"age_grade"`
	Club      string `json:"club"`
	Comment   string `json:"comment"`
	EventCode string `json:"event_code"`
}

// EventOccurrence is one dated instance of an event series.
type EventOccurrence struct {
	EventCode    string
	EventDate    timefmt.Date
	LastPosition int
	Volunteers   int
}

// WeekMatrixRow is one month of occurrences bucketed into week slots.
// An empty string marks an empty slot.
type WeekMatrixRow struct {
	MonthLabel string
	Weeks      [WeekSlots]string
}
