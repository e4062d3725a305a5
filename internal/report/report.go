package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/parkdash/internal/model"
	"github.com/verte-zerg/parkdash/internal/timefmt"
	"github.com/verte-zerg/parkdash/internal/weekly"
)

// ResultHeaders are the columns of the Event Report table.
var ResultHeaders = []string{"Position", "Name", "Time", "Age Group", "Age Grade", "Club", "Comment"}

// EventHeaders are the columns of the event listing.
var EventHeaders = []string{"Code", "Name"}

// EventRows converts summaries into table cells.
func EventRows(events []model.EventSummary) [][]string {
	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = []string{ev.Code, ev.Name}
	}
	return rows
}

// ResultRowCells converts finisher records into table cells. Times are
// normalized to minutes:seconds.
func ResultRowCells(results []model.ResultRow) [][]string {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			strconv.Itoa(r.Position),
			r.Name,
			timefmt.FormatDuration(r.Time),
			r.AgeGroup,
			r.AgeGrade,
			r.Club,
			r.Comment,
		}
	}
	return rows
}

// WeeklyRows converts the month-by-week matrix into table cells.
func WeeklyRows(matrix []model.WeekMatrixRow) [][]string {
	rows := make([][]string, len(matrix))
	for i, row := range matrix {
		rows[i] = append([]string{row.MonthLabel}, weekly.DisplayCells(row)...)
	}
	return rows
}

// WriteEvents prints the event listing.
func WriteEvents(w io.Writer, events []model.EventSummary, width int) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No events available.")
		return err
	}
	return writeLines(w, Truncate(Table(EventHeaders, EventRows(events), nil), width))
}

// WriteResults prints the finishers of one occurrence.
func WriteResults(w io.Writer, eventCode, displayDate string, results []model.ResultRow, width int) error {
	if _, err := fmt.Fprintf(w, "Event: %s\nSelected Date: %s\n\n", eventCode, displayDate); err != nil {
		return err
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	lines := Table(ResultHeaders, ResultRowCells(results), map[int]bool{0: true})
	return writeLines(w, Truncate(lines, width))
}

// WriteWeekly prints the month-by-week matrix of an event.
func WriteWeekly(w io.Writer, matrix []model.WeekMatrixRow, width int) error {
	if len(matrix) == 0 {
		_, err := fmt.Fprintln(w, "No occurrences found.")
		return err
	}
	return writeLines(w, Truncate(Table(weekly.Headers(), WeeklyRows(matrix), nil), width))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
