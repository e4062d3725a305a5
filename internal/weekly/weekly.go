// Package weekly folds event occurrences into a month-by-week matrix.
package weekly

import (
	"fmt"

	"github.com/verte-zerg/parkdash/internal/model"
)

// EmptyCell is rendered for a week slot without an occurrence.
const EmptyCell = "-"

type monthKey struct {
	year  int
	month int
}

// Aggregate groups occurrences by calendar month. Rows keep the order in
// which each month is first seen; a later occurrence landing in an already
// filled week slot replaces the earlier one.
func Aggregate(occurrences []model.EventOccurrence) []model.WeekMatrixRow {
	rows := make([]model.WeekMatrixRow, 0)
	index := map[monthKey]int{}
	for _, occ := range occurrences {
		slot, ok := WeekSlot(occ.EventDate.Day)
		if !ok || !occ.EventDate.Valid() {
			continue
		}
		key := monthKey{year: occ.EventDate.Year, month: int(occ.EventDate.Month)}
		pos, seen := index[key]
		if !seen {
			rows = append(rows, model.WeekMatrixRow{MonthLabel: MonthLabel(occ)})
			pos = len(rows) - 1
			index[key] = pos
		}
		rows[pos].Weeks[slot-1] = Cell(occ)
	}
	return rows
}

// WeekSlot returns ceil(day/7), the 1-based week bucket of a day of month.
func WeekSlot(day int) (int, bool) {
	if day < 1 {
		return 0, false
	}
	slot := (day + 6) / 7
	if slot > model.WeekSlots {
		return 0, false
	}
	return slot, true
}

// MonthLabel renders "<Month> - <Year>" for an occurrence.
func MonthLabel(occ model.EventOccurrence) string {
	return fmt.Sprintf("%s - %d", occ.EventDate.Month, occ.EventDate.Year)
}

// Cell renders "<code>:<lastPosition>(<volunteers>)".
func Cell(occ model.EventOccurrence) string {
	return fmt.Sprintf("%s:%d(%d)", occ.EventCode, occ.LastPosition, occ.Volunteers)
}

// DisplayCells returns the five week cells with empty slots as EmptyCell.
func DisplayCells(row model.WeekMatrixRow) []string {
	out := make([]string, 0, len(row.Weeks))
	for _, cell := range row.Weeks {
		if cell == "" {
			cell = EmptyCell
		}
		out = append(out, cell)
	}
	return out
}

// Headers is the column header row used by every matrix renderer.
func Headers() []string {
	headers := []string{"Date"}
	for i := 1; i <= model.WeekSlots; i++ {
		headers = append(headers, fmt.Sprintf("Wk %d", i))
	}
	return headers
}
