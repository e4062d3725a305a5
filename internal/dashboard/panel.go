package dashboard

// Panel is the active view of the dashboard.
type Panel int

const (
	PanelNone Panel = iota
	PanelEventReport
	PanelScraping
	PanelTable
)

// Panels lists the selectable panels in tab order.
var Panels = []Panel{PanelEventReport, PanelScraping, PanelTable}

func (p Panel) String() string {
	switch p {
	case PanelNone:
		return "None"
	case PanelEventReport:
		return "Event Report"
	case PanelScraping:
		return "Scraping"
	case PanelTable:
		return "Events Table"
	default:
		return "Unknown"
	}
}
