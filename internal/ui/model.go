// Package ui provides the Bubble Tea dashboard interface.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/parkdash/internal/dashboard"
	"github.com/verte-zerg/parkdash/internal/report"
	"github.com/verte-zerg/parkdash/internal/timefmt"
	"github.com/verte-zerg/parkdash/internal/weekly"
)

// Model implements the Bubble Tea dashboard UI on top of a controller.
type Model struct {
	ctrl *dashboard.Controller

	width  int
	height int

	eventIndex int
	dateInput  textinput.Model
	dateError  string

	results       table.Model
	resultsHeight int
	weeklyView    viewport.Model
	spinner       spinner.Model
}

// New constructs the dashboard UI.
func New(ctrl *dashboard.Controller) *Model {
	m := &Model{
		ctrl:       ctrl,
		eventIndex: -1,
		weeklyView: viewport.New(0, 0),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.dateInput = newDateInput()
	m.results = table.New(
		table.WithColumns(resultColumns(80)),
		table.WithHeight(1),
		table.WithFocused(true),
	)
	m.results.SetStyles(tableStyles())
	return m
}

func newDateInput() textinput.Model {
	input := textinput.New()
	input.Prompt = "Date: "
	input.Placeholder = "DD/MM/YYYY"
	input.CharLimit = 10
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.ctrl.Init(), m.spinner.Tick)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	if m.ctrl.Handle(msg) {
		m.sync()
		m.updateLayout()
		return m, nil
	}
	var cmd tea.Cmd
	m.dateInput, cmd = m.dateInput.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.dateInput.Focused() {
		return m.updateDateInput(msg)
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "1", "2", "3", "f1", "f2", "f3":
		return m, m.selectPanel(msg.String())
	case "esc":
		m.ctrl.DismissNotice()
		return m, nil
	}
	switch m.ctrl.State().Panel {
	case dashboard.PanelEventReport:
		return m.updateEventReport(msg)
	case dashboard.PanelScraping:
		return m.updateScraping(msg)
	case dashboard.PanelTable:
		return m.updateTable(msg)
	}
	return m, nil
}

func (m *Model) selectPanel(key string) tea.Cmd {
	idx := int(key[len(key)-1] - '1')
	if idx < 0 || idx >= len(dashboard.Panels) {
		return nil
	}
	cmd := m.ctrl.SelectPanel(dashboard.Panels[idx])
	m.sync()
	m.updateLayout()
	return cmd
}

func (m *Model) updateDateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "f1", "f2", "f3":
		m.dateInput.Blur()
		return m, m.selectPanel(msg.String())
	case "esc":
		m.dateInput.Blur()
		return m, nil
	case "enter":
		m.dateInput.Blur()
		return m, m.submit()
	}
	var cmd tea.Cmd
	m.dateInput, cmd = m.dateInput.Update(msg)
	return m, cmd
}

func (m *Model) updateEventReport(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		return m, m.moveEvent(-1)
	case "down", "j":
		return m, m.moveEvent(1)
	case "tab", "/":
		m.dateError = ""
		return m, m.dateInput.Focus()
	case "enter":
		return m, m.submit()
	case "r":
		return m, m.ctrl.ReloadEvents()
	case "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateScraping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m, m.ctrl.TriggerCollection()
	case "a":
		m.ctrl.SetLoopAll(!m.ctrl.State().LoopAll)
	}
	return m, nil
}

func (m *Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "r" {
		return m, m.ctrl.SelectPanel(dashboard.PanelTable)
	}
	var cmd tea.Cmd
	m.weeklyView, cmd = m.weeklyView.Update(msg)
	return m, cmd
}

func (m *Model) moveEvent(delta int) tea.Cmd {
	events := m.ctrl.State().Events
	if len(events) == 0 {
		return nil
	}
	next := m.eventIndex + delta
	if next < 0 {
		next = 0
	}
	if next >= len(events) {
		next = len(events) - 1
	}
	m.eventIndex = next
	cmd := m.ctrl.SetEventCode(events[next].Code)
	m.sync()
	return cmd
}

// submit applies the typed date and requests results. A date that does not
// parse is reported next to the input and nothing is fetched.
func (m *Model) submit() tea.Cmd {
	m.dateError = ""
	raw := strings.TrimSpace(m.dateInput.Value())
	if raw == "" {
		m.ctrl.ClearDate()
	} else {
		d, err := timefmt.ParseAny(raw)
		if err != nil {
			m.ctrl.ClearDate()
			m.dateError = err.Error()
			return nil
		}
		m.ctrl.SetDate(d)
	}
	cmd := m.ctrl.FetchResults()
	m.updateLayout()
	return cmd
}

func (m *Model) sync() {
	state := m.ctrl.State()
	m.eventIndex = -1
	for i, ev := range state.Events {
		if ev.Code == state.SelectedEventCode {
			m.eventIndex = i
			break
		}
	}

	cells := report.ResultRowCells(state.Athletes)
	rows := make([]table.Row, len(cells))
	for i, row := range cells {
		rows[i] = table.Row(row)
	}
	m.results.SetRows(rows)

	matrix := m.ctrl.WeekMatrix()
	lines := report.Table(weekly.Headers(), report.WeeklyRows(matrix), nil)
	m.weeklyView.SetContent(strings.Join(lines, "\n"))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = lipgloss.Height(m.renderFooter())
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.weeklyView.Width = m.width
	m.weeklyView.Height = maxInt(1, bodyHeight-1)
	m.dateInput.Width = maxInt(10, m.width-lipgloss.Width(m.dateInput.Prompt)-2)

	m.resultsHeight = maxInt(1, bodyHeight-lipgloss.Height(m.renderReportPreamble()))
	m.results.SetColumns(resultColumns(m.width))
	m.results.SetWidth(m.width)
	m.results.SetHeight(maxInt(1, m.resultsHeight-1))
}

func resultColumns(width int) []table.Column {
	columns := []table.Column{
		{Title: "Pos", Width: 4},
		{Title: "Name", Width: 22},
		{Title: "Time", Width: 8},
		{Title: "Age Group", Width: 10},
		{Title: "Age Grade", Width: 10},
		{Title: "Club", Width: 20},
		{Title: "Comment", Width: 10},
	}
	used := 0
	for _, col := range columns[:len(columns)-1] {
		used += col.Width + 1
	}
	columns[len(columns)-1].Width = maxInt(10, width-used-1)
	return columns
}

func (m *Model) renderTabs() string {
	active := m.ctrl.State().Panel
	parts := make([]string, 0, len(dashboard.Panels))
	for i, panel := range dashboard.Panels {
		label := fmt.Sprintf("%d %s", i+1, panel)
		if panel == active {
			parts = append(parts, activeNavStyle.Render(label))
		} else {
			parts = append(parts, inactiveNavStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	return tabs + "\n" + headerStyle.Render(truncateLine(m.renderStatus(), m.width))
}

func (m *Model) renderStatus() string {
	state := m.ctrl.State()
	event := "none"
	if state.SelectedEventCode != "" {
		event = state.SelectedEventCode
	}
	loopAll := "off"
	if state.LoopAll {
		loopAll = "on"
	}
	return fmt.Sprintf("Event: %s  Events loaded: %d  Loop all: %s", event, len(state.Events), loopAll)
}

func (m *Model) renderHelp() string {
	var help string
	switch {
	case m.dateInput.Focused():
		help = "Type DD/MM/YYYY  Fetch: enter  Done: esc  Panels: F1/F2/F3"
	case m.ctrl.State().Panel == dashboard.PanelEventReport:
		help = "Event: up/down  Date: tab  Fetch: enter  Scroll: pgup/pgdn  Panels: 1/2/3  Quit: q"
	case m.ctrl.State().Panel == dashboard.PanelScraping:
		help = "Start: enter  Loop all: a  Panels: 1/2/3  Quit: q"
	case m.ctrl.State().Panel == dashboard.PanelTable:
		help = "Scroll: up/down  Retry: r  Panels: 1/2/3  Quit: q"
	default:
		help = "Panels: 1/2/3  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	state := m.ctrl.State()
	lines := []string{m.renderHelp()}
	if state.Err != "" {
		lines = append(lines, errorStyle.Render(truncateLine("Error: "+state.Err, m.width)))
	}
	if state.Notice != "" {
		lines = append(lines, noticeStyle.Render(truncateLine(state.Notice, m.width)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody() string {
	switch m.ctrl.State().Panel {
	case dashboard.PanelEventReport:
		return m.renderEventReport()
	case dashboard.PanelScraping:
		return m.renderScraping()
	case dashboard.PanelTable:
		return m.renderWeekly()
	default:
		return "Choose a panel: 1 Event Report  2 Scraping  3 Events Table"
	}
}

func (m *Model) renderEventSelector() string {
	state := m.ctrl.State()
	switch {
	case state.EventsLoading:
		return labelStyle.Render("Event: ") + m.spinner.View() + " Loading events..."
	case state.EventsErr != "":
		return errorStyle.Render("Failed to load events: " + state.EventsErr + " (r to retry)")
	case len(state.Events) == 0:
		return labelStyle.Render("Event: ") + "No events available."
	case m.eventIndex < 0:
		return labelStyle.Render("Event: ") + "Select Event (up/down)"
	}
	ev := state.Events[m.eventIndex]
	return labelStyle.Render("Event: ") + valueStyle.Render(fmt.Sprintf("< %s - %s >", ev.Code, ev.Name)) +
		headerStyle.Render(fmt.Sprintf("  %d/%d", m.eventIndex+1, len(state.Events)))
}

func (m *Model) renderReportPreamble() string {
	state := m.ctrl.State()
	lines := []string{m.renderEventSelector(), m.dateInput.View()}
	if m.dateError != "" {
		lines = append(lines, errorStyle.Render(m.dateError))
	}
	switch {
	case state.Loading:
		lines = append(lines, m.spinner.View()+" Loading results...")
	case state.DisplayDate != "":
		lines = append(lines, valueStyle.Render("Selected Date: "+state.DisplayDate))
	default:
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderEventReport() string {
	state := m.ctrl.State()
	preamble := m.renderReportPreamble()
	switch {
	case state.Loading:
		return preamble
	case len(state.Athletes) == 0:
		if state.DisplayDate != "" && state.Err == "" {
			return preamble + "\nNo results found."
		}
		return preamble
	}
	return preamble + "\n" + tableMutedStyle.Render(m.results.View())
}

func (m *Model) renderScraping() string {
	state := m.ctrl.State()
	loopAll := "no"
	if state.LoopAll {
		loopAll = "yes"
	}
	lines := []string{
		"Start the remote results collection job.",
		labelStyle.Render("Loop all events: ") + valueStyle.Render(loopAll),
	}
	if state.Collecting {
		lines = append(lines, m.spinner.View()+" Collection request in flight...")
	} else {
		lines = append(lines, "Press enter to start collecting.")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderWeekly() string {
	state := m.ctrl.State()
	code := state.SelectedEventCode
	switch {
	case code == "":
		return "Select an event on the Event Report panel first."
	case state.OccurrencesErr != "":
		return errorStyle.Render("Failed to load occurrences: " + state.OccurrencesErr + " (r to retry)")
	case state.OccurrencesPending[code]:
		return m.spinner.View() + " Loading occurrences..."
	case !m.ctrl.OccurrencesLoaded():
		return "Occurrences not loaded. Press r to load."
	case len(m.ctrl.WeekMatrix()) == 0:
		return "No occurrences found."
	}
	title := labelStyle.Render("Event: ") + valueStyle.Render(code)
	return title + "\n" + m.weeklyView.View()
}
