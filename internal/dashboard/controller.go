// Package dashboard holds the dashboard state machine. Operations mutate a
// single State and describe their network work as Bubble Tea commands; the
// messages those commands produce are fed back through Handle.
package dashboard

import (
	"context"
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/parkdash/internal/gateway"
	"github.com/verte-zerg/parkdash/internal/model"
	"github.com/verte-zerg/parkdash/internal/timefmt"
	"github.com/verte-zerg/parkdash/internal/weekly"
)

// Gateway is the remote data source used by the controller.
type Gateway interface {
	ListEvents(ctx context.Context) ([]model.EventSummary, error)
	ListResults(ctx context.Context, eventCode, queryDate string) ([]model.ResultRow, error)
	ListOccurrences(ctx context.Context, eventCode string) ([]model.EventOccurrence, error)
	TriggerCollection(ctx context.Context, loopAll bool) (gateway.CollectionReply, error)
}

// State is the complete view state of one dashboard session.
// Loading and a non-empty Err are never set together.
type State struct {
	Panel Panel

	Events        []model.EventSummary
	EventsLoading bool
	EventsErr     string

	SelectedEventCode string
	SelectedDate      timefmt.Date
	// DisplayDate is the DD/MM/YYYY label of the rows in Athletes.
	DisplayDate string

	Athletes []model.ResultRow
	Loading  bool
	Err      string

	// Notice is a one-shot message: validation problems and collection replies.
	Notice string

	Occurrences        map[string][]model.EventOccurrence
	OccurrencesPending map[string]bool
	OccurrencesErr     string

	LoopAll    bool
	Collecting bool
}

type eventsLoadedMsg struct {
	events []model.EventSummary
	err    error
}

type resultsLoadedMsg struct {
	generation  uint64
	displayDate string
	rows        []model.ResultRow
	err         error
}

type occurrencesLoadedMsg struct {
	eventCode   string
	occurrences []model.EventOccurrence
	err         error
}

type collectionDoneMsg struct {
	reply gateway.CollectionReply
	err   error
}

// Controller owns the State and issues gateway calls.
type Controller struct {
	ctx        context.Context
	gw         Gateway
	log        *slog.Logger
	state      State
	generation uint64
}

// New returns a controller in PanelNone. Commands run under ctx.
func New(ctx context.Context, gw Gateway, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		ctx: ctx,
		gw:  gw,
		log: log,
		state: State{
			Occurrences:        map[string][]model.EventOccurrence{},
			OccurrencesPending: map[string]bool{},
			LoopAll:            true,
		},
	}
}

// State returns the current state. The returned maps and slices must be
// treated as read-only.
func (c *Controller) State() State {
	return c.state
}

// Init loads the event list.
func (c *Controller) Init() tea.Cmd {
	return c.ReloadEvents()
}

// ReloadEvents fetches the event list again.
func (c *Controller) ReloadEvents() tea.Cmd {
	if c.state.EventsLoading {
		return nil
	}
	c.state.EventsLoading = true
	c.state.EventsErr = ""
	return func() tea.Msg {
		events, err := c.gw.ListEvents(c.ctx)
		return eventsLoadedMsg{events: events, err: err}
	}
}

// SelectPanel switches the active panel. Entering the table panel loads the
// selected event's occurrences only when they are neither loaded nor in flight.
func (c *Controller) SelectPanel(p Panel) tea.Cmd {
	c.state.Panel = p
	if p == PanelTable {
		return c.ensureOccurrences(c.state.SelectedEventCode)
	}
	return nil
}

// SetEventCode selects an event series and prefetches its occurrences.
func (c *Controller) SetEventCode(code string) tea.Cmd {
	code = strings.TrimSpace(code)
	if code == c.state.SelectedEventCode {
		return nil
	}
	c.state.SelectedEventCode = code
	c.state.OccurrencesErr = ""
	return c.ensureOccurrences(code)
}

// SetDate selects the date used by FetchResults.
func (c *Controller) SetDate(d timefmt.Date) {
	c.state.SelectedDate = d
}

// ClearDate removes the selected date.
func (c *Controller) ClearDate() {
	c.state.SelectedDate = timefmt.Date{}
}

// SetLoopAll controls whether collection walks every event.
func (c *Controller) SetLoopAll(loopAll bool) {
	c.state.LoopAll = loopAll
}

// DismissNotice clears the one-shot notice.
func (c *Controller) DismissNotice() {
	c.state.Notice = ""
}

// FetchResults loads the finishers for the selected event and date. Missing
// or invalid input only sets a notice. Responses to superseded fetches are
// dropped, so the latest issued request decides the outcome.
func (c *Controller) FetchResults() tea.Cmd {
	c.state.Notice = ""
	var missing []string
	if c.state.SelectedEventCode == "" {
		missing = append(missing, "event")
	}
	if c.state.SelectedDate.IsZero() {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		c.state.Notice = (&ValidationError{Missing: missing}).Error()
		return nil
	}
	queryDate, err := timefmt.ToQueryDate(c.state.SelectedDate)
	if err != nil {
		c.state.Notice = err.Error()
		return nil
	}
	displayDate, err := timefmt.ToDisplayDate(c.state.SelectedDate)
	if err != nil {
		c.state.Notice = err.Error()
		return nil
	}

	c.generation++
	generation := c.generation
	code := c.state.SelectedEventCode
	c.state.Loading = true
	c.state.Err = ""
	c.log.Info("fetching results", "event_code", code, "event_date", queryDate, "generation", generation)

	return func() tea.Msg {
		rows, err := c.gw.ListResults(c.ctx, code, queryDate)
		return resultsLoadedMsg{generation: generation, displayDate: displayDate, rows: rows, err: err}
	}
}

// TriggerCollection asks the remote job to start collecting. The outcome is
// reported through Notice only.
func (c *Controller) TriggerCollection() tea.Cmd {
	if c.state.Collecting {
		c.state.Notice = "Collection request already in progress."
		return nil
	}
	c.state.Collecting = true
	c.state.Notice = ""
	loopAll := c.state.LoopAll
	return func() tea.Msg {
		reply, err := c.gw.TriggerCollection(c.ctx, loopAll)
		return collectionDoneMsg{reply: reply, err: err}
	}
}

// WeekMatrix aggregates the selected event's loaded occurrences.
func (c *Controller) WeekMatrix() []model.WeekMatrixRow {
	return weekly.Aggregate(c.state.Occurrences[c.state.SelectedEventCode])
}

// OccurrencesLoaded reports whether the selected event's history is loaded.
func (c *Controller) OccurrencesLoaded() bool {
	_, ok := c.state.Occurrences[c.state.SelectedEventCode]
	return ok
}

// Handle applies a completed command. It reports whether msg belonged to the
// controller.
func (c *Controller) Handle(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case eventsLoadedMsg:
		c.state.EventsLoading = false
		if msg.err != nil {
			c.log.Error("failed to load events", "error", msg.err)
			c.state.EventsErr = msg.err.Error()
			return true
		}
		c.state.Events = msg.events
		c.state.EventsErr = ""
		return true
	case resultsLoadedMsg:
		if msg.generation != c.generation {
			c.log.Debug("dropping superseded results", "generation", msg.generation, "current", c.generation)
			return true
		}
		c.state.Loading = false
		if msg.err != nil {
			c.log.Error("failed to load results", "error", msg.err)
			c.state.Err = msg.err.Error()
			return true
		}
		c.state.Athletes = msg.rows
		c.state.DisplayDate = msg.displayDate
		c.state.Err = ""
		return true
	case occurrencesLoadedMsg:
		delete(c.state.OccurrencesPending, msg.eventCode)
		if msg.err != nil {
			c.log.Error("failed to load occurrences", "event_code", msg.eventCode, "error", msg.err)
			if msg.eventCode == c.state.SelectedEventCode {
				c.state.OccurrencesErr = msg.err.Error()
			}
			return true
		}
		if msg.occurrences == nil {
			msg.occurrences = []model.EventOccurrence{}
		}
		c.state.Occurrences[msg.eventCode] = msg.occurrences
		if msg.eventCode == c.state.SelectedEventCode {
			c.state.OccurrencesErr = ""
		}
		return true
	case collectionDoneMsg:
		c.state.Collecting = false
		c.state.Notice = collectionNotice(msg.reply, msg.err)
		return true
	}
	return false
}

func (c *Controller) ensureOccurrences(code string) tea.Cmd {
	if code == "" {
		return nil
	}
	if _, ok := c.state.Occurrences[code]; ok {
		return nil
	}
	if c.state.OccurrencesPending[code] {
		return nil
	}
	c.state.OccurrencesPending[code] = true
	c.state.OccurrencesErr = ""
	return func() tea.Msg {
		occs, err := c.gw.ListOccurrences(c.ctx, code)
		return occurrencesLoadedMsg{eventCode: code, occurrences: occs, err: err}
	}
}

func collectionNotice(reply gateway.CollectionReply, err error) string {
	switch {
	case err != nil:
		return "An error occurred: " + err.Error()
	case reply.Message != "":
		return reply.Message
	case reply.Error != "":
		return reply.Error
	default:
		return "Collection request accepted."
	}
}
