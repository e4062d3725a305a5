package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/smartystreets/goconvey/convey"

	"github.com/verte-zerg/parkdash/internal/gateway"
	"github.com/verte-zerg/parkdash/internal/model"
	"github.com/verte-zerg/parkdash/internal/timefmt"
)

type fakeGateway struct {
	mu sync.Mutex

	events    []model.EventSummary
	eventsErr error

	resultsErr   error
	resultsCalls []string

	occurrences      map[string][]model.EventOccurrence
	occurrencesErr   error
	occurrencesCalls []string

	reply        gateway.CollectionReply
	collectErr   error
	collectCalls []bool
}

func (f *fakeGateway) ListEvents(context.Context) ([]model.EventSummary, error) {
	return f.events, f.eventsErr
}

func (f *fakeGateway) ListResults(_ context.Context, eventCode, queryDate string) ([]model.ResultRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultsCalls = append(f.resultsCalls, eventCode+"@"+queryDate)
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	return []model.ResultRow{{Position: 1, Name: queryDate, Time: "20:00", EventCode: eventCode}}, nil
}

func (f *fakeGateway) ListOccurrences(_ context.Context, eventCode string) ([]model.EventOccurrence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.occurrencesCalls = append(f.occurrencesCalls, eventCode)
	if f.occurrencesErr != nil {
		return nil, f.occurrencesErr
	}
	return f.occurrences[eventCode], nil
}

func (f *fakeGateway) TriggerCollection(_ context.Context, loopAll bool) (gateway.CollectionReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collectCalls = append(f.collectCalls, loopAll)
	return f.reply, f.collectErr
}

func run(c *Controller, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	c.Handle(cmd())
}

func date(y int, m time.Month, d int) timefmt.Date {
	return timefmt.Date{Year: y, Month: m, Day: d}
}

func TestControllerPanels(t *testing.T) {
	convey.Convey("Given a new controller", t, func() {
		gw := &fakeGateway{occurrences: map[string][]model.EventOccurrence{
			"A": {{EventCode: "A", EventDate: date(2024, time.March, 2), LastPosition: 50, Volunteers: 5}},
		}}
		c := New(context.Background(), gw, nil)

		convey.Convey("It starts with no panel", func() {
			convey.So(c.State().Panel, convey.ShouldEqual, PanelNone)
			convey.So(c.State().LoopAll, convey.ShouldBeTrue)
		})

		convey.Convey("Selecting panels changes only the panel", func() {
			for _, p := range Panels {
				convey.So(c.SelectPanel(p), convey.ShouldBeNil)
				convey.So(c.State().Panel, convey.ShouldEqual, p)
			}
			convey.So(gw.occurrencesCalls, convey.ShouldBeEmpty)
		})

		convey.Convey("Setting an event code prefetches occurrences once", func() {
			c.SelectPanel(PanelEventReport)
			run(c, c.SetEventCode("A"))
			convey.So(gw.occurrencesCalls, convey.ShouldResemble, []string{"A"})
			convey.So(c.OccurrencesLoaded(), convey.ShouldBeTrue)

			convey.So(c.SelectPanel(PanelTable), convey.ShouldBeNil)
			convey.So(c.SelectPanel(PanelEventReport), convey.ShouldBeNil)
			convey.So(c.SelectPanel(PanelTable), convey.ShouldBeNil)
			convey.So(c.SetEventCode("A"), convey.ShouldBeNil)
			convey.So(gw.occurrencesCalls, convey.ShouldHaveLength, 1)

			rows := c.WeekMatrix()
			convey.So(rows, convey.ShouldHaveLength, 1)
			convey.So(rows[0].MonthLabel, convey.ShouldEqual, "March - 2024")
			convey.So(rows[0].Weeks[0], convey.ShouldEqual, "A:50(5)")
		})

		convey.Convey("A prefetch in flight is not duplicated by the table panel", func() {
			cmd := c.SetEventCode("A")
			convey.So(cmd, convey.ShouldNotBeNil)
			convey.So(c.SelectPanel(PanelTable), convey.ShouldBeNil)
			run(c, cmd)
			convey.So(gw.occurrencesCalls, convey.ShouldHaveLength, 1)
		})

		convey.Convey("A failed prefetch is retried when the table panel opens", func() {
			gw.occurrencesErr = errors.New("down")
			run(c, c.SetEventCode("A"))
			convey.So(c.State().OccurrencesErr, convey.ShouldEqual, "down")
			convey.So(c.OccurrencesLoaded(), convey.ShouldBeFalse)

			gw.occurrencesErr = nil
			run(c, c.SelectPanel(PanelTable))
			convey.So(gw.occurrencesCalls, convey.ShouldHaveLength, 2)
			convey.So(c.State().OccurrencesErr, convey.ShouldBeEmpty)
			convey.So(c.WeekMatrix(), convey.ShouldHaveLength, 1)
		})

		convey.Convey("An event without history yields an empty matrix", func() {
			run(c, c.SetEventCode("B"))
			convey.So(c.OccurrencesLoaded(), convey.ShouldBeTrue)
			convey.So(c.WeekMatrix(), convey.ShouldBeEmpty)
		})
	})
}

func TestControllerFetchResults(t *testing.T) {
	convey.Convey("Given a controller on the event report panel", t, func() {
		gw := &fakeGateway{}
		c := New(context.Background(), gw, nil)
		c.SelectPanel(PanelEventReport)

		convey.Convey("Fetching without an event or date makes no call", func() {
			c.state.Athletes = []model.ResultRow{{Position: 7}}
			convey.So(c.FetchResults(), convey.ShouldBeNil)
			convey.So(c.State().Notice, convey.ShouldContainSubstring, "Please select both an Event and a Date")
			convey.So(c.State().Err, convey.ShouldBeEmpty)
			convey.So(c.State().Loading, convey.ShouldBeFalse)

			c.SetEventCode("A")
			convey.So(c.FetchResults(), convey.ShouldBeNil)
			convey.So(c.State().Notice, convey.ShouldContainSubstring, "date")

			c.SetEventCode("")
			c.SetDate(date(2024, time.March, 2))
			convey.So(c.FetchResults(), convey.ShouldBeNil)

			convey.So(gw.resultsCalls, convey.ShouldBeEmpty)
			convey.So(c.State().Athletes, convey.ShouldResemble, []model.ResultRow{{Position: 7}})
		})

		convey.Convey("Fetching with an impossible date is rejected locally", func() {
			c.SetEventCode("A")
			c.SetDate(date(2023, time.February, 29))
			convey.So(c.FetchResults(), convey.ShouldBeNil)
			convey.So(c.State().Notice, convey.ShouldContainSubstring, "invalid date")
			convey.So(gw.resultsCalls, convey.ShouldBeEmpty)
		})

		convey.Convey("A valid fetch loads then replaces the athletes", func() {
			c.SetEventCode("A")
			c.SetDate(date(2024, time.March, 2))
			cmd := c.FetchResults()
			convey.So(cmd, convey.ShouldNotBeNil)
			convey.So(c.State().Loading, convey.ShouldBeTrue)
			convey.So(c.State().Err, convey.ShouldBeEmpty)
			convey.So(c.State().DisplayDate, convey.ShouldBeEmpty)

			run(c, cmd)
			convey.So(c.State().DisplayDate, convey.ShouldEqual, "02/03/2024")
			convey.So(gw.resultsCalls, convey.ShouldResemble, []string{"A@2024-03-02"})
			convey.So(c.State().Loading, convey.ShouldBeFalse)
			convey.So(c.State().Athletes, convey.ShouldHaveLength, 1)
			convey.So(c.State().Athletes[0].Name, convey.ShouldEqual, "2024-03-02")
		})

		convey.Convey("A failed fetch keeps the previous athletes", func() {
			c.SetEventCode("A")
			c.SetDate(date(2024, time.March, 2))
			run(c, c.FetchResults())

			gw.resultsErr = fmt.Errorf("%w: eventpositions returned 503", gateway.ErrUpstreamUnavailable)
			c.SetDate(date(2024, time.March, 9))
			cmd := c.FetchResults()
			convey.So(c.State().Loading, convey.ShouldBeTrue)
			convey.So(c.State().Err, convey.ShouldBeEmpty)
			run(c, cmd)

			convey.So(c.State().Loading, convey.ShouldBeFalse)
			convey.So(c.State().Err, convey.ShouldEqual, "upstream unavailable: eventpositions returned 503")
			convey.So(c.State().Athletes, convey.ShouldHaveLength, 1)
			convey.So(c.State().DisplayDate, convey.ShouldEqual, "02/03/2024")

			convey.Convey("and retrying clears the error", func() {
				gw.resultsErr = nil
				cmd := c.FetchResults()
				convey.So(c.State().Err, convey.ShouldBeEmpty)
				convey.So(c.State().Loading, convey.ShouldBeTrue)
				run(c, cmd)
				convey.So(c.State().Err, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("Overlapping fetches keep the latest issued request", func() {
			c.SetEventCode("A")
			c.SetDate(date(2024, time.March, 2))
			first := c.FetchResults()
			c.SetDate(date(2024, time.March, 9))
			second := c.FetchResults()

			secondMsg := second()
			firstMsg := first()
			c.Handle(secondMsg)
			convey.So(c.State().Loading, convey.ShouldBeFalse)
			c.Handle(firstMsg)

			convey.So(c.State().Athletes[0].Name, convey.ShouldEqual, "2024-03-09")
			convey.So(c.State().Loading, convey.ShouldBeFalse)
			convey.So(c.State().DisplayDate, convey.ShouldEqual, "09/03/2024")
		})

		convey.Convey("A stale response does not end the newer load", func() {
			c.SetEventCode("A")
			c.SetDate(date(2024, time.March, 2))
			first := c.FetchResults()
			second := c.FetchResults()
			run(c, first)
			convey.So(c.State().Loading, convey.ShouldBeTrue)
			run(c, second)
			convey.So(c.State().Loading, convey.ShouldBeFalse)
		})
	})
}

func TestControllerCollection(t *testing.T) {
	convey.Convey("Given a controller on the scraping panel", t, func() {
		gw := &fakeGateway{reply: gateway.CollectionReply{Message: "Scraping started"}}
		c := New(context.Background(), gw, nil)
		c.SelectPanel(PanelScraping)
		c.state.Athletes = []model.ResultRow{{Position: 1}}

		convey.Convey("The reply message becomes the notice", func() {
			cmd := c.TriggerCollection()
			convey.So(c.State().Collecting, convey.ShouldBeTrue)
			convey.So(c.TriggerCollection(), convey.ShouldBeNil)
			convey.So(c.State().Notice, convey.ShouldEqual, "Collection request already in progress.")
			run(c, cmd)

			convey.So(gw.collectCalls, convey.ShouldResemble, []bool{true})
			convey.So(c.State().Notice, convey.ShouldEqual, "Scraping started")
			convey.So(c.State().Collecting, convey.ShouldBeFalse)
			convey.So(c.State().Loading, convey.ShouldBeFalse)
			convey.So(c.State().Athletes, convey.ShouldHaveLength, 1)
		})

		convey.Convey("The reply error becomes the notice", func() {
			gw.reply = gateway.CollectionReply{Error: "already running"}
			c.SetLoopAll(false)
			run(c, c.TriggerCollection())
			convey.So(gw.collectCalls, convey.ShouldResemble, []bool{false})
			convey.So(c.State().Notice, convey.ShouldEqual, "already running")
			convey.So(c.State().Err, convey.ShouldBeEmpty)
		})

		convey.Convey("A transport failure is reported without touching the fetch state", func() {
			gw.collectErr = errors.New("timeout")
			run(c, c.TriggerCollection())
			convey.So(c.State().Notice, convey.ShouldEqual, "An error occurred: timeout")
			convey.So(c.State().Err, convey.ShouldBeEmpty)

			c.DismissNotice()
			convey.So(c.State().Notice, convey.ShouldBeEmpty)
		})
	})
}

func TestControllerEvents(t *testing.T) {
	convey.Convey("Given a gateway with events", t, func() {
		gw := &fakeGateway{events: []model.EventSummary{{Code: "A", Name: "Alpha"}}}
		c := New(context.Background(), gw, nil)

		convey.Convey("Init loads them", func() {
			cmd := c.Init()
			convey.So(c.State().EventsLoading, convey.ShouldBeTrue)
			convey.So(c.ReloadEvents(), convey.ShouldBeNil)
			run(c, cmd)
			convey.So(c.State().EventsLoading, convey.ShouldBeFalse)
			convey.So(c.State().Events, convey.ShouldResemble, gw.events)
		})

		convey.Convey("A failure is kept apart from the fetch error and can be retried", func() {
			gw.eventsErr = errors.New("down")
			run(c, c.Init())
			convey.So(c.State().EventsErr, convey.ShouldEqual, "down")
			convey.So(c.State().Err, convey.ShouldBeEmpty)

			gw.eventsErr = nil
			run(c, c.ReloadEvents())
			convey.So(c.State().EventsErr, convey.ShouldBeEmpty)
			convey.So(c.State().Events, convey.ShouldHaveLength, 1)
		})

		convey.Convey("Unknown messages are ignored", func() {
			convey.So(c.Handle(tea.WindowSizeMsg{}), convey.ShouldBeFalse)
		})
	})
}
