// Package gateway talks to the results API and the collection job endpoint.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/verte-zerg/parkdash/internal/metrics"
	"github.com/verte-zerg/parkdash/internal/model"
	"github.com/verte-zerg/parkdash/internal/timefmt"
)

// Endpoint labels used in logs, errors and metrics.
const (
	EndpointEvents      = "events"
	EndpointResults     = "eventpositions"
	EndpointOccurrences = "parkrun_events"
	EndpointCollect     = "start-scraping"
)

const maxBodyBytes = 16 << 20

// CollectionReply is the collection endpoint's answer. Exactly one field is
// normally set; it only says whether the request was accepted.
type CollectionReply struct {
	Message string
	Error   string
}

// Client is the HTTP implementation of the remote data gateway. It never
// retries.
type Client struct {
	baseURL        string
	collectURL     string
	http           *http.Client
	timeout        time.Duration
	collectTimeout time.Duration
	log            *slog.Logger
	metrics        *metrics.Recorder
}

type wireOccurrence struct {
	EventCode    string `json:"event_code"`
	EventDate    string `json:"event_date"`
	LastPosition int    `json:"last_position"`
	Volunteers   int    `json:"volunteers"`
}

type collectRequest struct {
	LoopEvents bool `json:"loopEvents"`
}

// New returns a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if err := validateURL(baseURL); err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	c := &Client{
		baseURL:        trimSlash(baseURL),
		http:           &http.Client{},
		timeout:        defaultTimeout,
		collectTimeout: defaultCollectTimeout,
		log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.collectURL == "" {
		c.collectURL = c.baseURL
	} else if err := validateURL(c.collectURL); err != nil {
		return nil, fmt.Errorf("invalid collect url: %w", err)
	}
	return c, nil
}

// ListEvents fetches every event series.
func (c *Client) ListEvents(ctx context.Context) ([]model.EventSummary, error) {
	var events []model.EventSummary
	if err := c.getJSON(ctx, EndpointEvents, c.baseURL+"/api/events", jsonInto(&events)); err != nil {
		return nil, err
	}
	return events, nil
}

// ListResults fetches the finishers of one event on queryDate (YYYY-MM-DD).
func (c *Client) ListResults(ctx context.Context, eventCode, queryDate string) ([]model.ResultRow, error) {
	q := url.Values{}
	q.Set("event_code", eventCode)
	q.Set("event_date", queryDate)
	var rows []model.ResultRow
	if err := c.getJSON(ctx, EndpointResults, c.baseURL+"/api/eventpositions?"+q.Encode(), jsonInto(&rows)); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOccurrences fetches the dated history of one event series.
func (c *Client) ListOccurrences(ctx context.Context, eventCode string) ([]model.EventOccurrence, error) {
	q := url.Values{}
	q.Set("event_code", eventCode)
	var out []model.EventOccurrence
	decode := func(body []byte) error {
		var wire []wireOccurrence
		if err := json.Unmarshal(body, &wire); err != nil {
			return err
		}
		out = make([]model.EventOccurrence, 0, len(wire))
		for _, w := range wire {
			d, err := parseWireDate(w.EventDate)
			if err != nil {
				return err
			}
			out = append(out, model.EventOccurrence{
				EventCode:    w.EventCode,
				EventDate:    d,
				LastPosition: w.LastPosition,
				Volunteers:   w.Volunteers,
			})
		}
		return nil
	}
	if err := c.getJSON(ctx, EndpointOccurrences, c.baseURL+"/api/parkrun_events?"+q.Encode(), decode); err != nil {
		return nil, err
	}
	return out, nil
}

// TriggerCollection asks the collection job to start. The call is bounded by
// the collect timeout regardless of ctx.
func (c *Client) TriggerCollection(ctx context.Context, loopAll bool) (CollectionReply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.collectTimeout)
	defer cancel()

	payload, err := json.Marshal(collectRequest{LoopEvents: loopAll})
	if err != nil {
		return CollectionReply{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectURL+"/start-scraping", bytes.NewReader(payload))
	if err != nil {
		return CollectionReply{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var reply CollectionReply
	decode := func(body []byte) error {
		if !gjson.ValidBytes(body) {
			return errors.New("response is not valid JSON")
		}
		parsed := gjson.ParseBytes(body)
		reply.Message = parsed.Get("message").String()
		reply.Error = parsed.Get("error").String()
		return nil
	}
	if err := c.do(req, EndpointCollect, decode); err != nil {
		return CollectionReply{}, err
	}
	return reply, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, target string, decode func([]byte) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, endpoint, decode)
}

func jsonInto(out any) func([]byte) error {
	return func(body []byte) error {
		return json.Unmarshal(body, out)
	}
}

// do sends req and hands the body of a 2xx response to decode.
func (c *Client) do(req *http.Request, endpoint string, decode func([]byte) error) error {
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	log := c.log.With("endpoint", endpoint, "request_id", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		outcome := metrics.OutcomeTransport
		if isTimeout(err) {
			outcome = metrics.OutcomeTimeout
		}
		c.metrics.ObserveRequest(endpoint, outcome, time.Since(start))
		log.Warn("request failed", "error", err)
		return unavailable(endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveRequest(endpoint, metrics.OutcomeStatusError, time.Since(start))
		log.Warn("unexpected status", "status", resp.StatusCode)
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		outcome := metrics.OutcomeTransport
		if isTimeout(err) {
			outcome = metrics.OutcomeTimeout
		}
		c.metrics.ObserveRequest(endpoint, outcome, time.Since(start))
		return unavailable(endpoint, fmt.Errorf("failed to read response: %w", err))
	}
	elapsed := time.Since(start)
	if err := decode(body); err != nil {
		c.metrics.ObserveRequest(endpoint, metrics.OutcomeDecode, elapsed)
		log.Warn("undecodable response", "error", err)
		return unavailable(endpoint, fmt.Errorf("failed to decode response: %w", err))
	}
	c.metrics.ObserveRequest(endpoint, metrics.OutcomeSuccess, elapsed)
	log.Debug("request completed", "status", resp.StatusCode, "bytes", len(body), "elapsed", elapsed)
	return nil
}

// parseWireDate accepts YYYY-MM-DD, an ISO timestamp starting with it, or the
// RFC 1123 form some JSON encoders emit for dates.
func parseWireDate(s string) (timefmt.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[4] == '-' && s[7] == '-' {
		s = s[:10]
	}
	if d, err := timefmt.ParseQueryDate(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse(time.RFC1123, s); err == nil {
		return timefmt.FromTime(t), nil
	}
	return timefmt.Date{}, &timefmt.InvalidDateError{Input: s, Reason: "unrecognized event_date"}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func trimSlash(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
