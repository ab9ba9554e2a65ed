package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/internal/engine"
	"github.com/BoranPatron/tradeboard/internal/httpclient"
	"github.com/BoranPatron/tradeboard/internal/metrics"
	"github.com/BoranPatron/tradeboard/internal/rate"
	"github.com/BoranPatron/tradeboard/pkg/model"
)

// Source tags used for logging, metrics and error scoping.
const (
	SourceGeo    = "geo_search"
	SourceTrades = "trade_list"
	SourceQuotes = "quote_list"
)

// TokenSource supplies the bearer token for upstream requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// errUnauthorized marks a 401 inside the executor's error handler so fetch
// methods can classify it before wrapping.
var errUnauthorized = errors.New("unauthorized")

// Client wraps HTTP communication with the marketplace backend. Each fetch
// method is independently fallible and returns errors already classified into
// the engine's taxonomy (SourceUnavailable vs AuthExpired).
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	tokens  TokenSource
	baseURL string
	mapper  *Mapper
}

// NewClient constructs a marketplace source client.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, baseURL string, tokens TokenSource) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	exec := httpclient.New(logger, rateMgr, httpClient, 2, "marketplace", func(status int, body []byte) error {
		if status == http.StatusUnauthorized {
			return fmt.Errorf("marketplace returned 401: %w", errUnauthorized)
		}

		var errResp errorWire
		_ = json.Unmarshal(body, &errResp)

		logger.Warn("marketplace.client_error",
			zap.Int("status", status),
			zap.String("detail", errResp.Detail),
			zap.String("body", string(body)))

		errMsg := errResp.Detail
		if errMsg == "" {
			errMsg = errResp.Message
		}
		if errMsg == "" {
			errMsg = string(body)
		}
		return fmt.Errorf("marketplace returned %d: %s", status, errMsg)
	})

	return &Client{
		logger:  logger,
		exec:    exec,
		tokens:  tokens,
		baseURL: baseURL,
		mapper:  NewMapper(),
	}
}

// GeoTradeSearch fetches trades within the radius around loc.
// GET /trades/search?lat&lon&radius_km&...
func (c *Client) GeoTradeSearch(ctx context.Context, loc model.Location, filters model.SearchFilters) ([]model.TradeRecord, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("radius_km", strconv.FormatFloat(loc.RadiusKm, 'f', -1, 64))
	if filters.Category != "" {
		q.Set("category", filters.Category)
	}
	if filters.Status != "" {
		q.Set("status", filters.Status)
	}
	if filters.Priority != "" {
		q.Set("priority", filters.Priority)
	}
	if filters.MinBudget > 0 {
		q.Set("min_budget", strconv.FormatFloat(filters.MinBudget, 'f', -1, 64))
	}
	if filters.MaxBudget > 0 {
		q.Set("max_budget", strconv.FormatFloat(filters.MaxBudget, 'f', -1, 64))
	}
	if filters.Limit > 0 {
		q.Set("limit", strconv.Itoa(filters.Limit))
	}

	var wires []tradeWire
	if err := c.getJSON(ctx, SourceGeo, "/trades/search?"+q.Encode(), &wires); err != nil {
		return nil, c.classify(SourceGeo, err)
	}
	return c.mapper.FromTradeWires(wires), nil
}

// GlobalTradeList fetches the unbounded tender list with messaging flags.
// GET /milestones/
func (c *Client) GlobalTradeList(ctx context.Context) ([]model.TradeRecord, error) {
	var wires []tradeWire
	if err := c.getJSON(ctx, SourceTrades, "/milestones/", &wires); err != nil {
		return nil, c.classify(SourceTrades, err)
	}
	return c.mapper.FromTradeWires(wires), nil
}

// GetTrade fetches a single tender, used to refresh one entity after a local
// mutation. GET /milestones/{id}
func (c *Client) GetTrade(ctx context.Context, id int64) (model.TradeRecord, error) {
	var wire tradeWire
	if err := c.getJSON(ctx, SourceTrades, fmt.Sprintf("/milestones/%d", id), &wire); err != nil {
		return model.TradeRecord{}, c.classify(SourceTrades, err)
	}
	return c.mapper.FromTradeWire(wire), nil
}

// QuoteList fetches the caller's own bids across all projects. GET /quotes
func (c *Client) QuoteList(ctx context.Context) ([]model.QuoteRecord, error) {
	var wires []quoteWire
	if err := c.getJSON(ctx, SourceQuotes, "/quotes", &wires); err != nil {
		return nil, c.classify(SourceQuotes, err)
	}
	return c.mapper.FromQuoteWires(wires), nil
}

// QuoteListForTrade fetches all bids for one tender (all bidders).
// GET /quotes/milestone/{id}
func (c *Client) QuoteListForTrade(ctx context.Context, tradeID int64) ([]model.QuoteRecord, error) {
	var wires []quoteWire
	if err := c.getJSON(ctx, SourceQuotes, fmt.Sprintf("/quotes/milestone/%d", tradeID), &wires); err != nil {
		return nil, c.classify(SourceQuotes, err)
	}
	return c.mapper.FromQuoteWires(wires), nil
}

// SubmitQuote submits a new bid upstream. POST /quotes
func (c *Client) SubmitQuote(ctx context.Context, sub model.QuoteSubmission) (model.QuoteRecord, error) {
	var wire quoteWire
	if err := c.postJSON(ctx, SourceQuotes, "/quotes", c.mapper.ToQuoteSubmitWire(sub), &wire); err != nil {
		return model.QuoteRecord{}, c.classify(SourceQuotes, err)
	}
	return c.mapper.FromQuoteWire(wire), nil
}

// RespondAppointment answers an appointment invitation upstream.
// POST /appointments/{id}/respond
func (c *Client) RespondAppointment(ctx context.Context, appointmentID int64, response string) error {
	body := appointmentResponseWire{
		AppointmentID: appointmentID,
		Response:      response,
	}
	path := fmt.Sprintf("/appointments/%d/respond", appointmentID)
	if err := c.postJSON(ctx, SourceTrades, path, body, nil); err != nil {
		return c.classify(SourceTrades, err)
	}
	return nil
}

// classify wraps any transport/backend error into the engine taxonomy and
// records the fetch result.
func (c *Client) classify(source string, err error) error {
	if errors.Is(err, errUnauthorized) {
		metrics.IncSourceFetch(source, "auth_expired")
		return engine.NewAuthExpired(source, err)
	}
	metrics.IncSourceFetch(source, "error")
	return engine.NewSourceUnavailable(source, err)
}

// getJSON performs an authenticated GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, source, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if err := c.setHeaders(ctx, req); err != nil {
		return err
	}

	start := time.Now()
	err = c.exec.DoJSON(ctx, req, "marketplace:"+source, out)
	metrics.ObserveDuration(metrics.SourceFetchDuration, start, source)
	if err == nil {
		metrics.IncSourceFetch(source, "ok")
	}
	return err
}

// postJSON performs an authenticated POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, source, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if err := c.setHeaders(ctx, req); err != nil {
		return err
	}

	start := time.Now()
	err = c.exec.DoJSON(ctx, req, "marketplace:"+source, out)
	metrics.ObserveDuration(metrics.SourceFetchDuration, start, source)
	if err == nil {
		metrics.IncSourceFetch(source, "ok")
	}
	return err
}

// setHeaders sets the required headers for marketplace API requests.
func (c *Client) setHeaders(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolve api token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return nil
}
