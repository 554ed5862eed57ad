package alphavantage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	"TrendWatch/internal/service/ratelimit"
	xhttp "TrendWatch/pkg/http"
	"TrendWatch/pkg/util"
)

const DefaultBaseURL = "https://www.alphavantage.co/query"

// ErrAPI is returned when the provider answers with a JSON error or throttle
// notice instead of CSV.
var ErrAPI = errors.New("alphavantage api error")

// Client implements a PriceProvider backed by the TIME_SERIES_INTRADAY CSV endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	outputSize string
	perMinute  float64
	http       *xhttp.Client
	limiter    *ratelimit.Limiter
	loc        *time.Location
}

// Option configures the client.
type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

func WithOutputSize(s string) Option { return func(c *Client) { c.outputSize = s } }

// WithRateLimit caps calls per minute. Zero disables limiting.
func WithRateLimit(perMinute float64, l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.perMinute = perMinute
		c.limiter = l
	}
}

func WithHTTPClient(h *xhttp.Client) Option { return func(c *Client) { c.http = h } }

// New creates a new Alpha Vantage PriceProvider.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		outputSize: "full",
		http:       xhttp.NewClient(xhttp.WithTimeout(30 * time.Second)),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Intraday timestamps are US/Eastern. Fall back to UTC without tzdata.
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		c.loc = loc
	} else {
		c.loc = time.UTC
	}
	return c
}

var _ drepo.PriceProvider = (*Client)(nil)

// FetchSeries downloads intraday bars, newest first as served.
func (c *Client) FetchSeries(ctx context.Context, symbol string, interval drepo.Interval) ([]models.Bar, error) {
	if c.limiter != nil && c.perMinute > 0 {
		if err := c.limiter.Wait(ctx, "alphavantage", c.perMinute, c.perMinute/60); err != nil {
			return nil, err
		}
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL,
		QueryParams: map[string][]string{
			"function":   {"TIME_SERIES_INTRADAY"},
			"symbol":     {symbol},
			"interval":   {string(interval)},
			"outputsize": {c.outputSize},
			"apikey":     {c.apiKey},
			"datatype":   {"csv"},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, err)
	}

	bars, err := ParseCSV(bytes.NewReader(body), c.loc)
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, err)
	}
	return bars, nil
}

// apiMessage covers the JSON bodies served in place of CSV.
type apiMessage struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// ParseCSV decodes a timestamp,open,high,low,close,volume CSV. A JSON body is
// reported as ErrAPI.
func ParseCSV(r io.Reader, loc *time.Location) ([]models.Bar, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var msg apiMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return nil, fmt.Errorf("%w: unparseable json body", ErrAPI)
		}
		text := msg.ErrorMessage
		if text == "" {
			text = msg.Note
		}
		if text == "" {
			text = msg.Information
		}
		return nil, fmt.Errorf("%w: %s", ErrAPI, text)
	}

	cr := csv.NewReader(bytes.NewReader(trimmed))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("empty csv")
	}

	header := columnIndex(records[0])
	closeCol, ok := header["close"]
	if !ok {
		return nil, fmt.Errorf("csv missing close column: %v", records[0])
	}
	timeCol, hasTime := header["timestamp"]

	bars := make([]models.Bar, 0, len(records)-1)
	for line, rec := range records[1:] {
		if closeCol >= len(rec) {
			return nil, fmt.Errorf("csv line %d: short record", line+2)
		}
		closePrice, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: close: %w", line+2, err)
		}
		bar := models.Bar{
			Close:  closePrice,
			Open:   field(rec, header, "open"),
			High:   field(rec, header, "high"),
			Low:    field(rec, header, "low"),
			Volume: field(rec, header, "volume"),
		}
		if hasTime && timeCol < len(rec) {
			bar.Time, _ = util.ParseTimeIn(strings.TrimSpace(rec[timeCol]), loc)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func field(rec []string, header map[string]int, name string) float64 {
	i, ok := header[name]
	if !ok || i >= len(rec) {
		return 0
	}
	v, _ := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	return v
}
