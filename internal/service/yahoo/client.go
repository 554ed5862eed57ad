package yahoo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
)

// Client implements a PriceProvider backed by the Yahoo Finance chart API.
type Client struct {
	lookback time.Duration
	now      func() time.Time
}

// New creates a Yahoo PriceProvider that fetches the last lookbackDays of bars.
func New(lookbackDays int) *Client {
	if lookbackDays <= 0 {
		lookbackDays = 60
	}
	return &Client{lookback: time.Duration(lookbackDays) * 24 * time.Hour, now: time.Now}
}

var _ drepo.PriceProvider = (*Client)(nil)

// chartInterval maps provider intervals to chart API intervals.
func chartInterval(iv drepo.Interval) datetime.Interval {
	switch iv {
	case drepo.Interval1m:
		return datetime.Interval("1m")
	case drepo.Interval5m:
		return datetime.Interval("5m")
	case drepo.Interval15m:
		return datetime.Interval("15m")
	case drepo.Interval30m:
		return datetime.Interval("30m")
	default:
		return datetime.Interval("60m")
	}
}

// FetchSeries returns bars newest first to match the other providers.
func (c *Client) FetchSeries(ctx context.Context, symbol string, interval drepo.Interval) ([]models.Bar, error) {
	end := c.now()
	start := end.Add(-c.lookback)

	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: chartInterval(interval),
	})

	var bars []models.Bar
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := iter.Bar()
		closePrice, _ := b.Close.Float64()
		if closePrice == 0 {
			continue
		}
		open, _ := b.Open.Float64()
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		bars = append(bars, models.Bar{
			Time:   time.Unix(int64(b.Timestamp), 0),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, errors.New("yahoo chart " + symbol + ": no bars")
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}
