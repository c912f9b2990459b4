package history

import (
	"context"
	"fmt"
	"strconv"
	"time"

	models "TrendPull/internal/domain/models"
	xhttp "TrendPull/pkg/http"
)

// Provider fetches historical bars over the feed's REST endpoint. It is
// used to seed evaluation windows before the live stream takes over.
type Provider struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
}

func NewProvider(baseURL, apiKey string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Provider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type barsEnvelope struct {
	Bars []restBar `json:"bars"`
}

type restBar struct {
	Timestamp int64   `json:"t"`
	Seq       uint64  `json:"seq"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// FetchBars returns up to limit closed bars for (instrument, tf),
// oldest first. Malformed rows are dropped rather than failing the batch.
func (p *Provider) FetchBars(ctx context.Context, instrument, tf string, limit int) ([]models.Bar, error) {
	if p.baseURL == "" {
		return nil, fmt.Errorf("history rest url not configured")
	}

	var env barsEnvelope
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    p.baseURL + "/bars",
		Headers: map[string]string{
			"X-API-Key": p.apiKey,
		},
		QueryParams: map[string][]string{
			"symbol": {instrument},
			"tf":     {tf},
			"limit":  {strconv.Itoa(limit)},
		},
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s %s: %w", instrument, tf, err)
	}

	bars := make([]models.Bar, 0, len(env.Bars))
	for _, rb := range env.Bars {
		ts := rb.Timestamp
		if ts > 1e11 {
			ts = ts / 1000
		}
		b := models.Bar{
			Instrument: instrument,
			Timeframe:  tf,
			Timestamp:  time.Unix(ts, 0).UTC(),
			Seq:        rb.Seq,
			Open:       rb.Open,
			High:       rb.High,
			Low:        rb.Low,
			Close:      rb.Close,
			Volume:     rb.Volume,
		}
		if err := b.Validate(); err != nil {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}
