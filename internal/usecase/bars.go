package usecase

import (
	"context"
	"fmt"
	"time"

	"TrendPull/internal/domain/models"
	domrepo "TrendPull/internal/domain/repository"
	"TrendPull/pkg/util"
)

// BarsUseCase provides business logic for retrieving bars.
type BarsUseCase struct {
	store domrepo.BarStore
}

func NewBarsUseCase(store domrepo.BarStore) *BarsUseCase {
	return &BarsUseCase{store: store}
}

type GetBarsParams struct {
	Instrument string
	Timeframe  domrepo.Timeframe
	Limit      int
}

type GetBarsResult struct {
	Instrument string
	Timeframe  string
	From       time.Time
	To         time.Time
	Count      int
	Bars       []models.Bar
}

func (uc *BarsUseCase) GetLatestBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	if p.Instrument == "" {
		return nil, fmt.Errorf("instrument required")
	}
	if p.Limit <= 0 {
		p.Limit = models.MinHistoryBars
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}

	bars, err := uc.store.GetLatestNBars(ctx, p.Instrument, p.Limit, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}

	res := &GetBarsResult{
		Instrument: p.Instrument,
		Timeframe:  string(p.Timeframe),
		Count:      len(bars),
		Bars:       bars,
	}
	if len(bars) > 0 {
		res.From = bars[0].Timestamp
		res.To = bars[len(bars)-1].Timestamp
	}
	return res, nil
}

// GetBarsRange returns bars inside [from, to], boundaries aligned to the
// timeframe grid.
func (uc *BarsUseCase) GetBarsRange(ctx context.Context, instrument string, from, to time.Time, tf domrepo.Timeframe) (*GetBarsResult, error) {
	if instrument == "" {
		return nil, fmt.Errorf("instrument required")
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("empty time range")
	}
	from, to = util.AlignFromTo(from, to, string(tf))

	bars, err := uc.store.GetBars(ctx, instrument, from, to, tf)
	if err != nil {
		return nil, fmt.Errorf("get bars range: %w", err)
	}
	return &GetBarsResult{
		Instrument: instrument,
		Timeframe:  string(tf),
		From:       from,
		To:         to,
		Count:      len(bars),
		Bars:       bars,
	}, nil
}
