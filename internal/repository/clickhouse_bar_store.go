package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TrendPull/internal/domain/models"
	domrepo "TrendPull/internal/domain/repository"
	pkgch "TrendPull/pkg/clickhouse"
	applogger "TrendPull/pkg/logger"
)

// CHBarStore implements BarStore backed by ClickHouse. Bars for every
// timeframe share one table keyed (instrument, tf, ts); the ReplacingMergeTree
// collapses corrected closes by seq.
type CHBarStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

const barsTable = "trendpull.bars"

var barSchema = []string{
	`CREATE DATABASE IF NOT EXISTS trendpull`,
	`CREATE TABLE IF NOT EXISTS trendpull.bars (
        ts         DateTime,
        instrument LowCardinality(String),
        tf         LowCardinality(String),
        seq        UInt64,
        open       Float64,
        high       Float64,
        low        Float64,
        close      Float64,
        volume     Float64
    ) ENGINE = ReplacingMergeTree(seq)
    ORDER BY (instrument, tf, ts)`,
}

func NewCHBarStore(ch *pkgch.Client) *CHBarStore {
	return &CHBarStore{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init ensures the bar schema exists.
func (s *CHBarStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, barSchema)
}

func (s *CHBarStore) Store(ctx context.Context, b models.Bar) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, instrument, tf, seq, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", barsTable)
	_, err := s.db.ExecContext(ctx, q,
		b.Timestamp, b.Instrument, b.Timeframe, b.Seq,
		b.Open, b.High, b.Low, b.Close, b.Volume,
	)
	return err
}

func (s *CHBarStore) StoreBatch(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips; 2000 rows per chunk.
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, b := range bars[start:end] {
			if b.Instrument == "" || b.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Timestamp, b.Instrument, b.Timeframe, b.Seq,
				b.Open, b.High, b.Low, b.Close, b.Volume,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, instrument, tf, seq, open, high, low, close, volume) VALUES %s", barsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *CHBarStore) GetBars(ctx context.Context, instrument string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	const qtpl = `
        SELECT ts, instrument, tf, seq, open, high, low, close, volume
        FROM %s FINAL
        WHERE instrument = ? AND tf = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	q := fmt.Sprintf(qtpl, barsTable)
	rows, err := s.db.QueryContext(ctx, q, instrument, string(tf), from, to)
	if err != nil {
		s.logErr("clickhouse get_bars query error", instrument, tf, err)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			s.logErr("clickhouse get_bars scan error", instrument, tf, err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse get_bars rows error", instrument, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_bars ok",
			applogger.String("instrument", instrument),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHBarStore) GetLatestNBars(ctx context.Context, instrument string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	const qtpl = `
        SELECT ts, instrument, tf, seq, open, high, low, close, volume
        FROM %s FINAL
        WHERE instrument = ? AND tf = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, barsTable)
	rows, err := s.db.QueryContext(ctx, q, instrument, string(tf), n)
	if err != nil {
		s.logErr("clickhouse latest_bars query error", instrument, tf, err)
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, n)
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			s.logErr("clickhouse latest_bars scan error", instrument, tf, err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse latest_bars rows error", instrument, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse latest_bars ok",
			applogger.String("instrument", instrument),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) Close() error {
	return nil // connection pool managed by pkg client
}

func scanBar(rows *sql.Rows) (models.Bar, error) {
	var b models.Bar
	err := rows.Scan(&b.Timestamp, &b.Instrument, &b.Timeframe, &b.Seq,
		&b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
	return b, err
}

func (s *CHBarStore) logErr(msg, instrument string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("instrument", instrument),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}

var _ domrepo.BarStore = (*CHBarStore)(nil)
