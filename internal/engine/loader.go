package engine

import (
	"context"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/jackc/pgx/v4/pgxpool"
)

type DataLoader struct {
	pool *pgxpool.Pool
}

func NewDataLoader(pool *pgxpool.Pool) *DataLoader {
	return &DataLoader{pool: pool}
}

func (l *DataLoader) LoadCandles(ctx context.Context, symbol string, start, end time.Time, period string) ([]model.Candle, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT time, symbol, exchange, period, open, high, low, close, volume
		FROM klines
		WHERE symbol = $1 AND period = $2 AND time >= $3 AND time <= $4
		ORDER BY time ASC`,
		symbol, period, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Timestamp, &c.Symbol, &c.Exchange, &c.Period, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LoadRecentCandles returns up to limit candles ending at the newest bar,
// in ascending time order.
func (l *DataLoader) LoadRecentCandles(ctx context.Context, symbol, period string, limit int) ([]model.Candle, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT time, symbol, exchange, period, open, high, low, close, volume
		FROM (
			SELECT time, symbol, exchange, period, open, high, low, close, volume
			FROM klines
			WHERE symbol = $1 AND period = $2
			ORDER BY time DESC
			LIMIT $3
		) recent
		ORDER BY time ASC`,
		symbol, period, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Timestamp, &c.Symbol, &c.Exchange, &c.Period, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
