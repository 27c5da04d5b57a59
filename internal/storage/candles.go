package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// CandleSaver batches candle inserts and flushes on a timer or when the
// batch fills, whichever comes first.
type CandleSaver struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	buffer []model.Candle
}

func NewCandleSaver(pool *pgxpool.Pool, logger *zap.Logger, interval time.Duration, batchSize int) *CandleSaver {
	return &CandleSaver{
		pool:      pool,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		buffer:    make([]model.Candle, 0, batchSize),
	}
}

func (s *CandleSaver) Add(candle model.Candle) {
	s.mu.Lock()
	s.buffer = append(s.buffer, candle)
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.Flush(context.Background())
	}
}

// AddBatch queues a whole fetch result at once.
func (s *CandleSaver) AddBatch(candles []model.Candle) {
	for _, c := range candles {
		s.Add(c)
	}
}

func (s *CandleSaver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush(context.Background())
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *CandleSaver) Flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]model.Candle, 0, s.batchSize)
	s.mu.Unlock()

	pgBatch := &pgx.Batch{}
	for _, c := range batch {
		pgBatch.Queue(`
			INSERT INTO klines (time, symbol, exchange, period, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, period, time) DO NOTHING`,
			c.Timestamp, c.Symbol, c.Exchange, c.Period, c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	results := s.pool.SendBatch(ctx, pgBatch)
	defer results.Close()
	for range batch {
		if _, err := results.Exec(); err != nil {
			s.logger.Error("failed to insert candle batch", zap.Error(err))
			return
		}
	}
	infrastructure.DBInsertRate.WithLabelValues("klines").Add(float64(len(batch)))
	s.logger.Debug("flushed candle batch", zap.Int("count", len(batch)))
}
