package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no stored row matches a lookup.
var ErrNotFound = errors.New("not found")

// ResultStore persists completed backtest results as JSON rows. Decimal
// fields marshal as strings, so equity curves and trades round-trip at full
// precision.
type ResultStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewResultStore(pool *pgxpool.Pool, logger *zap.Logger) *ResultStore {
	return &ResultStore{pool: pool, logger: logger}
}

func (s *ResultStore) SaveResult(ctx context.Context, strategyID string, result *model.BacktestResult, userID string) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var userArg interface{}
	if userID != "" {
		userArg = userID
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO backtest_results (strategy_id, user_id, results_json)
		VALUES ($1, $2, $3)`,
		strategyID, userArg, payload)
	if err != nil {
		return fmt.Errorf("failed to store backtest result: %w", err)
	}

	infrastructure.DBInsertRate.WithLabelValues("backtest_results").Inc()
	s.logger.Info("stored backtest result",
		zap.String("strategy_id", strategyID),
		zap.Int("trades", len(result.Trades)),
	)
	return nil
}

// LoadLatestResult returns the most recent stored result for a strategy.
func (s *ResultStore) LoadLatestResult(ctx context.Context, strategyID string) (*model.BacktestResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT results_json FROM backtest_results
		WHERE strategy_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		strategyID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load backtest result: %w", err)
	}

	var result model.BacktestResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored result: %w", err)
	}
	return &result, nil
}
