package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

type StrategyStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStrategyStore(pool *pgxpool.Pool, logger *zap.Logger) *StrategyStore {
	return &StrategyStore{pool: pool, logger: logger}
}

// Create persists a validated strategy config and returns its assigned id.
func (s *StrategyStore) Create(ctx context.Context, name string, cfg *model.StrategyConfig, userID string) (string, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal strategy config: %w", err)
	}

	id := uuid.NewString()
	var userArg interface{}
	if userID != "" {
		userArg = userID
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO strategies (id, user_id, name, config)
		VALUES ($1, $2, $3, $4)`,
		id, userArg, name, payload)
	if err != nil {
		return "", fmt.Errorf("failed to store strategy: %w", err)
	}

	infrastructure.DBInsertRate.WithLabelValues("strategies").Inc()
	s.logger.Info("stored strategy", zap.String("id", id), zap.String("name", name))
	return id, nil
}

func (s *StrategyStore) Get(ctx context.Context, id string) (*model.Strategy, error) {
	var strat model.Strategy
	err := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(user_id, ''), name, config, created_at
		FROM strategies WHERE id = $1`,
		id).Scan(&strat.ID, &strat.UserID, &strat.Name, &strat.Config, &strat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy: %w", err)
	}
	return &strat, nil
}

// GetConfig loads and decodes the stored strategy config.
func (s *StrategyStore) GetConfig(ctx context.Context, id string) (*model.StrategyConfig, error) {
	strat, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var cfg model.StrategyConfig
	if err := json.Unmarshal(strat.Config, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode strategy config: %w", err)
	}
	return &cfg, nil
}
