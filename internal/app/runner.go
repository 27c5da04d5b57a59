package app

import (
	"context"
	"time"

	"github.com/Vaibhavk18/backtesting-platform/internal/engine"
	"github.com/Vaibhavk18/backtesting-platform/internal/infrastructure"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/Vaibhavk18/backtesting-platform/internal/push"
	"github.com/Vaibhavk18/backtesting-platform/internal/storage"

	"go.uber.org/zap"
)

// progressEvery throttles progress events so long runs don't flood the
// session stream.
const progressEvery = 100

// newBacktestRunner builds the worker-pool run function: execute the job,
// stream progress and trades to the session, persist the result.
func newBacktestRunner(results *storage.ResultStore, publisher *push.Publisher, logger *zap.Logger) engine.RunFunc {
	return func(ctx context.Context, job engine.BacktestJob) {
		started := time.Now()
		marketType := string(job.Config.MarketType)

		sim, err := engine.NewSimulator(job.Config, job.InitialCapital, logger)
		if err != nil {
			logger.Warn("rejected backtest job",
				zap.String("strategy_id", job.StrategyID),
				zap.Error(err))
			infrastructure.BacktestsTotal.WithLabelValues(marketType, "error").Inc()
			publisher.Publish(job.SessionID, push.Event{
				Type:    push.EventError,
				Payload: map[string]string{"error": err.Error()},
			})
			return
		}

		sim.OnProgress = func(bar, total int) {
			if bar%progressEvery != 0 && bar != total-1 {
				return
			}
			publisher.Publish(job.SessionID, push.Event{
				Type:    push.EventProgress,
				Payload: map[string]int{"bar": bar, "total": total},
			})
		}
		sim.OnTrade = func(trade model.SimulatedTrade) {
			publisher.Publish(job.SessionID, push.Event{
				Type:    push.EventTrade,
				Payload: trade,
			})
		}

		result, err := sim.Run(ctx, job.Candles)
		infrastructure.BacktestDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			logger.Error("backtest job failed",
				zap.String("strategy_id", job.StrategyID),
				zap.String("session_id", job.SessionID),
				zap.Error(err))
			infrastructure.BacktestsTotal.WithLabelValues(marketType, "error").Inc()
			publisher.Publish(job.SessionID, push.Event{
				Type:    push.EventError,
				Payload: map[string]string{"error": err.Error()},
			})
			return
		}

		if job.StrategyID != "" {
			if err := results.SaveResult(ctx, job.StrategyID, result, job.UserID); err != nil {
				logger.Error("failed to persist backtest result",
					zap.String("strategy_id", job.StrategyID),
					zap.Error(err))
			}
		}

		infrastructure.BacktestsTotal.WithLabelValues(marketType, "success").Inc()
		publisher.Publish(job.SessionID, push.Event{
			Type:    push.EventComplete,
			Payload: result,
		})
	}
}
