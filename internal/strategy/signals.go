package strategy

import (
	"github.com/Vaibhavk18/backtesting-platform/internal/indicator"
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
)

// GenerateSignals computes the configured indicators and evaluates entry and
// exit logic at every bar, producing one signal per candle. Entry takes
// priority over exit on the same bar.
func GenerateSignals(closes []float64, cfg *model.StrategyConfig) ([]model.Signal, map[string][]float64, error) {
	indicators, err := indicator.Compute(closes, cfg.Indicators)
	if err != nil {
		return nil, nil, err
	}

	signals := make([]model.Signal, len(closes))
	for i := range closes {
		enter, err := Evaluate(cfg.Entry, indicators, i)
		if err != nil {
			return nil, nil, err
		}
		if enter {
			signals[i] = model.SignalEnter
			continue
		}
		exit, err := Evaluate(cfg.Exit, indicators, i)
		if err != nil {
			return nil, nil, err
		}
		if exit {
			signals[i] = model.SignalExit
		}
	}

	return signals, indicators, nil
}

// Validate rejects strategies that cannot run: out-of-range allocation,
// unknown market or order type, logic referencing an indicator that the
// configured specs will never produce, an unknown operator, or a logic
// node that does not set exactly one variant. Called before any simulation
// starts.
func Validate(cfg *model.StrategyConfig) error {
	if cfg.Allocation <= 0 || cfg.Allocation > 1 {
		return model.NewConfigError("allocation must be in (0,1], got %v", cfg.Allocation)
	}

	switch cfg.MarketType {
	case model.MarketSpot, model.MarketPerp, model.MarketFuture, model.MarketOptions:
	default:
		return model.NewConfigError("unknown market type: %s", cfg.MarketType)
	}

	switch cfg.OrderType {
	case model.OrderMarket, model.OrderLimit:
	default:
		return model.NewConfigError("unknown order type: %s", cfg.OrderType)
	}

	// Compute against an empty series: cheap, and resolves every indicator
	// name the specs will produce.
	produced, err := indicator.Compute(nil, cfg.Indicators)
	if err != nil {
		return err
	}
	if err := checkReferences(cfg.Entry, produced); err != nil {
		return err
	}
	return checkReferences(cfg.Exit, produced)
}

func checkReferences(node model.LogicNode, produced map[string][]float64) error {
	variants := 0
	if node.Condition != nil {
		variants++
	}
	if node.And != nil {
		variants++
	}
	if node.Or != nil {
		variants++
	}
	if variants != 1 {
		return model.NewConfigError("logic node must set exactly one of condition, and, or")
	}

	if node.Condition != nil {
		for _, op := range []model.Operand{node.Condition.Left, node.Condition.Right} {
			if op.IsName {
				if _, ok := produced[op.Name]; !ok {
					return model.NewConfigError("logic references unknown indicator %q", op.Name)
				}
			}
		}
		switch node.Condition.Operator {
		case model.OpLT, model.OpGT, model.OpLTE, model.OpGTE, model.OpEQ, model.OpNEQ:
		default:
			return model.NewConfigError("unknown operator: %s", node.Condition.Operator)
		}
		return nil
	}
	for _, child := range node.And {
		if err := checkReferences(child, produced); err != nil {
			return err
		}
	}
	for _, child := range node.Or {
		if err := checkReferences(child, produced); err != nil {
			return err
		}
	}
	return nil
}
