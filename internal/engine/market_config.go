package engine

import (
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/shopspring/decimal"
)

type SettlementMode string

const (
	SettlementImmediate  SettlementMode = "immediate"
	SettlementContinuous SettlementMode = "continuous"
	SettlementExpiry     SettlementMode = "expiry"
)

// MarketConfig holds the static economics of a market type.
type MarketConfig struct {
	Leverage          decimal.Decimal
	MarginRequirement decimal.Decimal
	Settlement        SettlementMode
	FundingRate       decimal.Decimal
	FundingHours      float64 // funding interval; the rate is quoted per 8h
}

var marketConfigs = map[model.MarketType]MarketConfig{
	model.MarketSpot: {
		Leverage:          decimal.NewFromInt(1),
		MarginRequirement: decimal.NewFromInt(1),
		Settlement:        SettlementImmediate,
		FundingRate:       decimal.Zero,
		FundingHours:      8,
	},
	model.MarketPerp: {
		Leverage:          decimal.NewFromInt(10),
		MarginRequirement: decimal.NewFromFloat(0.1),
		Settlement:        SettlementContinuous,
		FundingRate:       decimal.NewFromFloat(0.0001),
		FundingHours:      8,
	},
	model.MarketFuture: {
		Leverage:          decimal.NewFromInt(20),
		MarginRequirement: decimal.NewFromFloat(0.05),
		Settlement:        SettlementExpiry,
		FundingRate:       decimal.Zero,
		FundingHours:      8,
	},
	model.MarketOptions: {
		Leverage:          decimal.NewFromInt(1),
		MarginRequirement: decimal.NewFromInt(1),
		Settlement:        SettlementExpiry,
		FundingRate:       decimal.Zero,
		FundingHours:      8,
	},
}

// GetMarketConfig returns the static config for a market type. Unknown types
// are a configuration error; validation normally catches them earlier.
func GetMarketConfig(marketType model.MarketType) (MarketConfig, error) {
	cfg, ok := marketConfigs[marketType]
	if !ok {
		return MarketConfig{}, model.NewConfigError("unknown market type: %s", marketType)
	}
	return cfg, nil
}
