package strategy

import (
	"encoding/json"
	"testing"

	"github.com/Vaibhavk18/backtesting-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func name(s string) model.Operand {
	return model.Operand{Name: s, IsName: true}
}

func lit(f float64) model.Operand {
	return model.Operand{Literal: f}
}

func cond(left model.Operand, op model.Operator, right model.Operand) model.LogicNode {
	return model.LogicNode{Condition: &model.Condition{Left: left, Operator: op, Right: right}}
}

func TestEvaluate_Conditions(t *testing.T) {
	indicators := map[string][]float64{
		"EMA_3": {1.0, 2.5, 4.0},
		"RSI":   {50, 70, 30},
	}

	tests := []struct {
		name string
		node model.LogicNode
		idx  int
		want bool
	}{
		{"gt true", cond(name("EMA_3"), model.OpGT, lit(2.0)), 1, true},
		{"gt false", cond(name("EMA_3"), model.OpGT, lit(2.0)), 0, false},
		{"lt", cond(name("RSI"), model.OpLT, lit(40)), 2, true},
		{"lte boundary", cond(name("EMA_3"), model.OpLTE, lit(2.5)), 1, true},
		{"gte boundary", cond(name("EMA_3"), model.OpGTE, lit(2.5)), 1, true},
		{"eq", cond(name("RSI"), model.OpEQ, lit(70)), 1, true},
		{"neq", cond(name("RSI"), model.OpNEQ, lit(70)), 1, false},
		{"indicator vs indicator", cond(name("EMA_3"), model.OpLT, name("RSI")), 0, true},
		{"literal vs literal", cond(lit(1), model.OpLT, lit(2)), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.node, indicators, tt.idx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_EmptyAndSurvivesStorageRoundTrip(t *testing.T) {
	// An always-enter strategy persists its entry as an empty AND group; the
	// rehydrated node must still be that group, not a variant-less node.
	data, err := json.Marshal(model.LogicNode{And: []model.LogicNode{}})
	require.NoError(t, err)

	var decoded model.LogicNode
	require.NoError(t, json.Unmarshal(data, &decoded))

	got, err := Evaluate(decoded, map[string][]float64{}, 0)
	require.NoError(t, err)
	assert.True(t, got, "empty AND must stay vacuously true after a round trip")
}

func TestEvaluate_EmptyAndOr(t *testing.T) {
	indicators := map[string][]float64{}

	got, err := Evaluate(model.LogicNode{And: []model.LogicNode{}}, indicators, 0)
	require.NoError(t, err)
	assert.True(t, got, "empty AND is vacuously true")

	got, err = Evaluate(model.LogicNode{Or: []model.LogicNode{}}, indicators, 0)
	require.NoError(t, err)
	assert.False(t, got, "empty OR is false")
}

func TestEvaluate_NestedTrees(t *testing.T) {
	indicators := map[string][]float64{
		"EMA_3": {5.0},
		"RSI":   {60.0},
	}

	// (EMA_3 > 4 AND RSI > 50) OR RSI < 10
	node := model.LogicNode{Or: []model.LogicNode{
		{And: []model.LogicNode{
			cond(name("EMA_3"), model.OpGT, lit(4)),
			cond(name("RSI"), model.OpGT, lit(50)),
		}},
		cond(name("RSI"), model.OpLT, lit(10)),
	}}

	got, err := Evaluate(node, indicators, 0)
	require.NoError(t, err)
	assert.True(t, got)

	// AND with one false child short-circuits to false
	node = model.LogicNode{And: []model.LogicNode{
		cond(name("EMA_3"), model.OpGT, lit(4)),
		cond(name("RSI"), model.OpGT, lit(90)),
	}}
	got, err = Evaluate(node, indicators, 0)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_UnknownIndicator(t *testing.T) {
	indicators := map[string][]float64{"EMA_3": {1.0}}

	_, err := Evaluate(cond(name("SMA_5"), model.OpGT, lit(1)), indicators, 0)
	require.Error(t, err)
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	// The error is surfaced from inside nested trees too.
	node := model.LogicNode{And: []model.LogicNode{
		cond(name("MISSING"), model.OpGT, lit(1)),
		cond(name("EMA_3"), model.OpGT, lit(0)),
	}}
	_, err = Evaluate(node, indicators, 0)
	assert.Error(t, err)
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	indicators := map[string][]float64{"EMA_3": {1.0}}
	_, err := Evaluate(cond(name("EMA_3"), "~", lit(1)), indicators, 0)
	require.Error(t, err)
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
