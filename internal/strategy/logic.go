package strategy

import (
	"github.com/Vaibhavk18/backtesting-platform/internal/model"
)

// resolve turns an operand into a concrete value at the given bar. Referencing
// an indicator that was never computed is a configuration error, never a
// silent fallback.
func resolve(op model.Operand, indicators map[string][]float64, index int) (float64, error) {
	if !op.IsName {
		return op.Literal, nil
	}
	series, ok := indicators[op.Name]
	if !ok {
		return 0, model.NewConfigError("logic references unknown indicator %q", op.Name)
	}
	return series[index], nil
}

func evaluateCondition(cond *model.Condition, indicators map[string][]float64, index int) (bool, error) {
	left, err := resolve(cond.Left, indicators, index)
	if err != nil {
		return false, err
	}
	right, err := resolve(cond.Right, indicators, index)
	if err != nil {
		return false, err
	}

	switch cond.Operator {
	case model.OpLT:
		return left < right, nil
	case model.OpGT:
		return left > right, nil
	case model.OpLTE:
		return left <= right, nil
	case model.OpGTE:
		return left >= right, nil
	case model.OpEQ:
		return left == right, nil
	case model.OpNEQ:
		return left != right, nil
	default:
		return false, model.NewConfigError("unknown operator: %s", cond.Operator)
	}
}

// Evaluate recursively evaluates a logic node at one bar. An empty AND is
// vacuously true, an empty OR is false. Children are evaluated left to
// right; the first resolution failure aborts, short-circuiting never masks
// a missing-indicator error on a path already reached.
func Evaluate(node model.LogicNode, indicators map[string][]float64, index int) (bool, error) {
	if node.Condition != nil {
		return evaluateCondition(node.Condition, indicators, index)
	}

	if node.And != nil {
		for _, child := range node.And {
			ok, err := Evaluate(child, indicators, index)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}

	if node.Or != nil {
		for _, child := range node.Or {
			ok, err := Evaluate(child, indicators, index)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	// A node with no variant set matches nothing.
	return false, nil
}
