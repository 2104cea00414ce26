package reference

import (
	"context"
	"errors"
	"math"

	"option-lattice-go/lattice"
)

// DefaultConvergenceSteps 收敛检查使用的步数序列。
var DefaultConvergenceSteps = []int{10, 100, 1000, 10000}

// ConvergencePoint 某个步数下二叉树价格与闭式价格的差。
type ConvergencePoint struct {
	Steps    int     `json:"steps" csv:"steps"`
	Lattice  float64 `json:"lattice" csv:"lattice"`
	Analytic float64 `json:"analytic" csv:"analytic"`
	AbsError float64 `json:"absError" csv:"abs_error"`
}

// Convergence 依次按 steps 定价并与闭式价格比较。params.Steps 被忽略。
func Convergence(ctx context.Context, engine *lattice.Engine, params lattice.MarketParams, steps []int) ([]ConvergencePoint, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if len(steps) == 0 {
		steps = DefaultConvergenceSteps
	}
	ref, err := BlackScholes(params.Kind, params.Volatility, params.Rate, params.Strike, params.Spot, params.Dividend, params.Maturity)
	if err != nil {
		return nil, err
	}
	out := make([]ConvergencePoint, 0, len(steps))
	for _, n := range steps {
		p := params
		p.Steps = n
		res, err := engine.Price(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, ConvergencePoint{
			Steps:    n,
			Lattice:  res.Value,
			Analytic: ref.Value,
			AbsError: math.Abs(res.Value - ref.Value),
		})
	}
	return out, nil
}
