// Package lattice 实现基于 Cox-Ross-Rubinstein 二叉树的欧式期权定价。
//
// 定价分两个阶段：正向阶段构建到期价格列并计算到期收益，
// 反向阶段从第 n-1 列逐列回推到第 0 列。第 j 列只有在第 j+1 列完整算完后才会计算。
package lattice

import (
	"math"
	"strconv"

	"option-lattice-go/payoff"
)

// MarketParams 单次定价的市场输入，所有利率/波动率与 Maturity 使用同一年化单位。
type MarketParams struct {
	Kind       payoff.Kind `yaml:"kind" json:"kind"`
	Volatility float64     `yaml:"volatility" json:"volatility"`
	Rate       float64     `yaml:"rate" json:"rate"`
	Strike     float64     `yaml:"strike" json:"strike"`
	Spot       float64     `yaml:"spot" json:"spot"`
	Dividend   float64     `yaml:"dividend" json:"dividend"`
	Maturity   float64     `yaml:"maturity" json:"maturity"`
	Steps      int         `yaml:"steps" json:"steps"`
}

// Constants 由 MarketParams 推导出的树参数。
type Constants struct {
	Dt   float64 `json:"dt"`
	Up   float64 `json:"u"`
	Down float64 `json:"d"`
	P    float64 `json:"p"`
	Q    float64 `json:"q"`
	Disc float64 `json:"disc"`
}

// Validate 检查前置条件，失败时返回 *ConfigurationError。
func (m MarketParams) Validate() error {
	if m.Steps < 1 {
		return &ConfigurationError{Param: "steps", Value: float64(m.Steps), Reason: "must be >= 1"}
	}
	if !(m.Volatility > 0) || math.IsInf(m.Volatility, 0) {
		return &ConfigurationError{Param: "volatility", Value: m.Volatility, Reason: "must be finite and > 0"}
	}
	if !(m.Maturity > 0) || math.IsInf(m.Maturity, 0) {
		return &ConfigurationError{Param: "maturity", Value: m.Maturity, Reason: "must be finite and > 0"}
	}
	if !(m.Spot > 0) || math.IsInf(m.Spot, 0) {
		return &ConfigurationError{Param: "spot", Value: m.Spot, Reason: "must be finite and > 0"}
	}
	if !(m.Strike >= 0) || math.IsInf(m.Strike, 0) {
		return &ConfigurationError{Param: "strike", Value: m.Strike, Reason: "must be finite and >= 0"}
	}
	if math.IsNaN(m.Rate) || math.IsInf(m.Rate, 0) {
		return &ConfigurationError{Param: "rate", Value: m.Rate, Reason: "must be finite"}
	}
	if math.IsNaN(m.Dividend) || math.IsInf(m.Dividend, 0) {
		return &ConfigurationError{Param: "dividend", Value: m.Dividend, Reason: "must be finite"}
	}
	if !m.Kind.Valid() {
		return &ConfigurationError{Param: "kind", Value: math.NaN(), Reason: "must be call or put, got " + strconv.Quote(string(m.Kind))}
	}
	return nil
}

// maxLogPrice float64 能表示的最大价格的自然对数（约 709.78）。
var maxLogPrice = math.Log(math.MaxFloat64)

// Derive 计算 dt,u,d,p,q,disc。p 不在 [0,1] 时返回 *ArbitrageError，不做截断。
// σ√dt 使 u 溢出时返回 *ConfigurationError；看涨期权的最高到期价格溢出时返回 *NumericalError。
func Derive(m MarketParams) (Constants, error) {
	if err := m.Validate(); err != nil {
		return Constants{}, err
	}
	dt := m.Maturity / float64(m.Steps)
	move := m.Volatility * math.Sqrt(dt)
	if move >= maxLogPrice {
		return Constants{}, &ConfigurationError{Param: "volatility", Value: m.Volatility,
			Reason: "times sqrt(maturity/steps) overflows the up factor"}
	}
	u := math.Exp(move)
	d := 1 / u
	growth := math.Exp((m.Rate - m.Dividend) * dt)
	p := (growth - d) / (u - d)
	if !(p >= 0 && p <= 1) {
		return Constants{}, &ArbitrageError{P: p, Up: u, Down: d, Growth: growth, Dt: dt}
	}
	// 看跌期权的收益在高价端为 0，溢出的节点不影响价值
	if m.Kind == payoff.Call {
		if top := math.Log(m.Spot) + float64(m.Steps)*move; top >= maxLogPrice {
			return Constants{}, &NumericalError{Stage: "terminal", Value: top}
		}
	}
	return Constants{
		Dt:   dt,
		Up:   u,
		Down: d,
		P:    p,
		Q:    1 - p,
		Disc: math.Exp(-m.Rate * dt),
	}, nil
}
