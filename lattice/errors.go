package lattice

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrConfiguration 输入参数越界（波动率/期限/现价非正，步数小于 1 等）。
	ErrConfiguration = errors.New("lattice: invalid configuration")
	// ErrArbitrage 风险中性概率落在 [0,1] 之外，当前离散化不满足无套利。
	ErrArbitrage = errors.New("lattice: risk-neutral probability outside [0,1]")
	// ErrNumerical 网格中的价格或价值超出 float64 可表示范围。
	ErrNumerical = errors.New("lattice: value outside float64 range")
)

// ConfigurationError 指明哪个参数校验失败。
type ConfigurationError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	if math.IsNaN(e.Value) {
		return fmt.Sprintf("%s: %s %s", ErrConfiguration, e.Param, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s, got %v", ErrConfiguration, e.Param, e.Reason, e.Value)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ArbitrageError 携带导致概率越界的中间量，便于定位。
type ArbitrageError struct {
	P      float64
	Up     float64
	Down   float64
	Growth float64 // exp((r-div)*dt)
	Dt     float64
}

func (e *ArbitrageError) Error() string {
	return fmt.Sprintf("%s: p=%.6g (u=%.6g d=%.6g growth=%.6g dt=%.6g)",
		ErrArbitrage, e.P, e.Up, e.Down, e.Growth, e.Dt)
}

func (e *ArbitrageError) Unwrap() error { return ErrArbitrage }

// NumericalError 输入合法但无法用 float64 网格表示时返回，不会给出 Inf/NaN 价格。
type NumericalError struct {
	Stage string  // "terminal" 到期列最高价溢出；"value" 回推结果非有限
	Value float64 // terminal 时为最高节点价格的自然对数
}

func (e *NumericalError) Error() string {
	if e.Stage == "terminal" {
		return fmt.Sprintf("%s: ln(top terminal price)=%.6g exceeds %.6g", ErrNumerical, e.Value, maxLogPrice)
	}
	return fmt.Sprintf("%s: %s=%v", ErrNumerical, e.Stage, e.Value)
}

func (e *NumericalError) Unwrap() error { return ErrNumerical }

// Reason 返回用于指标标签的简短错误原因。
func Reason(err error) string {
	var cfgErr *ConfigurationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return "config_" + cfgErr.Param
	case errors.Is(err, ErrArbitrage):
		return "arbitrage"
	case errors.Is(err, ErrNumerical):
		return "numerical"
	default:
		return "other"
	}
}
