// Package reference 提供 Black-Scholes-Merton 闭式定价与 Greeks，
// 作为二叉树收敛性的参照。
package reference

import (
	"fmt"
	"math"
	"time"

	"option-lattice-go/calendar"
	"option-lattice-go/payoff"
)

// Greeks 闭式定价结果。Vega 按波动率变化 1.0 计，Theta 为年化值。
type Greeks struct {
	Value float64 `json:"value"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
}

// ThetaPerDay 按 365 天折算的每日 theta。
func (g Greeks) ThetaPerDay() float64 { return g.Theta / 365 }

// normCDF P(X <= x) = 0.5 * (1 + erf(x / sqrt(2)))
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// BlackScholes 欧式期权闭式价格及 Greeks（连续分红率 div）。
func BlackScholes(kind payoff.Kind, sigma, r, strike, spot, div, maturity float64) (Greeks, error) {
	if !kind.Valid() {
		return Greeks{}, &payoff.ValidationError{Input: string(kind)}
	}
	if !(sigma > 0) || !(maturity > 0) || !(spot > 0) || !(strike > 0) {
		return Greeks{}, fmt.Errorf("black-scholes needs sigma, maturity, spot, strike > 0 (sigma=%v T=%v S=%v K=%v)",
			sigma, maturity, spot, strike)
	}

	sqrtT := math.Sqrt(maturity)
	d1 := (math.Log(spot/strike) + (r-div+0.5*sigma*sigma)*maturity) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	dfR := math.Exp(-r * maturity)
	dfQ := math.Exp(-div * maturity)

	g := Greeks{
		Gamma: dfQ * normPDF(d1) / (spot * sigma * sqrtT),
		Vega:  spot * dfQ * normPDF(d1) * sqrtT,
	}
	decay := -(spot * dfQ * normPDF(d1) * sigma) / (2 * sqrtT)
	if kind == payoff.Call {
		g.Value = spot*dfQ*normCDF(d1) - strike*dfR*normCDF(d2)
		g.Delta = dfQ * normCDF(d1)
		g.Theta = decay - r*strike*dfR*normCDF(d2) + div*spot*dfQ*normCDF(d1)
	} else {
		g.Value = strike*dfR*normCDF(-d2) - spot*dfQ*normCDF(-d1)
		g.Delta = dfQ * (normCDF(d1) - 1)
		g.Theta = decay + r*strike*dfR*normCDF(-d2) - div*spot*dfQ*normCDF(-d1)
	}
	return g, nil
}

// Analytic 以日历口径计算期限后调用 BlackScholes。
// 到期日 = asOf + daysToExpiry 自然日，按日历 Following 调整；期限按 ACT/365F。
func Analytic(kind payoff.Kind, asOf time.Time, sigma, r, strike, spot, div float64, daysToExpiry int, calendarName string) (Greeks, error) {
	cal, err := calendar.Parse(calendarName)
	if err != nil {
		return Greeks{}, err
	}
	if !kind.Valid() {
		return Greeks{}, &payoff.ValidationError{Input: string(kind)}
	}
	if daysToExpiry <= 0 {
		return Greeks{}, fmt.Errorf("daysToExpiry must be > 0, got %d", daysToExpiry)
	}
	expiry := calendar.AdjustFollowing(cal, asOf.AddDate(0, 0, daysToExpiry))
	return BlackScholes(kind, sigma, r, strike, spot, div, calendar.YearFraction(asOf, expiry))
}
