package reference

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-lattice-go/calendar"
	"option-lattice-go/lattice"
	"option-lattice-go/payoff"
)

const tolerance = 1e-4

func TestBlackScholesATM(t *testing.T) {
	call, err := BlackScholes(payoff.Call, 0.2, 0.05, 100, 100, 0, 1)
	require.NoError(t, err)
	// d1 = 0.35, d2 = 0.15
	assert.InDelta(t, 10.4506, call.Value, tolerance)
	assert.InDelta(t, 0.63683, call.Delta, tolerance)
	assert.InDelta(t, 0.01876, call.Gamma, tolerance)
	assert.InDelta(t, 37.524, call.Vega, 1e-2)
	assert.InDelta(t, -6.4140, call.Theta, 1e-3)
	assert.InDelta(t, call.Theta/365, call.ThetaPerDay(), 1e-15)

	put, err := BlackScholes(payoff.Put, 0.2, 0.05, 100, 100, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 5.5735, put.Value, tolerance)
	assert.InDelta(t, -0.36317, put.Delta, tolerance)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-15)
	assert.InDelta(t, call.Vega, put.Vega, 1e-12)
	assert.InDelta(t, -1.6579, put.Theta, 1e-3)

	// parity: C - P = S - K e^{-rT}
	assert.InDelta(t, 100-100*math.Exp(-0.05), call.Value-put.Value, 1e-12)
}

func TestBlackScholesDividendParity(t *testing.T) {
	call, err := BlackScholes(payoff.Call, 0.3, 0.03, 95, 100, 0.02, 0.75)
	require.NoError(t, err)
	put, err := BlackScholes(payoff.Put, 0.3, 0.03, 95, 100, 0.02, 0.75)
	require.NoError(t, err)
	want := 100*math.Exp(-0.02*0.75) - 95*math.Exp(-0.03*0.75)
	assert.InDelta(t, want, call.Value-put.Value, 1e-12)
	assert.InDelta(t, math.Exp(-0.02*0.75), call.Delta-put.Delta, 1e-12)
}

func TestBlackScholesRejectsBadInput(t *testing.T) {
	_, err := BlackScholes("digital", 0.2, 0.05, 100, 100, 0, 1)
	assert.ErrorIs(t, err, payoff.ErrInvalidKind)

	_, err = BlackScholes(payoff.Call, 0, 0.05, 100, 100, 0, 1)
	assert.Error(t, err)
	_, err = BlackScholes(payoff.Call, 0.2, 0.05, 100, 100, 0, 0)
	assert.Error(t, err)
}

func TestAnalyticCalendar(t *testing.T) {
	asOf := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)

	// 2027-01-02 是周六；NULL 日历不调整，期限正好 1 年
	g, err := Analytic(payoff.Call, asOf, 0.2, 0.05, 100, 100, 0, 365, "null")
	require.NoError(t, err)
	want, err := BlackScholes(payoff.Call, 0.2, 0.05, 100, 100, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, want.Value, g.Value, 1e-12)

	// TARGET 顺延到 2027-01-04，期限变长，call 价值更高
	adj, err := Analytic(payoff.Call, asOf, 0.2, 0.05, 100, 100, 0, 365, "TARGET")
	require.NoError(t, err)
	longer, err := BlackScholes(payoff.Call, 0.2, 0.05, 100, 100, 0, 367.0/365.0)
	require.NoError(t, err)
	assert.InDelta(t, longer.Value, adj.Value, 1e-12)
	assert.Greater(t, adj.Value, g.Value)
}

func TestAnalyticErrors(t *testing.T) {
	asOf := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)

	_, err := Analytic(payoff.Call, asOf, 0.2, 0.05, 100, 100, 0, 30, "Atlantis")
	require.Error(t, err)
	var uc *calendar.UnknownCalendarError
	assert.True(t, errors.As(err, &uc))

	_, err = Analytic(payoff.Kind("swaption"), asOf, 0.2, 0.05, 100, 100, 0, 30, "NYSE")
	require.Error(t, err)
	var ve *payoff.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = Analytic(payoff.Put, asOf, 0.2, 0.05, 100, 100, 0, 0, "NYSE")
	assert.Error(t, err)
}

func TestConvergence(t *testing.T) {
	engine, err := lattice.NewEngine(lattice.EngineConfig{Workers: 4})
	require.NoError(t, err)
	params := lattice.MarketParams{Kind: payoff.Call, Volatility: 0.2, Rate: 0.05, Strike: 100, Spot: 100, Maturity: 1}

	steps := DefaultConvergenceSteps
	if testing.Short() {
		steps = []int{10, 100, 1000}
	}
	pts, err := Convergence(context.Background(), engine, params, steps)
	require.NoError(t, err)
	require.Len(t, pts, len(steps))

	for i := 1; i < len(pts); i++ {
		assert.Less(t, pts[i].AbsError, pts[i-1].AbsError, "error should shrink from n=%d to n=%d", pts[i-1].Steps, pts[i].Steps)
		// O(1/n)：步数放大 10 倍，误差至少缩小 5 倍
		assert.Less(t, pts[i].AbsError*5, pts[i-1].AbsError)
	}
	last := pts[len(pts)-1]
	assert.Less(t, last.AbsError, 1e-2)
	assert.InDelta(t, 10.450583572185565, last.Analytic, 1e-9)
}

func TestConvergenceErrors(t *testing.T) {
	engine, err := lattice.NewEngine(lattice.EngineConfig{})
	require.NoError(t, err)

	_, err = Convergence(context.Background(), nil, lattice.MarketParams{}, nil)
	assert.Error(t, err)

	params := lattice.MarketParams{Kind: payoff.Call, Volatility: 0.001, Rate: 0.5, Strike: 100, Spot: 100, Maturity: 1}
	_, err = Convergence(context.Background(), engine, params, []int{1})
	assert.ErrorIs(t, err, lattice.ErrArbitrage)
}
