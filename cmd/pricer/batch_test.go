package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-lattice-go/config"
	"option-lattice-go/infrastructure/alert"
	"option-lattice-go/infrastructure/logger"
	"option-lattice-go/lattice"
	"option-lattice-go/payoff"
	"option-lattice-go/report"
)

func testBatch(t *testing.T, scenarios map[string]lattice.MarketParams) batch {
	t.Helper()
	engine, err := lattice.NewEngine(lattice.EngineConfig{})
	require.NoError(t, err)
	cfg := config.AppConfig{Env: "test", Scenarios: scenarios}
	cfg.Report.Decimals = 4
	cfg.Reference.ConvergenceSteps = []int{10, 100}
	return batch{cfg: cfg, engine: engine, logger: logger.NewNop(), format: report.FormatCSV}
}

var atm = lattice.MarketParams{Kind: payoff.Call, Volatility: 0.2, Rate: 0.05, Strike: 100, Spot: 100, Maturity: 1, Steps: 2}

func TestBatchCSV(t *testing.T) {
	b := testBatch(t, map[string]lattice.MarketParams{
		"b_arb": {Kind: payoff.Call, Volatility: 0.001, Rate: 0.5, Strike: 100, Spot: 100, Maturity: 1, Steps: 1},
		"a_atm": atm,
	})
	var out bytes.Buffer
	require.NoError(t, b.run(context.Background(), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "a_atm,call,2,9.5405,10.4506,"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "b_arb,call,1,"), lines[2])
	assert.Contains(t, lines[2], "risk-neutral probability outside")
}

func TestBatchOverflowScenarioIsReportedNotPanicked(t *testing.T) {
	b := testBatch(t, map[string]lattice.MarketParams{
		"a_atm":  atm,
		"b_wild": {Kind: payoff.Call, Volatility: 6, Rate: 0.05, Strike: 100, Spot: 100, Maturity: 1, Steps: 20000},
	})
	var out bytes.Buffer
	require.NotPanics(t, func() {
		require.NoError(t, b.run(context.Background(), &out))
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "b_wild,call,20000,"), lines[2])
	assert.Contains(t, lines[2], "outside float64 range")
}

func TestBatchConvergence(t *testing.T) {
	b := testBatch(t, map[string]lattice.MarketParams{"atm": atm})
	b.convergence = true
	b.format = report.FormatTable
	var out bytes.Buffer
	require.NoError(t, b.run(context.Background(), &out))
	assert.Contains(t, out.String(), "ABS_ERROR")
	assert.Contains(t, out.String(), "9.5405")
}

type recordingChannel struct{ alerts []alert.Alert }

func (r *recordingChannel) Send(a alert.Alert) error { r.alerts = append(r.alerts, a); return nil }
func (r *recordingChannel) Name() string             { return "rec" }

func TestBatchConvergenceAlert(t *testing.T) {
	b := testBatch(t, map[string]lattice.MarketParams{"atm": atm})
	b.convergence = true
	// n=100 时误差约 0.02，超过 0.001
	b.cfg.Reference.Tolerance = 0.001
	rec := &recordingChannel{}
	b.alerts = alert.NewManager([]alert.Channel{rec}, time.Minute)
	require.NoError(t, b.run(context.Background(), &bytes.Buffer{}))
	require.Len(t, rec.alerts, 1)
	assert.Equal(t, "atm", rec.alerts[0].Fields["scenario"])
	assert.Equal(t, 100, rec.alerts[0].Fields["steps"])

	rec.alerts = nil
	b.alerts.ResetThrottle()
	b.cfg.Reference.Tolerance = 1
	require.NoError(t, b.run(context.Background(), &bytes.Buffer{}))
	assert.Empty(t, rec.alerts)
}

func TestBatchErrors(t *testing.T) {
	b := testBatch(t, nil)
	assert.Error(t, b.run(context.Background(), &bytes.Buffer{}))

	b = testBatch(t, map[string]lattice.MarketParams{"atm": atm})
	b.only = "missing"
	assert.Error(t, b.run(context.Background(), &bytes.Buffer{}))

	b = testBatch(t, map[string]lattice.MarketParams{
		"bad": {Kind: payoff.Put, Volatility: 0.2, Rate: 0.05, Strike: 100, Spot: 100, Maturity: 1, Steps: 0},
	})
	assert.Error(t, b.run(context.Background(), &bytes.Buffer{}))
}
