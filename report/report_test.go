package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-lattice-go/lattice"
	"option-lattice-go/payoff"
	"option-lattice-go/reference"
)

func twoStepResult(t *testing.T) lattice.Result {
	t.Helper()
	params := lattice.MarketParams{Kind: payoff.Call, Volatility: 0.2, Rate: 0.05, Strike: 100, Spot: 100, Maturity: 1, Steps: 2}
	engine, err := lattice.NewEngine(lattice.EngineConfig{})
	require.NoError(t, err)
	res, err := engine.Price(context.Background(), params)
	require.NoError(t, err)
	return res
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestScenarioRowRounding(t *testing.T) {
	res := twoStepResult(t)
	g := reference.Greeks{Value: 10.450583572185565}

	row := Builder{Decimals: 4}.Scenario("atm", res, &g)
	assert.Equal(t, "atm", row.Scenario)
	assert.Equal(t, "call", row.Kind)
	assert.Equal(t, 2, row.Steps)
	assert.Equal(t, "9.5405", row.Lattice.String())
	require.True(t, row.Analytic.Valid)
	assert.Equal(t, "10.4506", row.Analytic.Decimal.String())
	assert.Equal(t, "-0.9101", row.Diff.Decimal.String())
	assert.Equal(t, "0.5539", row.P.String())
	assert.Empty(t, row.Error)

	noRef := Builder{Decimals: 2}.Scenario("atm", res, nil)
	assert.Equal(t, "9.54", noRef.Lattice.String())
	assert.False(t, noRef.Analytic.Valid)
	assert.False(t, noRef.Diff.Valid)
}

func TestFailedRow(t *testing.T) {
	params := lattice.MarketParams{Kind: payoff.Put, Steps: 10}
	row := Builder{Decimals: 4}.Failed("bad", params, errors.New("boom"))
	assert.Equal(t, "put", row.Kind)
	assert.Equal(t, "boom", row.Error)
}

func TestWriteScenariosFormats(t *testing.T) {
	res := twoStepResult(t)
	rows := []ScenarioRow{Builder{Decimals: 4}.Scenario("atm", res, nil)}

	var csvBuf bytes.Buffer
	require.NoError(t, WriteScenarios(&csvBuf, FormatCSV, rows))
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "scenario,kind,steps,lattice,analytic,diff,up,down,p,error", lines[0])
	// 无闭式参照：analytic 与 diff 列为空，而不是 0
	assert.True(t, strings.HasPrefix(lines[1], "atm,call,2,9.5405,,,"), lines[1])

	var jsonBuf bytes.Buffer
	require.NoError(t, WriteScenarios(&jsonBuf, FormatJSON, rows))
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "9.5405", decoded[0]["lattice"])
	analytic, hasAnalytic := decoded[0]["analytic"]
	assert.True(t, hasAnalytic)
	assert.Nil(t, analytic)
	assert.Nil(t, decoded[0]["diff"])
	_, hasErr := decoded[0]["error"]
	assert.False(t, hasErr)

	var tableBuf bytes.Buffer
	require.NoError(t, WriteScenarios(&tableBuf, FormatTable, rows))
	assert.Contains(t, tableBuf.String(), "SCENARIO")
	assert.Contains(t, tableBuf.String(), "9.5405")
	assert.NotContains(t, tableBuf.String(), "{")
}

func TestWriteConvergence(t *testing.T) {
	pts := []reference.ConvergencePoint{
		{Steps: 10, Lattice: 10.6080, Analytic: 10.4506, AbsError: 0.1574},
		{Steps: 100, Lattice: 10.4306, Analytic: 10.4506, AbsError: 0.00001234},
	}
	rows := Builder{Decimals: 4}.Convergence("atm", pts)
	require.Len(t, rows, 2)
	// 误差多保留 4 位
	assert.Equal(t, "0.00001234", rows[1].AbsError.String())

	var buf bytes.Buffer
	require.NoError(t, WriteConvergence(&buf, FormatCSV, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "scenario,steps,lattice,analytic,abs_error", lines[0])
	assert.Equal(t, "atm,10,10.608,10.4506,0.1574", lines[1])

	buf.Reset()
	require.NoError(t, WriteConvergence(&buf, FormatTable, rows))
	assert.Contains(t, buf.String(), "ABS_ERROR")
}
