package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-lattice-go/payoff"
)

func TestSingleLegCentersOnStrike(t *testing.T) {
	job := diagramJob{
		single: singleLeg{kind: "CE", strike: 200, premium: 10, position: 1},
		low:    0.5, high: 1.5, points: 5,
	}
	var out bytes.Buffer
	breakevens, err := job.run(&out)
	require.NoError(t, err)

	var pts []payoff.Point
	require.NoError(t, gocsv.UnmarshalString(out.String(), &pts))
	require.Len(t, pts, 5)
	assert.Equal(t, 100.0, pts[0].Price)
	assert.Equal(t, 300.0, pts[4].Price)
	assert.Equal(t, -10.0, pts[0].PnL)
	assert.Equal(t, 90.0, pts[4].PnL)
	require.Len(t, breakevens, 1)
	assert.InDelta(t, 210, breakevens[0], 1e-9)
	assert.True(t, strings.HasPrefix(out.String(), "price,pnl\n"))
}

func TestLegsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
legs:
  - {kind: call, strike: 100, premium: 5, position: 1}
  - {kind: put, strike: 100, premium: 5, position: 1}
`), 0o644))

	job := diagramJob{legsFile: path, spot: 100, low: 0.5, high: 1.5, points: 401}
	breakevens, err := job.run(&bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, breakevens, 2)
	assert.InDelta(t, 90, breakevens[0], 1e-9)
	assert.InDelta(t, 110, breakevens[1], 1e-9)
}

func TestDiagramJobErrors(t *testing.T) {
	_, err := diagramJob{single: singleLeg{kind: "straddle", strike: 100, position: 1}, low: 0.5, high: 1.5, points: 10}.run(&bytes.Buffer{})
	assert.ErrorIs(t, err, payoff.ErrInvalidKind)

	_, err = diagramJob{single: singleLeg{kind: "put", strike: 100, position: 2}, low: 0.5, high: 1.5, points: 10}.run(&bytes.Buffer{})
	assert.Error(t, err)

	_, err = diagramJob{single: singleLeg{kind: "put", strike: 100, position: 1}, low: 1.5, high: 0.5, points: 10}.run(&bytes.Buffer{})
	assert.ErrorIs(t, err, payoff.ErrInvalidGrid)

	_, err = diagramJob{legsFile: filepath.Join(t.TempDir(), "none.yaml"), points: 10}.run(&bytes.Buffer{})
	assert.Error(t, err)
}
