package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"option-lattice-go/payoff"
)

type singleLeg struct {
	kind     string
	strike   float64
	premium  float64
	position int
}

type diagramJob struct {
	single   singleLeg
	legsFile string
	spot     float64
	low      float64
	high     float64
	points   int
}

// legsDoc YAML 组合文件格式
type legsDoc struct {
	Legs []payoff.Leg `yaml:"legs"`
}

func (j diagramJob) legs() ([]payoff.Leg, error) {
	if j.legsFile == "" {
		kind, err := payoff.ParseKind(j.single.kind)
		if err != nil {
			return nil, err
		}
		return []payoff.Leg{{Kind: kind, Strike: j.single.strike, Premium: j.single.premium, Position: j.single.position}}, nil
	}
	raw, err := os.ReadFile(j.legsFile)
	if err != nil {
		return nil, fmt.Errorf("read legs: %w", err)
	}
	var doc legsDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse legs: %w", err)
	}
	return doc.Legs, nil
}

// run 写出 price,pnl 两列 CSV，返回盈亏平衡点。
func (j diagramJob) run(out io.Writer) ([]float64, error) {
	legs, err := j.legs()
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, fmt.Errorf("at least one leg is required")
	}
	center := j.spot
	if center == 0 {
		center = legs[0].Strike
	}
	grid, err := payoff.Grid(center, j.low, j.high, j.points)
	if err != nil {
		return nil, err
	}
	points, err := payoff.Diagram(legs, grid)
	if err != nil {
		return nil, err
	}
	if err := gocsv.Marshal(points, out); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return payoff.Breakevens(points), nil
}
