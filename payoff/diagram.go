package payoff

import (
	"errors"
	"fmt"
)

const (
	DefaultGridLow    = 0.5
	DefaultGridHigh   = 1.5
	DefaultGridPoints = 400
)

var ErrInvalidGrid = errors.New("invalid price grid")

// Grid 在 [low*spot, high*spot] 上生成 n 个等距的到期价格（含两端）。
func Grid(spot, low, high float64, n int) ([]float64, error) {
	if spot <= 0 {
		return nil, fmt.Errorf("%w: spot must be > 0, got %v", ErrInvalidGrid, spot)
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: points must be >= 2, got %d", ErrInvalidGrid, n)
	}
	if low < 0 || low >= high {
		return nil, fmt.Errorf("%w: need 0 <= low < high, got low=%v high=%v", ErrInvalidGrid, low, high)
	}
	start := low * spot
	end := high * spot
	step := (end - start) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = end
	return out, nil
}

// DefaultGrid spot 的 50%~150%，400 个点。
func DefaultGrid(spot float64) ([]float64, error) {
	return Grid(spot, DefaultGridLow, DefaultGridHigh, DefaultGridPoints)
}

// Leg 组合中的一条期权腿。
type Leg struct {
	Kind     Kind    `yaml:"kind" json:"kind"`
	Strike   float64 `yaml:"strike" json:"strike"`
	Premium  float64 `yaml:"premium" json:"premium"`
	Position int     `yaml:"position" json:"position"`
}

// Validate 校验单腿参数。
func (l Leg) Validate() error {
	if !l.Kind.Valid() {
		return &ValidationError{Input: string(l.Kind)}
	}
	if l.Strike < 0 {
		return fmt.Errorf("leg strike must be >= 0, got %v", l.Strike)
	}
	if l.Position != 1 && l.Position != -1 {
		return fmt.Errorf("leg position must be +1 or -1, got %d", l.Position)
	}
	return nil
}

// Point 损益图上的一个点。
type Point struct {
	Price float64 `csv:"price" json:"price"`
	PnL   float64 `csv:"pnl" json:"pnl"`
}

// Diagram 计算组合在每个到期价格上的合计损益。
func Diagram(legs []Leg, grid []float64) ([]Point, error) {
	if len(legs) == 0 {
		return nil, errors.New("at least one leg is required")
	}
	for i, l := range legs {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
	}
	points := make([]Point, len(grid))
	for i, s := range grid {
		total := 0.0
		for _, l := range legs {
			total += PnL(l.Kind, s, l.Strike, l.Premium, l.Position)
		}
		points[i] = Point{Price: s, PnL: total}
	}
	return points, nil
}

// Breakevens 线性插值求损益曲线的零点。
func Breakevens(points []Point) []float64 {
	var out []float64
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		if a.PnL == 0 {
			if i == 1 || points[i-2].PnL != 0 {
				out = append(out, a.Price)
			}
			continue
		}
		if (a.PnL < 0 && b.PnL > 0) || (a.PnL > 0 && b.PnL < 0) {
			w := a.PnL / (a.PnL - b.PnL)
			out = append(out, a.Price+w*(b.Price-a.Price))
		}
	}
	if n := len(points); n > 0 && points[n-1].PnL == 0 && (n == 1 || points[n-2].PnL != 0) {
		out = append(out, points[n-1].Price)
	}
	return out
}
