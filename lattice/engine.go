package lattice

import (
	"context"
	"errors"
	"math"
	"time"

	"option-lattice-go/payoff"
)

// Recorder 接收定价结果的观测（可对接 Prometheus）。
type Recorder interface {
	Observe(kind payoff.Kind, steps int, elapsed time.Duration)
	Fail(reason string)
}

// EngineConfig 引擎配置。
type EngineConfig struct {
	Workers          int      // 列内并行度，<=1 表示串行
	ParallelMinSteps int      // 步数达到该值才启用并行
	Recorder         Recorder // 可选
}

const DefaultParallelMinSteps = 2048

// Engine 无状态的定价引擎，可被多个 goroutine 同时使用。
type Engine struct {
	cfg EngineConfig
}

// Result 单次定价结果。
type Result struct {
	Value     float64       `json:"value"`
	Constants Constants     `json:"constants"`
	Params    MarketParams  `json:"params"`
	Elapsed   time.Duration `json:"elapsedNs"`
}

// NewEngine 创建引擎。
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Workers < 0 {
		return nil, errors.New("workers must be >= 0")
	}
	if cfg.ParallelMinSteps < 0 {
		return nil, errors.New("parallelMinSteps must be >= 0")
	}
	if cfg.ParallelMinSteps == 0 {
		cfg.ParallelMinSteps = DefaultParallelMinSteps
	}
	return &Engine{cfg: cfg}, nil
}

// Price 正向构建到期列并计算收益，随后回推到 t=0。
// 所有输入错误在分配任何网格之前返回。
func (e *Engine) Price(ctx context.Context, m MarketParams) (Result, error) {
	start := time.Now()
	c, err := Derive(m)
	if err != nil {
		e.fail(err)
		return Result{}, err
	}

	values := TerminalValues(m.Kind, TerminalPrices(m.Spot, c.Up, c.Down, m.Steps), m.Strike)
	var v float64
	if e.cfg.Workers > 1 && m.Steps >= e.cfg.ParallelMinSteps {
		v, err = InductParallel(ctx, values, c, e.cfg.Workers)
		if err != nil {
			e.fail(err)
			return Result{}, err
		}
	} else {
		v = Induct(values, c)
	}
	if err := checkFinite(v); err != nil {
		e.fail(err)
		return Result{}, err
	}

	res := Result{Value: v, Constants: c, Params: m, Elapsed: time.Since(start)}
	if e.cfg.Recorder != nil {
		e.cfg.Recorder.Observe(m.Kind, m.Steps, res.Elapsed)
	}
	return res, nil
}

// PriceTree 稠密版本：返回完整价格树与同形的价值网格。内存 O(n^2)，调用方应限制步数。
func (e *Engine) PriceTree(m MarketParams) (Result, *Tree, *Tree, error) {
	start := time.Now()
	c, err := Derive(m)
	if err != nil {
		e.fail(err)
		return Result{}, nil, nil, err
	}
	tree := BuildTree(m.Spot, c.Up, c.Down, m.Steps)
	grid := InductTree(tree, m.Kind, m.Strike, c)
	if err := checkFinite(grid.At(0, 0)); err != nil {
		e.fail(err)
		return Result{}, nil, nil, err
	}
	res := Result{Value: grid.At(0, 0), Constants: c, Params: m, Elapsed: time.Since(start)}
	if e.cfg.Recorder != nil {
		e.cfg.Recorder.Observe(m.Kind, m.Steps, res.Elapsed)
	}
	return res, tree, grid, nil
}

func checkFinite(v float64) error {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return &NumericalError{Stage: "value", Value: v}
	}
	return nil
}

func (e *Engine) fail(err error) {
	if e.cfg.Recorder != nil {
		e.cfg.Recorder.Fail(Reason(err))
	}
}

var defaultEngine = &Engine{cfg: EngineConfig{ParallelMinSteps: DefaultParallelMinSteps}}

// Price 纯函数入口：price(kind, σ, r, K, S0, div, T, n)。
func Price(kind payoff.Kind, sigma, r, strike, spot, div, maturity float64, steps int) (float64, error) {
	res, err := defaultEngine.Price(context.Background(), MarketParams{
		Kind:       kind,
		Volatility: sigma,
		Rate:       r,
		Strike:     strike,
		Spot:       spot,
		Dividend:   div,
		Maturity:   maturity,
		Steps:      steps,
	})
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}
