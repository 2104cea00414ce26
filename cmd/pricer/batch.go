package main

import (
	"context"
	"fmt"
	"io"

	"option-lattice-go/config"
	"option-lattice-go/infrastructure/alert"
	"option-lattice-go/infrastructure/logger"
	"option-lattice-go/lattice"
	"option-lattice-go/metrics"
	"option-lattice-go/reference"
	"option-lattice-go/report"
)

// batch 依次定价配置中的场景。单个场景失败不会中断其余场景，结果行中记录错误。
type batch struct {
	cfg         config.AppConfig
	engine      *lattice.Engine
	logger      *logger.Logger
	alerts      *alert.Manager // 可选，收敛误差超限时告警
	format      report.Format
	convergence bool
	only        string
}

func (b batch) run(ctx context.Context, out io.Writer) error {
	names := b.cfg.ScenarioNames()
	if b.only != "" {
		if _, ok := b.cfg.Scenarios[b.only]; !ok {
			return fmt.Errorf("scenario %s not found in config", b.only)
		}
		names = []string{b.only}
	}
	if len(names) == 0 {
		return fmt.Errorf("no scenarios configured")
	}

	builder := report.Builder{Decimals: b.cfg.Report.Decimals}
	rows := make([]report.ScenarioRow, 0, len(names))
	var conv []report.ConvergenceRow
	failed := 0
	for _, name := range names {
		params := b.cfg.Scenarios[name]
		res, err := b.engine.Price(ctx, params)
		if err != nil {
			failed++
			b.logger.LogError(err, map[string]interface{}{"scenario": name, "reason": lattice.Reason(err)})
			rows = append(rows, builder.Failed(name, params, err))
			continue
		}
		b.logger.LogPricing(name, map[string]interface{}{
			"kind":  params.Kind.String(),
			"steps": params.Steps,
			"value": res.Value,
		})

		// K=0 等闭式无法处理的输入只输出二叉树价格
		g, refErr := reference.BlackScholes(params.Kind, params.Volatility, params.Rate, params.Strike,
			params.Spot, params.Dividend, params.Maturity)
		if refErr != nil {
			rows = append(rows, builder.Scenario(name, res, nil))
			continue
		}
		rows = append(rows, builder.Scenario(name, res, &g))

		if b.convergence {
			pts, err := reference.Convergence(ctx, b.engine, params, b.cfg.Reference.ConvergenceSteps)
			if err != nil {
				return fmt.Errorf("convergence %s: %w", name, err)
			}
			for _, p := range pts {
				b.logger.LogConvergence(name, map[string]interface{}{
					"steps":    p.Steps,
					"lattice":  p.Lattice,
					"analytic": p.Analytic,
					"absError": p.AbsError,
				})
			}
			last := pts[len(pts)-1]
			metrics.UpdateConvergence(name, last.AbsError)
			if b.alerts != nil {
				if _, err := b.alerts.CheckConvergence(name, last.Steps, last.AbsError, b.cfg.Reference.Tolerance); err != nil {
					b.logger.LogError(err, map[string]interface{}{"scenario": name, "action": "alert"})
				}
			}
			conv = append(conv, builder.Convergence(name, pts)...)
		}
	}

	if err := report.WriteScenarios(out, b.format, rows); err != nil {
		return err
	}
	if len(conv) > 0 {
		if b.format == report.FormatTable {
			fmt.Fprintln(out)
		}
		if err := report.WriteConvergence(out, b.format, conv); err != nil {
			return err
		}
	}
	if failed == len(names) {
		return fmt.Errorf("all %d scenarios failed", failed)
	}
	return nil
}
