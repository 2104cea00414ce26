package lattice

import (
	"context"

	"golang.org/x/sync/errgroup"

	"option-lattice-go/payoff"
)

// minChunk 并行回推时每个任务至少处理的节点数，过小的分片调度开销大于计算量。
const minChunk = 256

// combine 单个节点的一步折现期望。权重为 0 的后继不参与计算，
// 否则 0*Inf 会把有限的价值变成 NaN。
func combine(dp, dq, up, down float64) float64 {
	switch {
	case dp == 0:
		return dq * down
	case dq == 0:
		return dp * up
	default:
		return dp*up + dq*down
	}
}

// TerminalValues 到期列的期权价值（内在价值）。
func TerminalValues(kind payoff.Kind, prices []float64, strike float64) []float64 {
	out := make([]float64, len(prices))
	for i, s := range prices {
		out[i] = payoff.Intrinsic(kind, s, strike)
	}
	return out
}

// Induct 在单列上原地回推到 t=0，返回 value(0,0)。
// 上涨后继为同一 i，下跌后继为 i+1；写 values[i] 时 values[i+1] 尚未被本列覆盖。
func Induct(values []float64, c Constants) float64 {
	if len(values) == 0 {
		return 0
	}
	dp, dq := c.Disc*c.P, c.Disc*c.Q
	for j := len(values) - 2; j >= 0; j-- {
		for i := 0; i <= j; i++ {
			values[i] = combine(dp, dq, values[i], values[i+1])
		}
	}
	return values[0]
}

// InductParallel 列内并行、列间全屏障的回推。使用两列交替缓冲，
// 避免分片边界上读写同一元素；结果与 Induct 逐位一致。
func InductParallel(ctx context.Context, values []float64, c Constants, workers int) (float64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	if workers < 2 {
		return Induct(values, c), nil
	}
	dp, dq := c.Disc*c.P, c.Disc*c.Q
	next := values
	cur := make([]float64, len(values))
	for j := len(values) - 2; j >= 0; j-- {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		width := j + 1
		if width < 2*minChunk {
			for i := 0; i < width; i++ {
				cur[i] = combine(dp, dq, next[i], next[i+1])
			}
		} else {
			chunk := (width + workers - 1) / workers
			if chunk < minChunk {
				chunk = minChunk
			}
			var g errgroup.Group
			g.SetLimit(workers)
			for lo := 0; lo < width; lo += chunk {
				lo, hi := lo, min(lo+chunk, width)
				src, dst := next, cur
				g.Go(func() error {
					for i := lo; i < hi; i++ {
						dst[i] = combine(dp, dq, src[i], src[i+1])
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return 0, err
			}
		}
		cur, next = next, cur
	}
	return next[0], nil
}

// InductTree 稠密 O(n^2) 版本，保留整张价值网格，供诊断输出。
// 返回的价值网格与价格树同形，可用 At/Column 读取。
func InductTree(tree *Tree, kind payoff.Kind, strike float64, c Constants) *Tree {
	n := tree.Steps()
	grid := newTree(n)
	base := nodeIndex(0, n)
	for i := 0; i <= n; i++ {
		grid.nodes[base+i] = payoff.Intrinsic(kind, tree.nodes[base+i], strike)
	}
	dp, dq := c.Disc*c.P, c.Disc*c.Q
	for j := n - 1; j >= 0; j-- {
		row, succ := nodeIndex(0, j), nodeIndex(0, j+1)
		for i := 0; i <= j; i++ {
			grid.nodes[row+i] = combine(dp, dq, grid.nodes[succ+i], grid.nodes[succ+i+1])
		}
	}
	return grid
}
