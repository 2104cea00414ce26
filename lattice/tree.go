package lattice

import "math"

// Tree 三角形价格网格，使用一块连续内存存储。
// 节点 (i,j) 表示第 j 步、经历 i 次下跌后的价格，只有 i<=j 有意义，
// 下标映射为 j*(j+1)/2 + i。
type Tree struct {
	steps int
	nodes []float64
}

func nodeIndex(i, j int) int { return j*(j+1)/2 + i }

func newTree(n int) *Tree {
	return &Tree{steps: n, nodes: make([]float64, (n+1)*(n+2)/2)}
}

// Steps 树的步数 n。
func (t *Tree) Steps() int { return t.steps }

// At 返回节点 (i,j) 的价格；越界返回 NaN。
func (t *Tree) At(i, j int) float64 {
	if j < 0 || j > t.steps || i < 0 || i > j {
		return math.NaN()
	}
	return t.nodes[nodeIndex(i, j)]
}

// Column 返回第 j 列（长度 j+1）的拷贝。
func (t *Tree) Column(j int) []float64 {
	if j < 0 || j > t.steps {
		return nil
	}
	start := nodeIndex(0, j)
	out := make([]float64, j+1)
	copy(out, t.nodes[start:start+j+1])
	return out
}

// BuildTree 按闭式 S0*u^(j-i)*d^i 构建整棵树，避免逐步连乘带来的舍入累积。
func BuildTree(spot, u, d float64, n int) *Tree {
	t := newTree(n)
	lu, ld := math.Log(u), math.Log(d)
	for j := 0; j <= n; j++ {
		base := nodeIndex(0, j)
		for i := 0; i <= j; i++ {
			t.nodes[base+i] = nodePrice(spot, lu, ld, i, j)
		}
	}
	return t
}

// BuildTreeRecursive 逐列递推：同层节点乘 u，新增的最底部节点由上一列底部乘 d。
// 仅用于与 BuildTree 交叉校验。
func BuildTreeRecursive(spot, u, d float64, n int) *Tree {
	t := newTree(n)
	t.nodes[0] = spot
	for j := 1; j <= n; j++ {
		prev := nodeIndex(0, j-1)
		cur := nodeIndex(0, j)
		for i := 0; i < j; i++ {
			t.nodes[cur+i] = t.nodes[prev+i] * u
		}
		t.nodes[cur+j] = t.nodes[prev+j-1] * d
	}
	return t
}

// TerminalPrices 只生成到期列 (j=n)，供 O(n) 内存的回推使用。
func TerminalPrices(spot, u, d float64, n int) []float64 {
	out := make([]float64, n+1)
	lu, ld := math.Log(u), math.Log(d)
	for i := range out {
		out[i] = nodePrice(spot, lu, ld, i, n)
	}
	return out
}

// nodePrice 在对数空间里先让 u、d 的幂相互抵消再取指数，
// 中间的 u^(j-i) 即使溢出，只要节点价格本身可表示就不会得到 Inf/NaN。
// 只有次数为正的项参与求和，避免 0*Inf。
func nodePrice(spot, lu, ld float64, i, j int) float64 {
	var e float64
	if up := j - i; up > 0 {
		e += float64(up) * lu
	}
	if i > 0 {
		e += float64(i) * ld
	}
	return spot * math.Exp(e)
}
