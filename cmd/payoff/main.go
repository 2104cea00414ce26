// Command payoff 输出期权组合到期损益曲线（CSV），盈亏平衡点打印到 stderr。
//
//	go run ./cmd/payoff -kind call -strike 100 -premium 5
//	go run ./cmd/payoff -legs legs.yaml -spot 100 > straddle.csv
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	kind := flag.String("kind", "call", "单腿期权类型 call/put")
	strike := flag.Float64("strike", 100, "单腿行权价")
	premium := flag.Float64("premium", 0, "单腿权利金")
	position := flag.Int("position", 1, "+1 多头，-1 空头")
	legsFile := flag.String("legs", "", "YAML 组合文件，给出时忽略单腿参数")
	spot := flag.Float64("spot", 0, "价格网格中心，留空取第一条腿的行权价")
	low := flag.Float64("low", 0.5, "网格下限（相对 spot 的倍数）")
	high := flag.Float64("high", 1.5, "网格上限（相对 spot 的倍数）")
	points := flag.Int("points", 400, "网格点数")
	flag.Parse()

	job := diagramJob{
		single:   singleLeg{kind: *kind, strike: *strike, premium: *premium, position: *position},
		legsFile: *legsFile,
		spot:     *spot,
		low:      *low,
		high:     *high,
		points:   *points,
	}
	breakevens, err := job.run(os.Stdout)
	if err != nil {
		log.Fatalf("生成损益图失败: %v", err)
	}
	for _, b := range breakevens {
		fmt.Fprintf(os.Stderr, "breakeven: %.4f\n", b)
	}
}
