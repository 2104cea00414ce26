// Package report 将定价与收敛结果整理成表格，按固定小数位输出 table/csv/json。
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"option-lattice-go/lattice"
	"option-lattice-go/reference"
)

// Format 输出格式
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat 校验输出格式
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// ScenarioRow 一个场景的定价结果。价格字段为按小数位四舍五入后的十进制数。
// 没有闭式参照时 Analytic/Diff 无效：JSON 为 null，CSV 与表格为空。
type ScenarioRow struct {
	Scenario string              `json:"scenario" csv:"scenario"`
	Kind     string              `json:"kind" csv:"kind"`
	Steps    int                 `json:"steps" csv:"steps"`
	Lattice  decimal.Decimal     `json:"lattice" csv:"lattice"`
	Analytic decimal.NullDecimal `json:"analytic" csv:"analytic"`
	Diff     decimal.NullDecimal `json:"diff" csv:"diff"`
	Up       decimal.Decimal     `json:"up" csv:"up"`
	Down     decimal.Decimal     `json:"down" csv:"down"`
	P        decimal.Decimal     `json:"p" csv:"p"`
	Error    string              `json:"error,omitempty" csv:"error"`
}

// ConvergenceRow 收敛表的一行
type ConvergenceRow struct {
	Scenario string          `json:"scenario" csv:"scenario"`
	Steps    int             `json:"steps" csv:"steps"`
	Lattice  decimal.Decimal `json:"lattice" csv:"lattice"`
	Analytic decimal.Decimal `json:"analytic" csv:"analytic"`
	AbsError decimal.Decimal `json:"absError" csv:"abs_error"`
}

// Builder 按统一小数位构造报表行。
type Builder struct {
	Decimals int32
}

func (b Builder) round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(b.Decimals)
}

// Scenario 由定价结果和（可选）闭式价格构造一行；analytic 为 nil 时差值留空。
func (b Builder) Scenario(name string, res lattice.Result, analytic *reference.Greeks) ScenarioRow {
	row := ScenarioRow{
		Scenario: name,
		Kind:     res.Params.Kind.String(),
		Steps:    res.Params.Steps,
		Lattice:  b.round(res.Value),
		Up:       b.round(res.Constants.Up),
		Down:     b.round(res.Constants.Down),
		P:        b.round(res.Constants.P),
	}
	if analytic != nil {
		row.Analytic = decimal.NewNullDecimal(b.round(analytic.Value))
		row.Diff = decimal.NewNullDecimal(b.round(res.Value - analytic.Value))
	}
	return row
}

// Failed 记录无法定价的场景。
func (b Builder) Failed(name string, params lattice.MarketParams, err error) ScenarioRow {
	return ScenarioRow{
		Scenario: name,
		Kind:     string(params.Kind),
		Steps:    params.Steps,
		Error:    err.Error(),
	}
}

// Convergence 转换收敛点
func (b Builder) Convergence(name string, pts []reference.ConvergencePoint) []ConvergenceRow {
	rows := make([]ConvergenceRow, 0, len(pts))
	for _, p := range pts {
		rows = append(rows, ConvergenceRow{
			Scenario: name,
			Steps:    p.Steps,
			Lattice:  b.round(p.Lattice),
			Analytic: b.round(p.Analytic),
			// 误差按更高精度保留，避免大步数时被舍入为 0
			AbsError: decimal.NewFromFloat(p.AbsError).Round(b.Decimals + 4),
		})
	}
	return rows
}

// WriteScenarios 以指定格式输出场景行
func WriteScenarios(w io.Writer, format Format, rows []ScenarioRow) error {
	switch format {
	case FormatCSV:
		return gocsv.Marshal(rows, w)
	case FormatJSON:
		return writeJSON(w, rows)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCENARIO\tKIND\tSTEPS\tLATTICE\tANALYTIC\tDIFF\tP\tERROR")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				r.Scenario, r.Kind, r.Steps, r.Lattice, nullString(r.Analytic), nullString(r.Diff), r.P, r.Error)
		}
		return tw.Flush()
	}
}

// WriteConvergence 以指定格式输出收敛表
func WriteConvergence(w io.Writer, format Format, rows []ConvergenceRow) error {
	switch format {
	case FormatCSV:
		return gocsv.Marshal(rows, w)
	case FormatJSON:
		return writeJSON(w, rows)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCENARIO\tSTEPS\tLATTICE\tANALYTIC\tABS_ERROR")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", r.Scenario, r.Steps, r.Lattice, r.Analytic, r.AbsError)
		}
		return tw.Flush()
	}
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
