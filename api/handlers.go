package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"option-lattice-go/calendar"
	"option-lattice-go/lattice"
	"option-lattice-go/payoff"
	"option-lattice-go/reference"
	"option-lattice-go/report"
)

// PriceResponse /v1/price 响应
type PriceResponse struct {
	Value     decimal.Decimal      `json:"value"`
	Raw       float64              `json:"raw"`
	Constants lattice.Constants    `json:"constants"`
	Params    lattice.MarketParams `json:"params"`
	ElapsedNs int64                `json:"elapsedNs"`
	Grid      *GridResponse        `json:"grid,omitempty"`
}

// GridResponse grid=1 时返回的完整网格，按列（时间步 j）排列，第 j 列有 j+1 个节点，
// 下标 i 为下跌次数。
type GridResponse struct {
	Prices [][]float64 `json:"prices"`
	Values [][]float64 `json:"values"`
}

// ReferenceResponse /v1/reference 响应
type ReferenceResponse struct {
	reference.Greeks
	ThetaPerDay float64 `json:"thetaPerDay"`
	Calendar    string  `json:"calendar,omitempty"`
}

// PayoffRequest /v1/payoff 请求。Low/High 为相对现价的倍数，缺省 0.5/1.5。
type PayoffRequest struct {
	Legs   []payoff.Leg `json:"legs"`
	Spot   float64      `json:"spot"`
	Low    float64      `json:"low"`
	High   float64      `json:"high"`
	Points int          `json:"points"`
}

// PayoffResponse /v1/payoff 响应
type PayoffResponse struct {
	Points     []payoff.Point `json:"points"`
	Breakevens []float64      `json:"breakevens"`
}

// requestError 请求参数错误，统一映射为 400。
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...interface{}) error {
	return &requestError{err: fmt.Errorf(format, args...)}
}

func (s *Server) handlePriceQuery(w http.ResponseWriter, r *http.Request) {
	params, err := marketFromQuery(r, true)
	if err != nil {
		writeError(w, err)
		return
	}
	s.price(w, r, "adhoc", params)
}

func (s *Server) handlePriceBody(w http.ResponseWriter, r *http.Request) {
	var params lattice.MarketParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, &requestError{err: fmt.Errorf("decode body: %w", err)})
		return
	}
	s.price(w, r, "adhoc", params)
}

func (s *Server) price(w http.ResponseWriter, r *http.Request, scenario string, params lattice.MarketParams) {
	if params.Steps > s.opts.MaxSteps {
		writeError(w, badRequest("steps %d exceed limit %d", params.Steps, s.opts.MaxSteps))
		return
	}
	wantGrid, err := parseBool(r.URL.Query().Get("grid"))
	if err != nil {
		writeError(w, badRequest("grid: %v", err))
		return
	}
	if wantGrid && params.Steps > s.opts.MaxGridSteps {
		writeError(w, badRequest("steps %d exceed grid limit %d", params.Steps, s.opts.MaxGridSteps))
		return
	}

	var (
		res  lattice.Result
		grid *GridResponse
	)
	if wantGrid {
		var prices, values *lattice.Tree
		res, prices, values, err = s.opts.Engine.PriceTree(params)
		if err == nil {
			grid = newGridResponse(prices, values)
		}
	} else {
		res, err = s.opts.Engine.Price(r.Context(), params)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.opts.Logger.LogPricing(scenario, map[string]interface{}{
		"kind":  params.Kind.String(),
		"steps": params.Steps,
		"value": res.Value,
		"grid":  wantGrid,
	})
	writeJSON(w, http.StatusOK, PriceResponse{
		Value:     decimal.NewFromFloat(res.Value).Round(s.opts.Decimals),
		Raw:       res.Value,
		Constants: res.Constants,
		Params:    res.Params,
		ElapsedNs: res.Elapsed.Nanoseconds(),
		Grid:      grid,
	})
}

func newGridResponse(prices, values *lattice.Tree) *GridResponse {
	n := prices.Steps()
	g := &GridResponse{Prices: make([][]float64, n+1), Values: make([][]float64, n+1)}
	for j := 0; j <= n; j++ {
		g.Prices[j] = prices.Column(j)
		g.Values[j] = values.Column(j)
	}
	return g
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// handleReference 若给出 days 则按日历计算期限，否则直接使用 maturity。
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	params, err := marketFromQuery(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	var (
		g       reference.Greeks
		calName string
	)
	if days := q.Get("days"); days != "" {
		n, convErr := strconv.Atoi(days)
		if convErr != nil {
			writeError(w, badRequest("days: %v", convErr))
			return
		}
		calName = q.Get("calendar")
		if calName == "" {
			calName = s.opts.Calendar
		}
		g, err = reference.Analytic(params.Kind, s.opts.AsOf(), params.Volatility, params.Rate,
			params.Strike, params.Spot, params.Dividend, n, calName)
	} else {
		g, err = reference.BlackScholes(params.Kind, params.Volatility, params.Rate,
			params.Strike, params.Spot, params.Dividend, params.Maturity)
	}
	if err != nil {
		// 闭式定价的失败全部来自输入
		writeError(w, &requestError{err: err})
		return
	}
	writeJSON(w, http.StatusOK, ReferenceResponse{Greeks: g, ThetaPerDay: g.ThetaPerDay(), Calendar: calName})
}

func (s *Server) handleConvergence(w http.ResponseWriter, r *http.Request) {
	params, err := marketFromQuery(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	steps := s.opts.ConvergenceSteps
	if raw := r.URL.Query().Get("steps"); raw != "" {
		if steps, err = parseSteps(raw); err != nil {
			writeError(w, err)
			return
		}
	}
	if len(steps) > maxConvergencePoints {
		writeError(w, badRequest("at most %d step counts per request, got %d", maxConvergencePoints, len(steps)))
		return
	}
	// 回推的总工作量按 Σn² 计，不超过单次 MaxSteps 定价的量
	budget := int64(s.opts.MaxSteps) * int64(s.opts.MaxSteps)
	var work int64
	for _, n := range steps {
		if n > s.opts.MaxSteps {
			writeError(w, badRequest("steps %d exceed limit %d", n, s.opts.MaxSteps))
			return
		}
		work += int64(n) * int64(n)
	}
	if work > budget {
		writeError(w, badRequest("total lattice work of steps %v exceeds the limit of one %d-step pricing", steps, s.opts.MaxSteps))
		return
	}
	pts, err := reference.Convergence(r.Context(), s.opts.Engine, params, steps)
	if err != nil {
		if !errors.Is(err, lattice.ErrConfiguration) && !errors.Is(err, lattice.ErrArbitrage) &&
			!errors.Is(err, lattice.ErrNumerical) && !isContextErr(err) {
			err = &requestError{err: err}
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Builder{Decimals: s.opts.Decimals}.Convergence("adhoc", pts))
}

func (s *Server) handlePayoff(w http.ResponseWriter, r *http.Request) {
	var req PayoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &requestError{err: fmt.Errorf("decode body: %w", err)})
		return
	}
	if req.Low == 0 {
		req.Low = payoff.DefaultGridLow
	}
	if req.High == 0 {
		req.High = payoff.DefaultGridHigh
	}
	if req.Points == 0 {
		req.Points = payoff.DefaultGridPoints
	}
	grid, err := payoff.Grid(req.Spot, req.Low, req.High, req.Points)
	if err != nil {
		writeError(w, &requestError{err: err})
		return
	}
	points, err := payoff.Diagram(req.Legs, grid)
	if err != nil {
		writeError(w, &requestError{err: err})
		return
	}
	writeJSON(w, http.StatusOK, PayoffResponse{Points: points, Breakevens: payoff.Breakevens(points)})
}

func (s *Server) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.scenarios))
	for k := range s.scenarios {
		names = append(names, k)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"scenarios": names})
}

// handleScenario 按名称定价，并附上闭式参照价格。
func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, ok := s.scenario(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "scenario not found: " + name})
		return
	}
	res, err := s.opts.Engine.Price(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	b := report.Builder{Decimals: s.opts.Decimals}
	var row report.ScenarioRow
	if g, err := reference.BlackScholes(params.Kind, params.Volatility, params.Rate, params.Strike,
		params.Spot, params.Dividend, params.Maturity); err == nil {
		row = b.Scenario(name, res, &g)
	} else {
		// K=0 等闭式无法处理的输入只返回二叉树价格
		row = b.Scenario(name, res, nil)
	}
	s.opts.Logger.LogPricing(name, map[string]interface{}{
		"kind":  params.Kind.String(),
		"steps": params.Steps,
		"value": res.Value,
	})
	writeJSON(w, http.StatusOK, row)
}

// marketFromQuery 解析查询参数。sigma 与 volatility 等价，div 与 dividend 等价。
func marketFromQuery(r *http.Request, needSteps bool) (lattice.MarketParams, error) {
	q := r.URL.Query()
	var (
		m   lattice.MarketParams
		err error
	)
	if m.Kind, err = payoff.ParseKind(q.Get("kind")); err != nil {
		return m, &requestError{err: err}
	}
	fields := []struct {
		names []string
		dst   *float64
		req   bool
	}{
		{[]string{"sigma", "volatility"}, &m.Volatility, true},
		{[]string{"rate", "r"}, &m.Rate, true},
		{[]string{"strike", "k"}, &m.Strike, true},
		{[]string{"spot", "s"}, &m.Spot, true},
		{[]string{"dividend", "div"}, &m.Dividend, false},
		{[]string{"maturity", "t"}, &m.Maturity, false},
	}
	for _, f := range fields {
		raw := ""
		for _, n := range f.names {
			if v := q.Get(n); v != "" {
				raw = v
				break
			}
		}
		if raw == "" {
			if f.req {
				return m, badRequest("missing query parameter %s", f.names[0])
			}
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return m, badRequest("%s: %v", f.names[0], err)
		}
		*f.dst = v
	}
	if needSteps {
		raw := q.Get("steps")
		if raw == "" {
			return m, badRequest("missing query parameter steps")
		}
		if m.Steps, err = strconv.Atoi(raw); err != nil {
			return m, badRequest("steps: %v", err)
		}
	}
	return m, nil
}

func parseSteps(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, badRequest("steps: %v", err)
		}
		if n < 1 {
			return nil, badRequest("steps must be >= 1, got %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func statusFor(err error) int {
	var re *requestError
	switch {
	case errors.As(err, &re),
		errors.Is(err, lattice.ErrConfiguration),
		errors.Is(err, payoff.ErrInvalidKind),
		errors.Is(err, calendar.ErrUnknownCalendar):
		return http.StatusBadRequest
	case errors.Is(err, lattice.ErrArbitrage), errors.Is(err, lattice.ErrNumerical):
		return http.StatusUnprocessableEntity
	case isContextErr(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	reason := lattice.Reason(err)
	if reason == "other" {
		reason = ""
	}
	writeJSON(w, statusFor(err), errorBody{Error: err.Error(), Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
