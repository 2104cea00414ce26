// Package metrics provides Prometheus metrics for the lattice pricer
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"option-lattice-go/payoff"
)

var (
	// PricingsTotal 成功定价次数（按期权类型）
	PricingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_pricings_total",
		Help: "Total number of successful lattice pricings",
	}, []string{"kind"})

	// PricingErrors 定价失败次数（按原因）
	PricingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_pricing_errors_total",
		Help: "Total number of rejected pricing requests",
	}, []string{"reason"})

	PricingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lattice_pricing_seconds",
		Help:    "Lattice pricing latency in seconds",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})

	LatticeSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lattice_steps",
		Help:    "Step count of priced lattices",
		Buckets: prometheus.ExponentialBuckets(1, 4, 9),
	})

	// ConvergenceAbsError 最近一次收敛检查中最大步数下与闭式价格的绝对误差
	ConvergenceAbsError = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lattice_convergence_abs_error",
		Help: "Absolute lattice-vs-analytic price error at the largest step count",
	}, []string{"scenario"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lattice_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	}, []string{"method", "route"})

	// ConfigReloads 配置热更新次数（按结果）
	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_config_reloads_total",
		Help: "Config reload attempts by result",
	}, []string{"result"})
)

// PricingRecorder 实现 lattice.Recorder，将引擎观测写入 Prometheus。
type PricingRecorder struct{}

func (PricingRecorder) Observe(kind payoff.Kind, steps int, elapsed time.Duration) {
	PricingsTotal.WithLabelValues(kind.String()).Inc()
	PricingLatency.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	LatticeSteps.Observe(float64(steps))
}

func (PricingRecorder) Fail(reason string) {
	PricingErrors.WithLabelValues(reason).Inc()
}

// UpdateConvergence 更新收敛误差
func UpdateConvergence(scenario string, absErr float64) {
	ConvergenceAbsError.WithLabelValues(scenario).Set(absErr)
}

// UnmatchedRoute 未匹配任何路由（404/405）的请求共用的 route 标签。
const UnmatchedRoute = "unmatched"

// Middleware 记录 HTTP 请求数与耗时。route 标签取 chi 路由模板，
// 未匹配的请求统一记为 UnmatchedRoute，标签取值有界。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := UnmatchedRoute
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler 返回 /metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}
