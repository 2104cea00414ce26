// Package api 提供定价服务的 HTTP 接口（chi 路由）。
package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"option-lattice-go/infrastructure/logger"
	"option-lattice-go/lattice"
	"option-lattice-go/metrics"
	"option-lattice-go/reference"
)

// Options 服务依赖与限制。
type Options struct {
	Engine           *lattice.Engine
	Logger           *logger.Logger
	MaxSteps         int              // 单次请求允许的最大步数
	MaxGridSteps     int              // grid=1 时允许的最大步数，缺省 min(200, MaxSteps)
	Calendar         string           // /v1/reference 默认日历
	AsOf             func() time.Time // 估值日，nil 取 UTC 当天
	ConvergenceSteps []int
	Decimals         int32
	Timeout          time.Duration // 单请求超时，0 表示不限
}

const (
	defaultMaxGridSteps = 200
	// maxConvergencePoints /v1/convergence 单次请求最多的步数个数
	maxConvergencePoints = 16
)

// Server 持有引擎与当前场景表。场景表可在配置热更新时整体替换。
type Server struct {
	opts Options

	mu        sync.RWMutex
	scenarios map[string]lattice.MarketParams
}

// NewServer 创建 HTTP 服务
func NewServer(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if opts.MaxSteps < 1 {
		return nil, errors.New("maxSteps must be >= 1")
	}
	if opts.MaxGridSteps < 1 {
		opts.MaxGridSteps = min(defaultMaxGridSteps, opts.MaxSteps)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.AsOf == nil {
		opts.AsOf = func() time.Time {
			now := time.Now().UTC()
			return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	if len(opts.ConvergenceSteps) == 0 {
		opts.ConvergenceSteps = reference.DefaultConvergenceSteps
	}
	return &Server{opts: opts, scenarios: map[string]lattice.MarketParams{}}, nil
}

// SetScenarios 替换命名场景（配置热更新时调用）。
func (s *Server) SetScenarios(sc map[string]lattice.MarketParams) {
	cp := make(map[string]lattice.MarketParams, len(sc))
	for k, v := range sc {
		cp[k] = v
	}
	s.mu.Lock()
	s.scenarios = cp
	s.mu.Unlock()
}

func (s *Server) scenario(name string) (lattice.MarketParams, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.scenarios[name]
	return p, ok
}

// Routes 返回完整路由。
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if s.opts.Timeout > 0 {
		r.Use(middleware.Timeout(s.opts.Timeout))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "option-lattice"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/price", s.handlePriceQuery)
		r.Post("/price", s.handlePriceBody)
		r.Get("/reference", s.handleReference)
		r.Get("/convergence", s.handleConvergence)
		r.Post("/payoff", s.handlePayoff)
		r.Get("/scenarios", s.handleListScenarios)
		r.Get("/scenarios/{name}", s.handleScenario)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}
