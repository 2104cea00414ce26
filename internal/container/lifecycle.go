package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"option-lattice-go/config"
	"option-lattice-go/infrastructure/alert"
	"option-lattice-go/infrastructure/logger"
	"option-lattice-go/metrics"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Lifecycle, 0),
	}
}

// Register 注册组件
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// StartAll 按顺序启动所有组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			// 启动失败，回滚已启动的组件
			for j := i - 1; j >= 0; j-- {
				_ = m.components[j].Stop()
			}
			return fmt.Errorf("start component %d failed: %w", i, err)
		}
	}
	return nil
}

// StopAll 逆序停止所有组件，返回合并后的错误
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("component %d unhealthy: %w", i, err)
		}
	}
	return nil
}

// httpServerComponent HTTP服务器组件。Start 同步监听端口，端口占用时直接返回错误。
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", h.name, h.addr, err)
	}
	srv := &http.Server{
		Handler:      h.handler,
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	h.server = srv
	h.listener = ln

	go func() {
		h.logger.Logger.Info(fmt.Sprintf("%s listening on %s", h.name, ln.Addr()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.LogError(err, map[string]interface{}{
				"component": h.name,
				"action":    "serve",
			})
		}
	}()
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", h.name, err)
	}

	h.logger.Logger.Info(fmt.Sprintf("%s stopped", h.name))
	h.server = nil
	h.listener = nil
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server == nil {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}

// Addr 实际监听地址（addr 为 :0 时用于测试）。
func (h *httpServerComponent) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// watcherComponent 在后台运行配置热更新。
type watcherComponent struct {
	watcher  config.Watcher
	onUpdate func(config.AppConfig)
	logger   *logger.Logger
	alerts   *alert.Manager // 可选

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (w *watcherComponent) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}

	wctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	watcher := w.watcher
	watcher.OnError = func(err error) {
		metrics.ConfigReloads.WithLabelValues("error").Inc()
		w.logger.LogError(err, map[string]interface{}{"component": "config_watcher", "path": watcher.Path})
		if w.alerts != nil {
			_ = w.alerts.Error("config_reload", "config reload rejected, keeping previous config",
				map[string]interface{}{"path": watcher.Path, "error": err.Error()})
		}
	}
	go func() {
		defer close(w.done)
		err := watcher.Start(wctx, func(cfg config.AppConfig) {
			metrics.ConfigReloads.WithLabelValues("ok").Inc()
			w.logger.LogConfig("reloaded", map[string]interface{}{"path": watcher.Path, "scenarios": len(cfg.Scenarios)})
			if w.onUpdate != nil {
				w.onUpdate(cfg)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.LogError(err, map[string]interface{}{"component": "config_watcher", "action": "start"})
		}
	}()
	return nil
}

func (w *watcherComponent) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	return nil
}

func (w *watcherComponent) Health() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return errors.New("config watcher not started")
	}
	select {
	case <-w.done:
		return errors.New("config watcher exited")
	default:
		return nil
	}
}
