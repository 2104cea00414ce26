package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"option-lattice-go/api"
	"option-lattice-go/config"
	"option-lattice-go/infrastructure/alert"
	"option-lattice-go/infrastructure/logger"
	"option-lattice-go/lattice"
	"option-lattice-go/metrics"
)

// Options 控制 Build 注册哪些长期运行的组件。
type Options struct {
	Serve bool // 启动 HTTP 定价接口
	Watch bool // 监听配置文件热更新
}

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	configPath string
	cfg        config.AppConfig
	opts       Options

	logger *logger.Logger
	alerts *alert.Manager
	engine *lattice.Engine
	api    *api.Server

	apiServer     *httpServerComponent
	metricsServer *httpServerComponent

	lifecycle *LifecycleManager
}

// New 创建新的Container实例
func New(configPath string, opts Options) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(configPath, cfg, opts), nil
}

// NewWithConfig 使用已加载的配置创建容器（测试与 CLI 复用）。
func NewWithConfig(configPath string, cfg config.AppConfig, opts Options) *Container {
	return &Container{
		configPath: configPath,
		cfg:        cfg,
		opts:       opts,
		lifecycle:  NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}
	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Logger)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}
	c.logger = c.logger.WithFields(map[string]interface{}{"env": c.cfg.Env})
	c.alerts = alert.NewManager(
		[]alert.Channel{alert.NewLoggerChannel("log", c.logger)},
		time.Duration(c.cfg.Alert.ThrottleSeconds)*time.Second,
	)
	return nil
}

func (c *Container) buildCoreServices() error {
	var err error
	c.engine, err = lattice.NewEngine(lattice.EngineConfig{
		Workers:          c.cfg.Lattice.Workers,
		ParallelMinSteps: c.cfg.Lattice.ParallelMinSteps,
		Recorder:         metrics.PricingRecorder{},
	})
	if err != nil {
		return fmt.Errorf("create engine failed: %w", err)
	}

	if !c.opts.Serve {
		return nil
	}
	asOf, err := c.cfg.Reference.AsOfDate()
	if err != nil {
		return err
	}
	asOfFn := func() time.Time { return asOf }
	if c.cfg.Reference.AsOf == "" {
		asOfFn = nil
	}
	c.api, err = api.NewServer(api.Options{
		Engine:           c.engine,
		Logger:           c.logger,
		MaxSteps:         c.cfg.Lattice.MaxSteps,
		MaxGridSteps:     c.cfg.Lattice.MaxGridSteps,
		Calendar:         c.cfg.Reference.Calendar,
		AsOf:             asOfFn,
		ConvergenceSteps: c.cfg.Reference.ConvergenceSteps,
		Decimals:         c.cfg.Report.Decimals,
		Timeout:          time.Duration(c.cfg.Server.WriteTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("create api server failed: %w", err)
	}
	c.api.SetScenarios(c.cfg.Scenarios)
	return nil
}

func (c *Container) registerLifecycleComponents() {
	if c.opts.Serve && c.api != nil {
		c.apiServer = &httpServerComponent{
			name:         "api_server",
			handler:      c.api.Routes(),
			addr:         c.cfg.Server.Addr,
			logger:       c.logger,
			readTimeout:  time.Duration(c.cfg.Server.ReadTimeoutMs) * time.Millisecond,
			writeTimeout: time.Duration(c.cfg.Server.WriteTimeoutMs) * time.Millisecond,
		}
		c.lifecycle.Register(c.apiServer)
	}
	// API 已在 /metrics 暴露指标；未开启 API 时单独起指标端口
	if c.cfg.Metrics.Addr != "" && (!c.opts.Serve || c.cfg.Metrics.Addr != c.cfg.Server.Addr) {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		c.metricsServer = &httpServerComponent{
			name:    "metrics_server",
			handler: mux,
			addr:    c.cfg.Metrics.Addr,
			logger:  c.logger,
		}
		c.lifecycle.Register(c.metricsServer)
	}
	if c.opts.Watch && c.configPath != "" {
		c.lifecycle.Register(&watcherComponent{
			watcher:  config.Watcher{Path: c.configPath},
			onUpdate: c.applyConfig,
			logger:   c.logger,
			alerts:   c.alerts,
		})
	}
}

// applyConfig 热更新只替换场景表；引擎与监听地址需要重启生效。
func (c *Container) applyConfig(cfg config.AppConfig) {
	if c.api != nil {
		c.api.SetScenarios(cfg.Scenarios)
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	c.logger.LogConfig("started", map[string]interface{}{"path": c.configPath, "scenarios": len(c.cfg.Scenarios)})
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")
	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	_ = c.logger.Close()
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// Config 返回启动时加载的配置
func (c *Container) Config() config.AppConfig { return c.cfg }

// Engine 返回定价引擎（Build 之后可用）
func (c *Container) Engine() *lattice.Engine { return c.engine }

// Alerts 返回告警管理器（Build 之后可用）
func (c *Container) Alerts() *alert.Manager { return c.alerts }

// Logger 返回日志器（Build 之后可用）
func (c *Container) Logger() *logger.Logger { return c.logger }

// APIAddr 返回 API 实际监听地址，未启动时为空
func (c *Container) APIAddr() string {
	if c.apiServer == nil {
		return ""
	}
	return c.apiServer.Addr()
}
