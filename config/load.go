package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"option-lattice-go/calendar"
	"option-lattice-go/infrastructure/logger"
	"option-lattice-go/lattice"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string                          `yaml:"env"`
	Logger    logger.Config                   `yaml:"logger"`
	Metrics   MetricsConfig                   `yaml:"metrics"`
	Server    ServerConfig                    `yaml:"server"`
	Lattice   LatticeConfig                   `yaml:"lattice"`
	Reference ReferenceConfig                 `yaml:"reference"`
	Report    ReportConfig                    `yaml:"report"`
	Alert     AlertConfig                     `yaml:"alert"`
	Scenarios map[string]lattice.MarketParams `yaml:"scenarios"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 留空则关闭
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMs  int    `yaml:"readTimeoutMs"`
	WriteTimeoutMs int    `yaml:"writeTimeoutMs"`
}

// LatticeConfig 引擎参数。
type LatticeConfig struct {
	Workers          int `yaml:"workers"`          // 列内并行度，0/1 为串行
	ParallelMinSteps int `yaml:"parallelMinSteps"` // 步数达到该值才并行
	MaxSteps         int `yaml:"maxSteps"`         // 单次请求允许的最大步数（HTTP 接口防护）
	MaxGridSteps     int `yaml:"maxGridSteps"`     // 返回完整网格时的最大步数，内存 O(n^2)
}

// ReferenceConfig 闭式参照的日历与收敛检查步数。
type ReferenceConfig struct {
	Calendar         string  `yaml:"calendar"`
	AsOf             string  `yaml:"asOf"` // 2006-01-02，留空取当天
	ConvergenceSteps []int   `yaml:"convergenceSteps"`
	Tolerance        float64 `yaml:"tolerance"` // 最大步数下允许的绝对误差，0 关闭告警
}

type AlertConfig struct {
	ThrottleSeconds int `yaml:"throttleSeconds"` // 同一告警的最小发送间隔
}

type ReportConfig struct {
	Decimals int32  `yaml:"decimals"`
	Format   string `yaml:"format"` // table, csv, json
}

const (
	DefaultMaxSteps     = 20000
	DefaultMaxGridSteps = 200
	DefaultDecimals     = 4
	DefaultThrottle     = 300
	asOfLayout          = "2006-01-02"
)

// Load reads YAML config from path, fills defaults and validates it.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides runtime fields from LATTICE_* env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("LATTICE_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LATTICE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("LATTICE_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LATTICE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("LATTICE_WORKERS: %w", err)
		}
		cfg.Lattice.Workers = n
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Logger.Level == "" {
		cfg.Logger = logger.DefaultConfig()
	}
	if cfg.Lattice.ParallelMinSteps == 0 {
		cfg.Lattice.ParallelMinSteps = lattice.DefaultParallelMinSteps
	}
	if cfg.Lattice.MaxSteps == 0 {
		cfg.Lattice.MaxSteps = DefaultMaxSteps
	}
	if cfg.Lattice.MaxGridSteps == 0 {
		cfg.Lattice.MaxGridSteps = min(DefaultMaxGridSteps, cfg.Lattice.MaxSteps)
	}
	if cfg.Reference.Calendar == "" {
		cfg.Reference.Calendar = string(calendar.Null)
	}
	if cfg.Report.Decimals == 0 {
		cfg.Report.Decimals = DefaultDecimals
	}
	if cfg.Report.Format == "" {
		cfg.Report.Format = "table"
	}
	if cfg.Alert.ThrottleSeconds == 0 {
		cfg.Alert.ThrottleSeconds = DefaultThrottle
	}
}

// Validate ensures required fields are present and every scenario can be priced.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Lattice.Workers < 0 {
		return errors.New("lattice.workers must be >= 0")
	}
	if cfg.Lattice.ParallelMinSteps < 0 {
		return errors.New("lattice.parallelMinSteps must be >= 0")
	}
	if cfg.Lattice.MaxSteps < 1 {
		return errors.New("lattice.maxSteps must be >= 1")
	}
	if cfg.Lattice.MaxGridSteps < 1 || cfg.Lattice.MaxGridSteps > cfg.Lattice.MaxSteps {
		return errors.New("lattice.maxGridSteps must be in [1, maxSteps]")
	}
	if _, err := calendar.Parse(cfg.Reference.Calendar); err != nil {
		return fmt.Errorf("reference.calendar: %w", err)
	}
	if _, err := cfg.Reference.AsOfDate(); err != nil {
		return err
	}
	for i, n := range cfg.Reference.ConvergenceSteps {
		if n < 1 {
			return fmt.Errorf("reference.convergenceSteps[%d] must be >= 1", i)
		}
	}
	if cfg.Reference.Tolerance < 0 {
		return errors.New("reference.tolerance must be >= 0")
	}
	if cfg.Alert.ThrottleSeconds < 0 {
		return errors.New("alert.throttleSeconds must be >= 0")
	}
	if cfg.Report.Decimals < 0 || cfg.Report.Decimals > 12 {
		return errors.New("report.decimals must be in [0,12]")
	}
	switch cfg.Report.Format {
	case "table", "csv", "json":
	default:
		return fmt.Errorf("report.format %q must be table, csv or json", cfg.Report.Format)
	}
	for name, sc := range cfg.Scenarios {
		if _, err := lattice.Derive(sc); err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
		if sc.Steps > cfg.Lattice.MaxSteps {
			return fmt.Errorf("scenario %s steps %d exceed lattice.maxSteps %d", name, sc.Steps, cfg.Lattice.MaxSteps)
		}
	}
	return nil
}

// AsOfDate 解析估值日，留空取 UTC 当天。
func (r ReferenceConfig) AsOfDate() (time.Time, error) {
	if r.AsOf == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(asOfLayout, r.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("reference.asOf: %w", err)
	}
	return t, nil
}

// ScenarioNames 按名称排序，保证输出稳定。
func (c AppConfig) ScenarioNames() []string {
	names := make([]string, 0, len(c.Scenarios))
	for k := range c.Scenarios {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
