// Package alert 把需要人工关注的事件（收敛误差超限、配置热更新失败）分发到告警通道，
// 同一 key 在限流间隔内只发送一次。
package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Level 告警级别
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Alert 告警信息
type Alert struct {
	Level     Level
	Key       string // 限流 key，留空时使用 Level+Message
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager 告警管理器
type Manager struct {
	channels []Channel
	throttle *Throttler
	mu       sync.RWMutex
}

// Throttler 告警限流器
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewThrottler 创建限流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Allow 检查是否允许发送（限流）
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	last, exists := t.lastSent[key]
	if !exists || now.Sub(last) >= t.interval {
		t.lastSent[key] = now
		return true
	}
	return false
}

// Clear 清空所有限流记录
func (t *Throttler) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent = make(map[string]time.Time)
}

// NewManager 创建告警管理器
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// SendAlert 发送告警。被限流时静默返回 nil；全部通道失败时返回合并后的错误。
func (m *Manager) SendAlert(a Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	key := a.Key
	if key == "" {
		key = fmt.Sprintf("%s:%s", a.Level, a.Message)
	}
	if !m.throttle.Allow(key) {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			errs = append(errs, fmt.Errorf("channel %s failed: %w", ch.Name(), err))
		}
	}
	if len(m.channels) > 0 && len(errs) == len(m.channels) {
		return errors.Join(errs...)
	}
	return nil
}

// Warn 发送WARNING级别告警
func (m *Manager) Warn(key, message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: LevelWarning, Key: key, Message: message, Fields: fields})
}

// Error 发送ERROR级别告警
func (m *Manager) Error(key, message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: LevelError, Key: key, Message: message, Fields: fields})
}

// AddChannel 添加告警通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// GetChannels 获取所有通道名
func (m *Manager) GetChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// ResetThrottle 重置限流器
func (m *Manager) ResetThrottle() {
	m.throttle.Clear()
}

// CheckConvergence 绝对误差超过 tolerance 时发送告警，返回是否超限。tolerance<=0 表示关闭。
func (m *Manager) CheckConvergence(scenario string, steps int, absErr, tolerance float64) (bool, error) {
	if tolerance <= 0 || absErr <= tolerance {
		return false, nil
	}
	err := m.Warn("convergence:"+scenario, "lattice price outside tolerance of analytic price", map[string]interface{}{
		"scenario":  scenario,
		"steps":     steps,
		"absError":  absErr,
		"tolerance": tolerance,
	})
	return true, err
}
