package alert

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"option-lattice-go/infrastructure/logger"
)

// LoggerChannel 把告警写入结构化日志，事件名 alert_event。
type LoggerChannel struct {
	name   string
	logger *logger.Logger
}

// NewLoggerChannel 创建日志告警通道
func NewLoggerChannel(name string, l *logger.Logger) *LoggerChannel {
	if l == nil {
		l = logger.NewNop()
	}
	return &LoggerChannel{name: name, logger: l}
}

func (c *LoggerChannel) Send(a Alert) error {
	fields := make([]zap.Field, 0, len(a.Fields)+3)
	fields = append(fields,
		zap.String("alertLevel", string(a.Level)),
		zap.String("message", a.Message),
		zap.Time("alertTs", a.Timestamp),
	)
	for k, v := range a.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	c.logger.Log(zapLevel(a.Level), "alert_event", fields...)
	return nil
}

func (c *LoggerChannel) Name() string { return c.name }

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
