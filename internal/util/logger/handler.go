package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	globalOutput   io.Writer = os.Stderr
	globalOutputMu sync.RWMutex
)

// dynamicWriter 每次写入时查找当前的 globalOutput
type dynamicWriter struct{}

func (dynamicWriter) Write(p []byte) (int, error) {
	globalOutputMu.RLock()
	out := globalOutput
	globalOutputMu.RUnlock()
	return out.Write(p)
}

// subsystemHandler 支持动态级别的子系统 Handler
type subsystemHandler struct {
	subsystem string
	inner     slog.Handler

	mu    *sync.RWMutex
	level *slog.Level
}

func newHandler(subsystem string, level slog.Level, cfg *Config) *subsystemHandler {
	opts := &slog.HandlerOptions{
		// 级别过滤由 subsystemHandler.Enabled 负责
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelToString(lvl))
				}
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(dynamicWriter{}, opts)
	} else {
		inner = slog.NewTextHandler(dynamicWriter{}, opts)
	}

	return &subsystemHandler{
		subsystem: subsystem,
		inner:     inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)}),
		mu:        &sync.RWMutex{},
		level:     &level,
	}
}

// Enabled 检查级别
func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return level >= *h.level
}

// Handle 处理日志记录
func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs 派生的 Handler 与父 Handler 共享级别
func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{subsystem: h.subsystem, inner: h.inner.WithAttrs(attrs), mu: h.mu, level: h.level}
}

// WithGroup 派生的 Handler 与父 Handler 共享级别
func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{subsystem: h.subsystem, inner: h.inner.WithGroup(name), mu: h.mu, level: h.level}
}

// SetLevel 动态设置级别
func (h *subsystemHandler) SetLevel(level slog.Level) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.level = level
}

func levelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// DiscardHandler 返回丢弃所有日志的 Handler
func DiscardHandler() slog.Handler {
	return discardHandler{}
}
