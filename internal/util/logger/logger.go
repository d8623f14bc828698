// Package logger 提供 p2pchat 的分子系统日志
//
// 基于标准库 log/slog：
//   - 每个子系统一个缓存的 *slog.Logger
//   - 通过 P2PCHAT_LOG_LEVEL / P2PCHAT_LOG_FORMAT 配置
//   - 日志写入 stderr，聊天输出走 stdout，两者互不干扰
//
// 使用示例:
//
//	var log = logger.Logger("core/swarm")
//
//	log.Debug("连接已建立", "peer", p, "addr", addr)
//
// 环境变量:
//
//	# gossipsub 打开 debug，其余 info
//	P2PCHAT_LOG_LEVEL=messaging/gossipsub=debug,info
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 子系统 -> *slog.Logger
	loggers sync.Map

	// handlers 子系统 -> *subsystemHandler，用于运行时调整级别
	handlers sync.Map
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回同一个实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	h := newHandler(subsystem, cfg.LevelForSubsystem(subsystem), cfg)

	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).SetLevel(level)
		return true
	})
}

// Discard 返回丢弃所有日志的 Logger（测试用）
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// With 创建带预设属性的子系统 Logger
func With(subsystem string, args ...any) *slog.Logger {
	return Logger(subsystem).With(args...)
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 同样会切换到新的输出。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}

// ParseLevel 解析级别名称，供命令行参数使用
func ParseLevel(name string) (slog.Level, bool) {
	return parseLevel(name)
}
