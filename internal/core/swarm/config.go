package swarm

import (
	"time"

	"github.com/dep2p/go-p2pchat/internal/core/metrics"
)

// Config Swarm 配置
type Config struct {
	// DialTimeout 单次拨号（TCP 建连 + 升级）的上限
	DialTimeout time.Duration

	// NegotiateTimeout 流协议协商超时
	NegotiateTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:      20 * time.Second,
		NegotiateTimeout: 10 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.NegotiateTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Option Swarm 选项函数
type Option func(*Swarm) error

// WithConfig 设置配置
func WithConfig(config *Config) Option {
	return func(s *Swarm) error {
		if config == nil {
			return ErrInvalidConfig
		}
		if err := config.Validate(); err != nil {
			return err
		}
		s.config = config
		return nil
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Swarm) error {
		s.metrics = rec
		return nil
	}
}
