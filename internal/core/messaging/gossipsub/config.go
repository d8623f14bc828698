package gossipsub

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
)

// Config GossipSub 配置
type Config struct {
	// D 目标 mesh 度数
	D int
	// Dlo mesh 度数下界，低于此值时心跳补充
	Dlo int
	// Dhi mesh 度数上界，高于此值时心跳裁剪
	Dhi int
	// Dlazy 每次心跳发送 IHAVE 的节点数
	Dlazy int

	HeartbeatInterval     time.Duration
	HeartbeatInitialDelay time.Duration

	// HistoryLength 消息缓存窗口数
	HistoryLength int
	// HistoryGossip 参与 IHAVE 的窗口数
	HistoryGossip int

	FanoutTTL time.Duration
	SeenTTL   time.Duration

	// MaxTransmitSize 单个 RPC 的最大字节数
	MaxTransmitSize int

	// FloodPublish 自己发布的消息发给所有订阅该主题的节点
	FloodPublish bool

	// Clock 时钟，nil 使用系统时钟
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		D:                     6,
		Dlo:                   5,
		Dhi:                   12,
		Dlazy:                 6,
		HeartbeatInterval:     time.Second,
		HeartbeatInitialDelay: 100 * time.Millisecond,
		HistoryLength:         5,
		HistoryGossip:         3,
		FanoutTTL:             60 * time.Second,
		SeenTTL:               120 * time.Second,
		MaxTransmitSize:       262144,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.Dlo <= 0 || c.Dlo > c.D || c.D > c.Dhi {
		return errors.New("gossipsub: mesh degrees must satisfy 0 < Dlo <= D <= Dhi")
	}
	if c.Dlazy < 0 {
		return errors.New("gossipsub: Dlazy must not be negative")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("gossipsub: heartbeat interval must be positive")
	}
	if c.HistoryGossip <= 0 || c.HistoryGossip > c.HistoryLength {
		return errors.New("gossipsub: history gossip must be in (0, history length]")
	}
	if c.FanoutTTL <= 0 || c.SeenTTL <= 0 {
		return errors.New("gossipsub: fanout and seen TTL must be positive")
	}
	if c.MaxTransmitSize <= 0 {
		return errors.New("gossipsub: max transmit size must be positive")
	}
	return nil
}
