package config

import (
	"errors"
	"time"
)

// GossipsubConfig gossipsub 配置
type GossipsubConfig struct {
	// D 目标 mesh 度数，Dlo/Dhi 为上下界，Dlazy 为 gossip 发送度数
	D     int `json:"d"`
	Dlo   int `json:"dlo"`
	Dhi   int `json:"dhi"`
	Dlazy int `json:"dlazy"`

	// HeartbeatInterval 心跳间隔
	HeartbeatInterval Duration `json:"heartbeat_interval"`

	// HistoryLength 消息缓存窗口数，HistoryGossip 为参与 IHAVE 的窗口数
	HistoryLength int `json:"history_length"`
	HistoryGossip int `json:"history_gossip"`

	// FanoutTTL 未订阅主题的 fanout 保留时长
	FanoutTTL Duration `json:"fanout_ttl"`

	// SeenTTL 已见消息去重时长
	SeenTTL Duration `json:"seen_ttl"`

	// MaxTransmitSize 单个 RPC 的最大字节数
	MaxTransmitSize int `json:"max_transmit_size"`

	// FloodPublish 自己发布的消息发给所有订阅该主题的节点
	FloodPublish bool `json:"flood_publish"`
}

// DefaultGossipsubConfig 返回默认 gossipsub 配置
func DefaultGossipsubConfig() GossipsubConfig {
	return GossipsubConfig{
		D:                 6,
		Dlo:               5,
		Dhi:               12,
		Dlazy:             6,
		HeartbeatInterval: Duration(time.Second),
		HistoryLength:     5,
		HistoryGossip:     3,
		FanoutTTL:         Duration(60 * time.Second),
		SeenTTL:           Duration(120 * time.Second),
		MaxTransmitSize:   262144, // 256 KiB
		FloodPublish:      false,
	}
}

// Validate 验证 gossipsub 配置
func (c GossipsubConfig) Validate() error {
	if c.Dlo <= 0 || c.Dlo > c.D || c.D > c.Dhi {
		return errors.New("mesh degrees must satisfy 0 < Dlo <= D <= Dhi")
	}
	if c.Dlazy < 0 {
		return errors.New("Dlazy must not be negative")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	if c.HistoryGossip <= 0 || c.HistoryGossip > c.HistoryLength {
		return errors.New("history gossip must be in (0, history length]")
	}
	if c.SeenTTL <= 0 || c.FanoutTTL <= 0 {
		return errors.New("seen and fanout TTL must be positive")
	}
	if c.MaxTransmitSize <= 0 {
		return errors.New("max transmit size must be positive")
	}
	return nil
}

// PingConfig ping 配置
type PingConfig struct {
	// Interval 两次成功探测之间的间隔
	Interval Duration `json:"interval"`

	// Timeout 单次探测超时
	Timeout Duration `json:"timeout"`

	// MaxFailures 连续失败多少次后关闭连接，0 表示从不关闭
	MaxFailures int `json:"max_failures"`
}

// DefaultPingConfig 返回默认 ping 配置
func DefaultPingConfig() PingConfig {
	return PingConfig{
		Interval:    Duration(15 * time.Second),
		Timeout:     Duration(20 * time.Second),
		MaxFailures: 1,
	}
}

// Validate 验证 ping 配置
func (c PingConfig) Validate() error {
	if c.Interval <= 0 || c.Timeout <= 0 {
		return errors.New("ping interval and timeout must be positive")
	}
	if c.MaxFailures < 0 {
		return errors.New("max failures must not be negative")
	}
	return nil
}

// IdentifyConfig identify 配置
type IdentifyConfig struct {
	// ProtocolVersion 宣告的协议版本
	ProtocolVersion string `json:"protocol_version"`

	// AgentVersion 宣告的客户端标识
	AgentVersion string `json:"agent_version"`

	// InitialDelay 连接建立后首次 identify 的延迟
	InitialDelay Duration `json:"initial_delay"`

	// Interval 周期性 identify 的间隔
	Interval Duration `json:"interval"`
}

// DefaultIdentifyConfig 返回默认 identify 配置
func DefaultIdentifyConfig() IdentifyConfig {
	return IdentifyConfig{
		ProtocolVersion: "/ipfs/0.1.0",
		AgentVersion:    "rust-ipfs-example",
		InitialDelay:    Duration(500 * time.Millisecond),
		Interval:        Duration(5 * time.Minute),
	}
}

// Validate 验证 identify 配置
func (c IdentifyConfig) Validate() error {
	if c.ProtocolVersion == "" {
		return errors.New("protocol version must not be empty")
	}
	if c.InitialDelay < 0 || c.Interval <= 0 {
		return errors.New("identify delays must be positive")
	}
	return nil
}

// ChatConfig 聊天会话配置
type ChatConfig struct {
	// Topic 启动时订阅的主题
	Topic string `json:"topic"`

	// Peers 启动时额外拨号的地址（与命令行参数合并）
	Peers []string `json:"peers,omitempty"`
}

// DefaultChatConfig 返回默认聊天配置
func DefaultChatConfig() ChatConfig {
	return ChatConfig{Topic: "chat"}
}

// Validate 验证聊天配置
func (c ChatConfig) Validate() error {
	if c.Topic == "" {
		return errors.New("topic must not be empty")
	}
	return nil
}
