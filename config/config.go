// Package config 提供 p2pchat 的统一配置
//
// 主 Config 聚合所有子配置，每个子配置在独立文件中定义，
// 可以从 JSON 加载，命令行与环境变量在 cmd 层覆盖。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Gossipsub.MaxTransmitSize = 1 << 20
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config 是 p2pchat 节点的完整配置
//
//   - Identity: 节点身份
//   - Transport: TCP 传输与连接升级
//   - Pnet: 私有网络预共享密钥
//   - Gossipsub / Ping / Identify: 三个子协议
//   - Chat: 聊天会话
type Config struct {
	Identity  IdentityConfig  `json:"identity"`
	Transport TransportConfig `json:"transport"`
	Pnet      PnetConfig      `json:"pnet"`
	Gossipsub GossipsubConfig `json:"gossipsub"`
	Ping      PingConfig      `json:"ping"`
	Identify  IdentifyConfig  `json:"identify"`
	Chat      ChatConfig      `json:"chat"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Transport: DefaultTransportConfig(),
		Pnet:      DefaultPnetConfig(),
		Gossipsub: DefaultGossipsubConfig(),
		Ping:      DefaultPingConfig(),
		Identify:  DefaultIdentifyConfig(),
		Chat:      DefaultChatConfig(),
	}
}

// Validate 依次验证所有子配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	validators := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"identity", c.Identity},
		{"transport", c.Transport},
		{"pnet", c.Pnet},
		{"gossipsub", c.Gossipsub},
		{"ping", c.Ping},
		{"identify", c.Identify},
		{"chat", c.Chat},
	}
	for _, item := range validators {
		if err := item.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", item.name, err)
		}
	}
	return nil
}

// FromJSON 在默认配置之上应用 JSON 内容
//
// JSON 中未出现的字段保留默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
