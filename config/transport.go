package config

import (
	"errors"
	"time"

	ma "github.com/multiformats/go-multiaddr"
)

// DefaultListenAddr 默认监听地址：所有接口，系统分配端口
const DefaultListenAddr = "/ip4/0.0.0.0/tcp/0"

// TransportConfig 传输层配置
type TransportConfig struct {
	// ListenAddrs 监听地址（multiaddr）
	ListenAddrs []string `json:"listen_addrs"`

	// ConnectTimeout 单次连接建立（拨号 + 全部升级阶段）的上限
	ConnectTimeout Duration `json:"connect_timeout"`

	// NoDelay 是否设置 TCP_NODELAY
	NoDelay bool `json:"no_delay"`

	// KeepAlive TCP keep-alive 周期，0 表示关闭
	KeepAlive Duration `json:"keep_alive"`

	// Yamux 流复用参数
	Yamux YamuxConfig `json:"yamux"`
}

// YamuxConfig yamux 复用器配置
type YamuxConfig struct {
	// MaxStreamWindowSize 单流最大接收窗口
	MaxStreamWindowSize uint32 `json:"max_stream_window_size"`

	// KeepAliveInterval 会话 keep-alive 间隔
	KeepAliveInterval Duration `json:"keep_alive_interval"`

	// AcceptBacklog 待 Accept 的流上限
	AcceptBacklog int `json:"accept_backlog"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenAddrs:    []string{DefaultListenAddr},
		ConnectTimeout: Duration(20 * time.Second), // 连接建立超时：20 秒
		NoDelay:        true,
		KeepAlive:      Duration(15 * time.Second),
		Yamux: YamuxConfig{
			MaxStreamWindowSize: 256 * 1024,                 // 256 KB
			KeepAliveInterval:   Duration(30 * time.Second), // 30 秒
			AcceptBacklog:       256,
		},
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if len(c.ListenAddrs) == 0 {
		return errors.New("at least one listen address is required")
	}
	for _, s := range c.ListenAddrs {
		if _, err := ma.NewMultiaddr(s); err != nil {
			return errors.New("invalid listen address " + s + ": " + err.Error())
		}
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect timeout must be positive")
	}
	if c.KeepAlive < 0 {
		return errors.New("keep alive must not be negative")
	}
	if c.Yamux.MaxStreamWindowSize < 256*1024 {
		return errors.New("yamux max stream window size must be at least 256KB")
	}
	if c.Yamux.AcceptBacklog <= 0 {
		return errors.New("yamux accept backlog must be positive")
	}
	return nil
}
