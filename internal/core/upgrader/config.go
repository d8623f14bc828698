package upgrader

import (
	"time"

	hyamux "github.com/hashicorp/yamux"

	"github.com/dep2p/go-p2pchat/internal/core/muxer/yamux"
)

// DefaultTimeout 默认升级超时
const DefaultTimeout = 20 * time.Second

// Config 升级器配置
type Config struct {
	// Timeout 从开始升级到 yamux 会话建立的总时限
	Timeout time.Duration

	// Yamux 复用器配置，nil 使用默认值
	Yamux *hyamux.Config
}

// DefaultConfig 创建默认配置
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Yamux:   yamux.DefaultYamuxConfig(),
	}
}
