// Package yamux 基于 hashicorp/yamux 提供流多路复用
//
// 协议标识 /yamux/1.0.0，与 libp2p 的 yamux 线格式一致。
package yamux

import (
	"io"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/internal/util/logger"
)

// ID 多流协商使用的协议标识
const ID = "/yamux/1.0.0"

var log = logger.Logger("core/muxer/yamux")

// DefaultYamuxConfig 返回默认 yamux 配置
func DefaultYamuxConfig() *yamux.Config {
	return &yamux.Config{
		AcceptBacklog:          256,
		EnableKeepAlive:        true,
		KeepAliveInterval:      30 * time.Second,
		ConnectionWriteTimeout: 10 * time.Second,
		MaxStreamWindowSize:    256 * 1024,
		StreamOpenTimeout:      75 * time.Second,
		StreamCloseTimeout:     5 * time.Minute,
		LogOutput:              io.Discard,
	}
}

// ConfigFromGlobal 把全局配置转换为 yamux.Config
func ConfigFromGlobal(cfg *config.Config) *yamux.Config {
	yc := DefaultYamuxConfig()
	if cfg == nil {
		return yc
	}

	y := cfg.Transport.Yamux
	if y.MaxStreamWindowSize > 0 {
		yc.MaxStreamWindowSize = y.MaxStreamWindowSize
	}
	if y.AcceptBacklog > 0 {
		yc.AcceptBacklog = y.AcceptBacklog
	}
	if y.KeepAliveInterval > 0 {
		yc.KeepAliveInterval = y.KeepAliveInterval.Duration()
	}
	return yc
}
