package tcp

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/config"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// ConfigFromGlobal 从全局配置转换
func ConfigFromGlobal(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		NoDelay:   cfg.Transport.NoDelay,
		KeepAlive: cfg.Transport.KeepAlive.Duration(),
	}
}

// ProvideTransport 提供 TCP 传输，随应用停止关闭
func ProvideTransport(lc fx.Lifecycle, input ModuleInput) *Transport {
	t := NewTransport(ConfigFromGlobal(input.Config))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return t.Close() },
	})
	return t
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("transport/tcp",
		fx.Provide(ProvideTransport),
	)
}
