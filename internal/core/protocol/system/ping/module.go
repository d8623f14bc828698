package ping

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/config"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ConfigFromUnified 从统一配置创建 ping 配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg != nil {
		c.Interval = cfg.Ping.Interval.Duration()
		c.Timeout = cfg.Ping.Timeout.Duration()
		c.MaxFailures = cfg.Ping.MaxFailures
	}
	return c
}

// Module 提供 ping 配置，服务实例由协议组合体创建
func Module() fx.Option {
	return fx.Module("protocol/ping",
		fx.Provide(func(in ModuleInput) Config {
			return ConfigFromUnified(in.UnifiedCfg)
		}),
	)
}
