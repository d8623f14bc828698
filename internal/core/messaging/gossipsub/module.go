package gossipsub

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/config"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ConfigFromUnified 从统一配置创建 gossipsub 配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	g := cfg.Gossipsub
	c.D = g.D
	c.Dlo = g.Dlo
	c.Dhi = g.Dhi
	c.Dlazy = g.Dlazy
	c.HeartbeatInterval = g.HeartbeatInterval.Duration()
	c.HistoryLength = g.HistoryLength
	c.HistoryGossip = g.HistoryGossip
	c.FanoutTTL = g.FanoutTTL.Duration()
	c.SeenTTL = g.SeenTTL.Duration()
	c.MaxTransmitSize = g.MaxTransmitSize
	c.FloodPublish = g.FloodPublish
	return c
}

// Module 提供 gossipsub 配置，路由器由协议组合体创建
func Module() fx.Option {
	return fx.Module("messaging/gossipsub",
		fx.Provide(func(in ModuleInput) (Config, error) {
			c := ConfigFromUnified(in.UnifiedCfg)
			return c, c.Validate()
		}),
	)
}
