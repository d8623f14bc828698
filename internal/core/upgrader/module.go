package upgrader

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/muxer/yamux"
	"github.com/dep2p/go-p2pchat/internal/core/pnet"
)

// Params Upgrader 依赖参数
type Params struct {
	fx.In

	Identity   *identity.Identity
	Key        pnet.Key
	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("upgrader",
		fx.Provide(
			ProvideUpgrader,
		),
	)
}

// ConfigFromUnified 从统一配置创建 Upgrader 配置
func ConfigFromUnified(cfg *config.Config) Config {
	baseCfg := DefaultConfig()
	if cfg != nil {
		baseCfg.Timeout = cfg.Transport.ConnectTimeout.Duration()
		baseCfg.Yamux = yamux.ConfigFromGlobal(cfg)
	}
	return baseCfg
}

// ProvideUpgrader 提供 Upgrader（依赖注入）
func ProvideUpgrader(params Params) (*Upgrader, error) {
	return New(params.Identity, params.Key, ConfigFromUnified(params.UnifiedCfg))
}
