package swarm

import (
	"context"
	"errors"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
)

// Params Swarm 依赖参数
type Params struct {
	fx.In

	Identity   *identity.Identity
	Upgrader   *upgrader.Upgrader
	Transport  *tcp.Transport
	Metrics    *metrics.Recorder `optional:"true"`
	UnifiedCfg *config.Config    `optional:"true"`
}

// Module Swarm Fx 模块
func Module() fx.Option {
	return fx.Module("swarm",
		fx.Provide(ProvideSwarm),
	)
}

// ConfigFromUnified 从统一配置创建 Swarm 配置
func ConfigFromUnified(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg != nil {
		c.DialTimeout = cfg.Transport.ConnectTimeout.Duration()
	}
	return c
}

// ProvideSwarm 创建 Swarm，随应用停止关闭
func ProvideSwarm(lc fx.Lifecycle, p Params) (*Swarm, error) {
	s, err := New(p.Identity.ID(), p.Upgrader, p.Transport,
		WithConfig(ConfigFromUnified(p.UnifiedCfg)),
		WithMetrics(p.Metrics),
	)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := s.Close(); err != nil && !errors.Is(err, ErrSwarmClosed) {
				return err
			}
			return nil
		},
	})
	return s, nil
}
