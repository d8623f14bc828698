package behaviour

import (
	"context"
	"io"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/messaging/gossipsub"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/protocol/system/identify"
	"github.com/dep2p/go-p2pchat/internal/core/protocol/system/ping"
	"github.com/dep2p/go-p2pchat/internal/core/swarm"
)

// Params 组合体依赖
type Params struct {
	fx.In

	Swarm     *swarm.Swarm
	Identity  *identity.Identity
	Gossipsub gossipsub.Config
	Ping      ping.Config
	Identify  identify.Config

	Metrics *metrics.Recorder `optional:"true"`
	Output  io.Writer         `name:"observer" optional:"true"`
}

// ProvideBehaviour 创建组合体并挂接生命周期
func ProvideBehaviour(lc fx.Lifecycle, p Params) (*Behaviour, error) {
	opts := []Option{WithMetrics(p.Metrics)}
	if p.Output != nil {
		opts = append(opts, WithOutput(p.Output))
	}

	cfg := Config{Gossipsub: p.Gossipsub, Ping: p.Ping, Identify: p.Identify}
	b, err := New(p.Swarm, p.Identity.PublicKey(), cfg, opts...)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			b.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			return b.Close()
		},
	})
	return b, nil
}

// Module 返回 fx 模块，包含三个子协议的配置
func Module() fx.Option {
	return fx.Module("app/behaviour",
		gossipsub.Module(),
		ping.Module(),
		identify.Module(),
		fx.Provide(ProvideBehaviour),
	)
}
