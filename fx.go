package p2pchat

import (
	"fmt"
	"io"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-p2pchat/internal/app"
	"github.com/dep2p/go-p2pchat/internal/app/behaviour"
	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/pnet"
	"github.com/dep2p/go-p2pchat/internal/core/swarm"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Foundation: Identity → Pnet Key → Metrics
//  2. Transport: TCP → Upgrader → Swarm
//  3. Protocol: Gossipsub / Ping / Identify → Behaviour
func buildFxApp(o *options, node *Node) (*fx.App, error) {
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	out := o.output
	modules := []fx.Option{
		// 配置注入
		fx.Supply(o.config),
		fx.Provide(fx.Annotate(
			func() io.Writer { return out },
			fx.ResultTags(`name:"observer"`),
		)),

		app.FoundationModules(),
		app.TransportModules(),
		app.ProtocolModules(),
	}

	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	modules = append(modules,
		fx.Invoke(injectNodeComponents(node)),
		// 禁用 Fx 日志输出（避免干扰聊天输出）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	fxApp := fx.New(modules...)
	if err := fxApp.Err(); err != nil {
		return nil, err
	}
	return fxApp, nil
}

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Identity  *identity.Identity
	Key       pnet.Key
	Swarm     *swarm.Swarm
	Behaviour *behaviour.Behaviour
	Metrics   *metrics.Recorder `optional:"true"`
}

// injectNodeComponents 创建 Node 组件注入函数
func injectNodeComponents(node *Node) interface{} {
	return func(params nodeInjectParams) {
		node.identity = params.Identity
		node.key = params.Key
		node.swarm = params.Swarm
		node.behaviour = params.Behaviour
		node.metrics = params.Metrics
	}
}
