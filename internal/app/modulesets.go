// Package app 提供模块集合清单
//
// modulesets.go 集中维护"哪些模块属于哪一层"，根包组装 fx 应用时
// 只从这里取模块，避免模块清单分散在多个入口。
package app

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/internal/app/behaviour"
	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/pnet"
	"github.com/dep2p/go-p2pchat/internal/core/swarm"
	"github.com/dep2p/go-p2pchat/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
)

// ============================================================================
//                              固定模块集合
// ============================================================================

// FoundationModules 基础层模块组合 (Tier 1)
//
// 身份、预共享密钥和指标记录器，其他模块都依赖它们。
func FoundationModules() fx.Option {
	return fx.Options(
		identity.Module(),
		pnet.Module(),
		metrics.Module(),
	)
}

// TransportModules 传输层模块组合 (Tier 2)
//
// TCP 传输、连接升级器（pnet → noise → yamux）和 swarm。
func TransportModules() fx.Option {
	return fx.Options(
		tcp.Module(),
		upgrader.Module(),
		swarm.Module(),
	)
}

// ProtocolModules 协议层模块组合 (Tier 3)
//
// 协议组合体及其 gossipsub、ping、identify 配置。
func ProtocolModules() fx.Option {
	return fx.Options(
		behaviour.Module(),
	)
}

// AllModules 按层次返回全部模块
func AllModules() fx.Option {
	return fx.Options(
		FoundationModules(),
		TransportModules(),
		ProtocolModules(),
	)
}
