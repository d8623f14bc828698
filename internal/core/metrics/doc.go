// Package metrics 提供监控指标收集
//
// metrics 基于 Prometheus client 在私有 Registry 上注册计数器，
// 覆盖连接、带宽（按协议）、gossipsub 消息与 ping 往返时延。
// 所有记录方法对 nil *Recorder 安全，组件可在未启用指标时直接调用。
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewRecorder(reg)
//
//	rec.ConnOpened("inbound")
//	rec.LogRecvStream(512, "/meshsub/1.0.0")
//
//	families, _ := reg.Gather()
//
// # Fx 模块
//
//	app := fx.New(
//	    metrics.Module(),
//	    fx.Invoke(func(rec *metrics.Recorder) {
//	        rec.ConnOpened("outbound")
//	    }),
//	)
package metrics
