package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// ProvideRecorder 在节点私有 Registry 上创建 Recorder
func ProvideRecorder() *Recorder {
	return NewRecorder(prometheus.NewRegistry())
}

// Module 是 metrics 的 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideRecorder),
	)
}
