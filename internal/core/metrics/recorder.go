package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace 指标名前缀
const Namespace = "p2pchat"

// Recorder 暴露节点的 Prometheus 指标
type Recorder struct {
	registry *prometheus.Registry

	connsOpened  *prometheus.CounterVec
	connsClosed  *prometheus.CounterVec
	connsActive  prometheus.Gauge
	connErrors   *prometheus.CounterVec
	streamsOpen  *prometheus.CounterVec
	bytesIn      *prometheus.CounterVec
	bytesOut     *prometheus.CounterVec
	published    prometheus.Counter
	delivered    prometheus.Counter
	duplicates   prometheus.Counter
	rejected     *prometheus.CounterVec
	pingRTT      prometheus.Histogram
	pingFailures *prometheus.CounterVec
}

// NewRecorder 在给定 Registry 上注册全部指标
func NewRecorder(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: reg,
		connsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_opened_total",
			Help:      "Total number of upgraded connections grouped by direction",
		}, []string{"direction"}),
		connsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of closed connections grouped by direction",
		}, []string{"direction"}),
		connsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connections_active",
			Help:      "Number of currently open connections",
		}),
		connErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connection_errors_total",
			Help:      "Failed connection attempts grouped by direction",
		}, []string{"direction"}),
		streamsOpen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "streams_opened_total",
			Help:      "Total number of negotiated streams grouped by protocol",
		}, []string{"protocol"}),
		bytesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stream_bytes_received_total",
			Help:      "Bytes read from streams grouped by protocol",
		}, []string{"protocol"}),
		bytesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stream_bytes_sent_total",
			Help:      "Bytes written to streams grouped by protocol",
		}, []string{"protocol"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gossip_published_total",
			Help:      "Messages published by the local node",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gossip_delivered_total",
			Help:      "Messages delivered to the local application",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gossip_duplicates_total",
			Help:      "Messages dropped because they were already seen",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gossip_rejected_total",
			Help:      "Messages rejected grouped by reason",
		}, []string{"reason"}),
		pingRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ping_rtt_seconds",
			Help:      "Round trip time of successful pings",
			Buckets:   prometheus.DefBuckets,
		}),
		pingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ping_failures_total",
			Help:      "Failed pings grouped by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		r.connsOpened,
		r.connsClosed,
		r.connsActive,
		r.connErrors,
		r.streamsOpen,
		r.bytesIn,
		r.bytesOut,
		r.published,
		r.delivered,
		r.duplicates,
		r.rejected,
		r.pingRTT,
		r.pingFailures,
	)
	return r
}

// Registry 返回承载指标的 Registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ConnOpened 记录连接建立
func (r *Recorder) ConnOpened(direction string) {
	if r == nil {
		return
	}
	r.connsOpened.WithLabelValues(direction).Inc()
	r.connsActive.Inc()
}

// ConnClosed 记录连接关闭
func (r *Recorder) ConnClosed(direction string) {
	if r == nil {
		return
	}
	r.connsClosed.WithLabelValues(direction).Inc()
	r.connsActive.Dec()
}

// ConnFailed 记录连接失败
func (r *Recorder) ConnFailed(direction string) {
	if r == nil {
		return
	}
	r.connErrors.WithLabelValues(direction).Inc()
}

// StreamOpened 记录协商成功的流
func (r *Recorder) StreamOpened(protocol string) {
	if r == nil {
		return
	}
	r.streamsOpen.WithLabelValues(protocol).Inc()
}

// LogRecvStream 记录从流读取的字节数
func (r *Recorder) LogRecvStream(size int, protocol string) {
	if r == nil || size <= 0 {
		return
	}
	r.bytesIn.WithLabelValues(protocol).Add(float64(size))
}

// LogSentStream 记录写入流的字节数
func (r *Recorder) LogSentStream(size int, protocol string) {
	if r == nil || size <= 0 {
		return
	}
	r.bytesOut.WithLabelValues(protocol).Add(float64(size))
}

// MessagePublished 记录本地发布
func (r *Recorder) MessagePublished() {
	if r == nil {
		return
	}
	r.published.Inc()
}

// MessageDelivered 记录投递给应用的消息
func (r *Recorder) MessageDelivered() {
	if r == nil {
		return
	}
	r.delivered.Inc()
}

// MessageDuplicate 记录重复消息
func (r *Recorder) MessageDuplicate() {
	if r == nil {
		return
	}
	r.duplicates.Inc()
}

// MessageRejected 记录被拒绝的消息
func (r *Recorder) MessageRejected(reason string) {
	if r == nil {
		return
	}
	r.rejected.WithLabelValues(reason).Inc()
}

// PingRTT 记录成功 ping 的往返时延
func (r *Recorder) PingRTT(rtt time.Duration) {
	if r == nil {
		return
	}
	r.pingRTT.Observe(rtt.Seconds())
}

// PingFailed 记录 ping 失败
func (r *Recorder) PingFailed(kind string) {
	if r == nil {
		return
	}
	r.pingFailures.WithLabelValues(kind).Inc()
}
