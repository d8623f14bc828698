package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-p2pchat/internal/core/muxer/yamux"
)

// StreamHandler 入站流处理器
type StreamHandler func(*Stream)

// Stream 协商了协议的流
type Stream struct {
	*yamux.Stream

	conn     *Conn
	protocol string
}

func newStream(c *Conn, st *yamux.Stream, protocol string) *Stream {
	return &Stream{Stream: st, conn: c, protocol: protocol}
}

// Read 读取数据并计入指标
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.Stream.Read(p)
	s.conn.swarm.metrics.LogRecvStream(n, s.protocol)
	return n, err
}

// Write 写入数据并计入指标
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.Stream.Write(p)
	s.conn.swarm.metrics.LogSentStream(n, s.protocol)
	return n, err
}

// Protocol 返回协商的协议
func (s *Stream) Protocol() string {
	return s.protocol
}

// Conn 返回所属连接
func (s *Stream) Conn() *Conn {
	return s.conn
}

// RemotePeer 返回对端节点 ID
func (s *Stream) RemotePeer() peer.ID {
	return s.conn.RemotePeer()
}

// SetStreamHandler 注册协议处理器
func (s *Swarm) SetStreamHandler(protocol string, handler StreamHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[protocol] = handler
	s.mux.AddHandler(protocol, nil)
	log.Debug("注册协议处理器", "protocol", protocol)
}

// RemoveStreamHandler 移除协议处理器
func (s *Swarm) RemoveStreamHandler(protocol string) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	delete(s.handlers, protocol)
	s.mux.RemoveHandler(protocol)
}

// Protocols 返回已注册的协议
func (s *Swarm) Protocols() []string {
	return s.mux.Protocols()
}

// NewStream 创建到指定节点的新流
//
// 依次尝试到该节点的连接，protocols 按优先级排列。
func (s *Swarm) NewStream(ctx context.Context, p peer.ID, protocols ...string) (*Stream, error) {
	if s.closed.Load() {
		return nil, ErrSwarmClosed
	}

	conns := s.ConnsToPeer(p)
	if len(conns) == 0 {
		return nil, ErrNoConnection
	}

	var lastErr error
	for _, c := range conns {
		if c.IsClosed() {
			continue
		}
		st, err := s.newStreamOnConn(ctx, c, protocols)
		if err == nil {
			return st, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNoConnection
	}
	return nil, lastErr
}

func (s *Swarm) newStreamOnConn(ctx context.Context, c *Conn, protocols []string) (*Stream, error) {
	st, err := c.OpenStream(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.config.NegotiateTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = st.SetDeadline(deadline)

	proto, err := mss.SelectOneOf(protocols, st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("negotiate %v: %w", protocols, err)
	}
	_ = st.SetDeadline(time.Time{})

	s.metrics.StreamOpened(proto)
	return newStream(c, st, proto), nil
}

// handleInbound 协商入站流协议并交给处理器
func (s *Swarm) handleInbound(c *Conn, st *yamux.Stream) {
	_ = st.SetDeadline(time.Now().Add(s.config.NegotiateTimeout))

	proto, _, err := s.mux.Negotiate(st)
	if err != nil {
		log.Debug("入站流协商失败", "peerID", truncateID(c.RemotePeer().String(), 8), "error", err)
		_ = st.Close()
		return
	}
	_ = st.SetDeadline(time.Time{})

	s.handlersMu.RLock()
	h := s.handlers[proto]
	s.handlersMu.RUnlock()
	if h == nil {
		_ = st.Close()
		return
	}

	s.metrics.StreamOpened(proto)
	h(newStream(c, st, proto))
}
