package yamux

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/hashicorp/yamux"
)

// ErrMuxerClosed 复用器已关闭
var ErrMuxerClosed = errors.New("muxer closed")

// Muxer 封装 yamux.Session
type Muxer struct {
	session    *yamux.Session
	isServer   bool
	closed     atomic.Bool
	numStreams atomic.Int32
}

// NewMuxer 在安全连接上建立 yamux 会话
//
// isServer 为 true 时使用偶数流 ID（入站连接一侧）。
func NewMuxer(conn net.Conn, isServer bool, cfg *yamux.Config) (*Muxer, error) {
	if cfg == nil {
		cfg = DefaultYamuxConfig()
	}

	var (
		session *yamux.Session
		err     error
	)
	if isServer {
		session, err = yamux.Server(conn, cfg)
	} else {
		session, err = yamux.Client(conn, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("create yamux session: %w", err)
	}

	return &Muxer{session: session, isServer: isServer}, nil
}

// OpenStream 打开新流
//
// yamux 的 OpenStream 不接收 context，放在 goroutine 中等待。
func (m *Muxer) OpenStream(ctx context.Context) (*Stream, error) {
	if m.IsClosed() {
		return nil, ErrMuxerClosed
	}

	type result struct {
		stream *yamux.Stream
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		s, err := m.session.OpenStream()
		select {
		case resultCh <- result{s, err}:
		case <-ctx.Done():
			// 调用方已放弃，关闭孤立的流
			if s != nil {
				_ = s.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("open stream: %w", r.err)
		}
		return m.track(r.stream), nil
	}
}

// AcceptStream 等待对端打开的流
func (m *Muxer) AcceptStream() (*Stream, error) {
	if m.IsClosed() {
		return nil, ErrMuxerClosed
	}

	s, err := m.session.AcceptStream()
	if err != nil {
		return nil, fmt.Errorf("accept stream: %w", err)
	}
	return m.track(s), nil
}

func (m *Muxer) track(s *yamux.Stream) *Stream {
	m.numStreams.Add(1)
	return newStream(s, func() { m.numStreams.Add(-1) })
}

// Close 关闭会话及其所有流
func (m *Muxer) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Debug("关闭 yamux 会话", "server", m.isServer, "streams", m.NumStreams())
	return m.session.Close()
}

// IsClosed 检查是否已关闭（本地关闭或会话断开）
func (m *Muxer) IsClosed() bool {
	return m.closed.Load() || m.session.IsClosed()
}

// CloseChan 会话结束时关闭的通道
func (m *Muxer) CloseChan() <-chan struct{} {
	return m.session.CloseChan()
}

// NumStreams 返回当前打开的流数量
func (m *Muxer) NumStreams() int {
	return int(m.numStreams.Load())
}

// IsServer 返回是否是服务端
func (m *Muxer) IsServer() bool {
	return m.isServer
}
