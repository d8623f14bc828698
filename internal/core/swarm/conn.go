package swarm

import (
	"context"
	"errors"
	"io"
	"sync"

	hyamux "github.com/hashicorp/yamux"

	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
)

// Conn Swarm 连接封装
type Conn struct {
	*upgrader.Conn

	swarm *Swarm
	id    uint64

	closeOnce sync.Once
	closeErr  error
}

// newConn 创建 Swarm 连接
func newConn(s *Swarm, uc *upgrader.Conn, id uint64) *Conn {
	return &Conn{Conn: uc, swarm: s, id: id}
}

// ID 返回连接在本 Swarm 内的编号
func (c *Conn) ID() uint64 {
	return c.id
}

// NewStream 在此连接上打开流并协商协议
func (c *Conn) NewStream(ctx context.Context, protocols ...string) (*Stream, error) {
	return c.swarm.newStreamOnConn(ctx, c, protocols)
}

// Close 关闭连接
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}

// acceptStreams 入站流循环，连接结束时把自己移出连接池
func (c *Conn) acceptStreams() {
	var cause error
	for {
		st, err := c.AcceptStream()
		if err != nil {
			if !c.IsClosed() && !errors.Is(err, io.EOF) && !errors.Is(err, hyamux.ErrSessionShutdown) {
				cause = err
			}
			break
		}
		go c.swarm.handleInbound(c, st)
	}
	_ = c.Close()
	c.swarm.removeConn(c, cause)
}
