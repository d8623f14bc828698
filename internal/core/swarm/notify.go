package swarm

// Notifiee 连接事件订阅者
//
// 回调在建立或移除连接的 goroutine 中同步执行，不应阻塞。
type Notifiee interface {
	Connected(*Conn)
	Disconnected(*Conn)
}

// NotifyBundle 以函数组合实现 Notifiee
type NotifyBundle struct {
	ConnectedF    func(*Conn)
	DisconnectedF func(*Conn)
}

var _ Notifiee = (*NotifyBundle)(nil)

// Connected 调用 ConnectedF
func (nb *NotifyBundle) Connected(c *Conn) {
	if nb.ConnectedF != nil {
		nb.ConnectedF(c)
	}
}

// Disconnected 调用 DisconnectedF
func (nb *NotifyBundle) Disconnected(c *Conn) {
	if nb.DisconnectedF != nil {
		nb.DisconnectedF(c)
	}
}
