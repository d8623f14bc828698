package identify

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Kind identify 事件类型
type Kind int

const (
	// KindReceived 收到对端的身份信息
	KindReceived Kind = iota
	// KindSent 向对端发送了身份信息
	KindSent
	// KindError 与对端的 identify 交换失败
	KindError
)

// String 返回类型名称
func (k Kind) String() string {
	switch k {
	case KindReceived:
		return "Received"
	case KindSent:
		return "Sent"
	case KindError:
		return "Error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event identify 事件
type Event struct {
	Peer peer.ID
	Kind Kind

	// Info 仅 KindReceived 有效
	Info *Info

	// Err 仅 KindError 有效
	Err error
}

// String 返回事件的展示形式
func (e Event) String() string {
	switch e.Kind {
	case KindReceived:
		return fmt.Sprintf("Received { peer_id: %s, info: %s }", e.Peer, e.Info)
	case KindError:
		return fmt.Sprintf("Error { peer_id: %s, error: %v }", e.Peer, e.Err)
	default:
		return fmt.Sprintf("%s { peer_id: %s }", e.Kind, e.Peer)
	}
}
