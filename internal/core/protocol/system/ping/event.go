package ping

import (
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Kind ping 事件类型
type Kind int

const (
	// KindPing 出站探测成功，携带 RTT
	KindPing Kind = iota
	// KindPong 回应了对端的探测
	KindPong
	// KindTimeout 出站探测超时
	KindTimeout
	// KindFailure 出站探测因其他原因失败
	KindFailure
)

// String 返回类型名称
func (k Kind) String() string {
	switch k {
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindTimeout:
		return "Timeout"
	case KindFailure:
		return "Failure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event ping 事件
type Event struct {
	Peer peer.ID
	Kind Kind

	// RTT 仅 KindPing 有效
	RTT time.Duration

	// Err 仅 KindFailure 有效
	Err error
}

// String 返回事件的展示形式
func (e Event) String() string {
	switch e.Kind {
	case KindPing:
		return fmt.Sprintf("PingEvent { peer: %s, result: Ping { rtt: %s } }", e.Peer, e.RTT)
	case KindFailure:
		return fmt.Sprintf("PingEvent { peer: %s, result: Failure { error: %v } }", e.Peer, e.Err)
	default:
		return fmt.Sprintf("PingEvent { peer: %s, result: %s }", e.Peer, e.Kind)
	}
}
