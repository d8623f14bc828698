package behaviour

import (
	"fmt"

	"github.com/dep2p/go-p2pchat/internal/core/messaging/gossipsub"
	"github.com/dep2p/go-p2pchat/internal/core/protocol/system/identify"
	"github.com/dep2p/go-p2pchat/internal/core/protocol/system/ping"
)

// Kind 事件来源
type Kind int

const (
	// KindGossip gossipsub 事件
	KindGossip Kind = iota
	// KindIdentify identify 事件
	KindIdentify
	// KindPing ping 事件
	KindPing
)

// String 返回来源名称
func (k Kind) String() string {
	switch k {
	case KindGossip:
		return "Gossipsub"
	case KindIdentify:
		return "Identify"
	case KindPing:
		return "Ping"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event 组合协议事件，恰有一个子事件非空
type Event struct {
	Kind     Kind
	Gossip   *gossipsub.Event
	Identify *identify.Event
	Ping     *ping.Event
}

// String 返回事件的展示形式
func (e Event) String() string {
	switch e.Kind {
	case KindGossip:
		return fmt.Sprintf("Behaviour(Gossipsub(%s))", e.Gossip)
	case KindIdentify:
		return fmt.Sprintf("Behaviour(Identify(%s))", e.Identify)
	case KindPing:
		return fmt.Sprintf("Behaviour(Ping(%s))", e.Ping)
	default:
		return fmt.Sprintf("Behaviour(%s)", e.Kind)
	}
}
