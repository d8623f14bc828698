package gossipsub

import (
	"fmt"
	"strconv"

	"github.com/libp2p/go-libp2p/core/peer"
)

// ============================================================================
//                              消息
// ============================================================================

// MessageID 消息标识：发布者 base58 ID 拼接十进制序列号
type MessageID string

// Message 发布订阅消息
type Message struct {
	From  peer.ID
	Data  []byte
	Seqno uint64
	Topic string
}

// ID 返回消息标识
func (m *Message) ID() MessageID {
	return MessageID(m.From.String() + strconv.FormatUint(m.Seqno, 10))
}

// String 返回展示形式
func (m *Message) String() string {
	return fmt.Sprintf("Message { source: %s, data: %q, sequence_number: %d, topic: %s }",
		m.From, m.Data, m.Seqno, m.Topic)
}

// ============================================================================
//                              RPC
// ============================================================================

// RPC 一次传输的全部内容
type RPC struct {
	Subscriptions []SubOpts
	Publish       []*Message
	Control       *ControlMessage
}

// SubOpts 订阅变更
type SubOpts struct {
	Subscribe bool
	Topic     string
}

// ControlMessage 控制消息
type ControlMessage struct {
	IHave []ControlIHave
	IWant []ControlIWant
	Graft []ControlGraft
	Prune []ControlPrune
}

// ControlIHave 宣告缓存中的消息
type ControlIHave struct {
	Topic      string
	MessageIDs []MessageID
}

// ControlIWant 请求消息
type ControlIWant struct {
	MessageIDs []MessageID
}

// ControlGraft 请求加入对方 mesh
type ControlGraft struct {
	Topic string
}

// ControlPrune 通知离开对方 mesh
type ControlPrune struct {
	Topic string
}

func (c *ControlMessage) empty() bool {
	return c == nil || len(c.IHave)+len(c.IWant)+len(c.Graft)+len(c.Prune) == 0
}

// ============================================================================
//                              事件
// ============================================================================

// Kind 事件类型
type Kind int

const (
	// KindMessage 收到订阅主题上的新消息
	KindMessage Kind = iota
	// KindSubscribed 对端订阅了主题
	KindSubscribed
	// KindUnsubscribed 对端取消订阅主题
	KindUnsubscribed
)

// String 返回类型名称
func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "Message"
	case KindSubscribed:
		return "Subscribed"
	case KindUnsubscribed:
		return "Unsubscribed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event GossipSub 事件
type Event struct {
	Kind Kind

	// KindMessage
	PropagationSource peer.ID
	ID                MessageID
	Message           *Message

	// KindSubscribed / KindUnsubscribed
	Peer  peer.ID
	Topic string
}

// String 返回事件的展示形式
func (e Event) String() string {
	if e.Kind == KindMessage {
		return fmt.Sprintf("Message { propagation_source: %s, message_id: %s, message: %s }",
			e.PropagationSource, e.ID, e.Message)
	}
	return fmt.Sprintf("%s { peer_id: %s, topic: %s }", e.Kind, e.Peer, e.Topic)
}
