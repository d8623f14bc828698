package gossipsub

import "errors"

var (
	// ErrRouterClosed 路由器已关闭
	ErrRouterClosed = errors.New("gossipsub: router closed")

	// ErrMessageTooLarge 编码后的消息超过最大传输大小
	ErrMessageTooLarge = errors.New("gossipsub: message too large")

	// ErrInsufficientPeers 没有可发送的节点
	ErrInsufficientPeers = errors.New("gossipsub: no peers subscribed to topic")

	// ErrEmptyTopic 主题为空
	ErrEmptyTopic = errors.New("gossipsub: empty topic")

	// ErrMalformedRPC RPC 格式错误
	ErrMalformedRPC = errors.New("gossipsub: malformed rpc")
)
