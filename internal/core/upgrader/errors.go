package upgrader

import "errors"

var (
	// ErrNilIdentity 身份为空
	ErrNilIdentity = errors.New("upgrader: identity is nil")

	// ErrUpgradeTimeout 升级未在超时内完成
	ErrUpgradeTimeout = errors.New("upgrader: connection upgrade timed out")

	// ErrNegotiationFailed 协商失败
	ErrNegotiationFailed = errors.New("upgrader: protocol negotiation failed")

	// ErrHandshakeFailed 握手失败
	ErrHandshakeFailed = errors.New("upgrader: handshake failed")

	// ErrMuxerSetupFailed 多路复用器设置失败
	ErrMuxerSetupFailed = errors.New("upgrader: muxer setup failed")

	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("upgrader: connection closed")
)
