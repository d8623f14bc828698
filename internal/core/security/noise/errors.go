package noise

import "errors"

var (
	// ErrNilIdentity 未提供本地身份
	ErrNilIdentity = errors.New("noise: identity is nil")

	// ErrPeerIDMismatch 对端身份与期望不符
	ErrPeerIDMismatch = errors.New("noise: peer id mismatch")

	// ErrInvalidSignature 静态密钥没有被身份密钥签名
	ErrInvalidSignature = errors.New("noise: remote static key not bound to identity key")

	// ErrInvalidPayload 握手载荷无法解析
	ErrInvalidPayload = errors.New("noise: invalid handshake payload")
)
