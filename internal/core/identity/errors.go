package identity

import "errors"

var (
	// ErrNilPrivateKey 私钥为空
	ErrNilPrivateKey = errors.New("private key is nil")

	// ErrKeyGeneration 密钥生成失败
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrUnsupportedKeyType 不支持的密钥类型
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)
