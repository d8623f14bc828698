package pnet

import "errors"

var (
	// ErrMalformedKey 密钥文件格式错误
	ErrMalformedKey = errors.New("malformed swarm key")

	// ErrKeyLength 密钥长度不是 32 字节
	ErrKeyLength = errors.New("swarm key must be 32 bytes")
)
