package config

import (
	"errors"
	"strings"
)

// IdentityConfig 身份配置
//
// 节点每次启动生成新的随机身份，不持久化。
type IdentityConfig struct {
	// KeyType 密钥类型，目前只支持 Ed25519
	KeyType string `json:"key_type"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{KeyType: "Ed25519"}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if !strings.EqualFold(c.KeyType, "Ed25519") {
		return errors.New("unsupported key type: " + c.KeyType)
	}
	return nil
}
