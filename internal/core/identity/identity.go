// Package identity 提供节点身份
//
// 身份是进程生命周期内唯一的 Ed25519 密钥对，PeerID 由公钥的
// protobuf 编码派生（identity multihash），与 libp2p 节点互通。
package identity

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Identity 节点身份，创建后不可变
type Identity struct {
	priv crypto.PrivKey
	pub  crypto.PubKey
	id   peer.ID
}

// Generate 生成随机的 Ed25519 身份
func Generate() (*Identity, error) {
	return GenerateWithReader(rand.Reader)
}

// GenerateWithReader 使用指定随机源生成 Ed25519 身份
func GenerateWithReader(src io.Reader) (*Identity, error) {
	priv, _, err := crypto.GenerateEd25519Key(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return FromPrivateKey(priv)
}

// FromPrivateKey 从已有私钥构造身份
func FromPrivateKey(priv crypto.PrivKey) (*Identity, error) {
	if priv == nil {
		return nil, ErrNilPrivateKey
	}
	pub := priv.GetPublic()
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("derive peer id: %w", err)
	}
	return &Identity{priv: priv, pub: pub, id: id}, nil
}

// ID 返回 PeerID
func (i *Identity) ID() peer.ID { return i.id }

// PublicKey 返回公钥
func (i *Identity) PublicKey() crypto.PubKey { return i.pub }

// PrivateKey 返回私钥
func (i *Identity) PrivateKey() crypto.PrivKey { return i.priv }

// Sign 用身份私钥签名
func (i *Identity) Sign(data []byte) ([]byte, error) {
	return i.priv.Sign(data)
}

// MarshalPublicKey 返回 protobuf 编码的公钥（identify / noise 载荷使用）
func (i *Identity) MarshalPublicKey() ([]byte, error) {
	return crypto.MarshalPublicKey(i.pub)
}

// String 返回 PeerID 的 base58 形式
func (i *Identity) String() string { return i.id.String() }
