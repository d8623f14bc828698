package pnet

import (
	"encoding/hex"

	ipnet "github.com/libp2p/go-libp2p/core/pnet"
	"golang.org/x/crypto/salsa20"
	"golang.org/x/crypto/sha3"
)

const fingerprintSize = 16

// fingerprintNonce Salsa20 的 8 字节 nonce
var fingerprintNonce = []byte("finprint")

// Fingerprint 计算密钥指纹
//
// SHAKE128(Salsa20(psk, "finprint") 的前 64 字节密钥流) 取 16 字节，十六进制输出。
// 指纹可以公开展示，用于确认两端使用同一个 swarm.key。
func Fingerprint(psk ipnet.PSK) string {
	var key [32]byte
	copy(key[:], psk)

	stream := make([]byte, 64)
	salsa20.XORKeyStream(stream, stream, fingerprintNonce, &key)

	out := make([]byte, fingerprintSize)
	sha3.ShakeSum128(out, stream)
	return hex.EncodeToString(out)
}
