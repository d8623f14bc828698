// Package noise 实现 libp2p-noise 安全通道
//
// Noise_XX_25519_ChaChaPoly_SHA256：
//
//	-> e
//	<- e, ee, s, es, payload
//	-> s, se, payload
//
// payload 为 protobuf NoiseHandshakePayload：
//   - identity_key (1): protobuf 编码的 libp2p 公钥
//   - identity_sig (2): Sign("noise-libp2p-static-key:" || 静态 DH 公钥)
//
// 验证签名的同时得到对端 PeerID。握手消息与传输消息都使用
// 2 字节大端长度前缀，单帧密文不超过 65535 字节。
package noise

import "github.com/dep2p/go-p2pchat/internal/util/logger"

// ID 多流协商使用的协议标识
const ID = "/noise"

var log = logger.Logger("core/security/noise")
