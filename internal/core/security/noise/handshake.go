package noise

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// payloadSigPrefix 签名前缀，与 libp2p-noise 兼容
const payloadSigPrefix = "noise-libp2p-static-key:"

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// ============================================================================
//                              Noise XX 握手
// ============================================================================

// performHandshake 执行 Noise XX 握手
//
// expected 非空时校验对端 PeerID。
func performHandshake(conn net.Conn, priv crypto.PrivKey, expected peer.ID, initiator bool) (*Conn, error) {
	static, err := staticKeypair(priv)
	if err != nil {
		return nil, err
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: static,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	localPayload, err := makePayload(priv, static.Public)
	if err != nil {
		return nil, err
	}

	var sendCS, recvCS *noise.CipherState
	var remotePayload []byte
	if initiator {
		sendCS, recvCS, remotePayload, err = clientHandshake(conn, hs, localPayload)
	} else {
		sendCS, recvCS, remotePayload, err = serverHandshake(conn, hs, localPayload)
	}
	if err != nil {
		return nil, err
	}

	remoteKey, remotePeer, err := verifyPayload(remotePayload, hs.PeerStatic())
	if err != nil {
		return nil, err
	}
	if expected != "" && remotePeer != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, expected, remotePeer)
	}

	localPeer, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("derive local peer id: %w", err)
	}

	return &Conn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  localPeer,
		remotePeer: remotePeer,
		remoteKey:  remoteKey,
	}, nil
}

// makePayload 生成本地载荷
func makePayload(priv crypto.PrivKey, staticPub []byte) ([]byte, error) {
	keyBytes, err := crypto.MarshalPublicKey(priv.GetPublic())
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	sig, err := priv.Sign(append([]byte(payloadSigPrefix), staticPub...))
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}

	p := handshakePayload{IdentityKey: keyBytes, IdentitySig: sig}
	return p.marshal(), nil
}

// verifyPayload 校验对端载荷，返回其身份公钥与 PeerID
func verifyPayload(data, remoteStatic []byte) (crypto.PubKey, peer.ID, error) {
	if len(remoteStatic) != 32 {
		return nil, "", fmt.Errorf("invalid remote static key length: %d", len(remoteStatic))
	}

	var p handshakePayload
	if err := p.unmarshal(data); err != nil {
		return nil, "", err
	}

	pub, err := crypto.UnmarshalPublicKey(p.IdentityKey)
	if err != nil {
		return nil, "", fmt.Errorf("unmarshal remote public key: %w", err)
	}

	ok, err := pub.Verify(append([]byte(payloadSigPrefix), remoteStatic...), p.IdentitySig)
	if err != nil || !ok {
		return nil, "", ErrInvalidSignature
	}

	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return nil, "", fmt.Errorf("derive peer id: %w", err)
	}
	return pub, id, nil
}

// clientHandshake 发起者：-> e；<- e, ee, s, es, payload；-> s, se, payload
func clientHandshake(conn net.Conn, hs *noise.HandshakeState, payload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(conn, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	msg2, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	remotePayload, _, _, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	msg3, cs1, cs2, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(conn, msg3); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 3: %w", err)
	}

	// 发起者：cs1 发送，cs2 接收
	return cs1, cs2, remotePayload, nil
}

// serverHandshake 响应者：<- e；-> e, ee, s, es, payload；<- s, se, payload
func serverHandshake(conn net.Conn, hs *noise.HandshakeState, payload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err = hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(conn, msg2); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg3, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	remotePayload, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 3: %w", err)
	}

	// 响应者方向相反
	return cs2, cs1, remotePayload, nil
}

// ============================================================================
//                              密钥转换
// ============================================================================

// staticKeypair 由 Ed25519 身份密钥派生 Curve25519 静态密钥对
func staticKeypair(priv crypto.PrivKey) (noise.DHKey, error) {
	if priv.Type() != crypto.Ed25519 {
		return noise.DHKey{}, fmt.Errorf("noise: unsupported key type %s", priv.Type())
	}
	raw, err := priv.Raw()
	if err != nil {
		return noise.DHKey{}, fmt.Errorf("get private key bytes: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return noise.DHKey{}, fmt.Errorf("invalid ed25519 private key length: %d", len(raw))
	}

	pub, err := ed25519ToCurve25519Public(raw[32:])
	if err != nil {
		return noise.DHKey{}, err
	}
	return noise.DHKey{Private: ed25519ToCurve25519Private(raw[:32]), Public: pub}, nil
}

// ed25519ToCurve25519Private SHA-512(seed) 前 32 字节并 clamp（RFC 7748）
func ed25519ToCurve25519Private(seed []byte) []byte {
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return h[:32]
}

// ed25519ToCurve25519Public Edwards -> Montgomery：u = (1 + y) / (1 - y)
func ed25519ToCurve25519Public(edPub []byte) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	return point.BytesMontgomery(), nil
}

// ============================================================================
//                              帧
// ============================================================================

// writeFrame 写入 2 字节长度 + 数据，一次 Write 完成
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("noise frame too large: %d", len(data))
	}
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame 读取 2 字节长度 + 数据
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	data := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
