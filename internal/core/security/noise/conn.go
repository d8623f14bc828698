package noise

import (
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	// maxFrameSize 单帧密文上限
	maxFrameSize = 65535

	// maxPlaintext 单帧明文上限（扣除 Poly1305 tag）
	maxPlaintext = maxFrameSize - 16
)

// Conn Noise 安全连接
type Conn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	localPeer  peer.ID
	remotePeer peer.ID
	remoteKey  crypto.PubKey

	readMu  sync.Mutex
	writeMu sync.Mutex

	// readBuf 上一帧未读完的明文
	readBuf []byte
}

// Read 读取并解密
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.readBuf) == 0 {
		frame, err := readFrame(c.Conn)
		if err != nil {
			return 0, err
		}
		plaintext, err := c.recvCS.Decrypt(nil, nil, frame)
		if err != nil {
			return 0, fmt.Errorf("decrypt: %w", err)
		}
		c.readBuf = plaintext
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write 加密并写入，超过单帧上限的数据拆分成多帧
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for written < len(p) {
		end := written + maxPlaintext
		if end > len(p) {
			end = len(p)
		}

		ciphertext, err := c.sendCS.Encrypt(nil, nil, p[written:end])
		if err != nil {
			return written, fmt.Errorf("encrypt: %w", err)
		}
		if err := writeFrame(c.Conn, ciphertext); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// LocalPeer 返回本地 PeerID
func (c *Conn) LocalPeer() peer.ID { return c.localPeer }

// RemotePeer 返回对端 PeerID
func (c *Conn) RemotePeer() peer.ID { return c.remotePeer }

// RemotePublicKey 返回对端身份公钥
func (c *Conn) RemotePublicKey() crypto.PubKey { return c.remoteKey }
