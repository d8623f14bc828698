package pnet

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	ipnet "github.com/libp2p/go-libp2p/core/pnet"
)

// KeySize 预共享密钥长度
const KeySize = 32

// Key 已加载的私有网络密钥
//
// 零值表示开放网络。
type Key struct {
	// PSK 32 字节密钥，nil 表示未启用私有网络
	PSK ipnet.PSK

	// Path 密钥文件路径（仅用于展示）
	Path string
}

// Enabled 是否启用私有网络
func (k Key) Enabled() bool { return len(k.PSK) > 0 }

// Fingerprint 返回密钥指纹，未启用时为空串
func (k Key) Fingerprint() string {
	if !k.Enabled() {
		return ""
	}
	return Fingerprint(k.PSK)
}

// Parse 解析 swarm.key 文本
//
// 支持 /key/swarm/psk/1.0.0/ 之后的 /base16/、/base64/、/bin/ 编码。
func Parse(text []byte) (ipnet.PSK, error) {
	psk, err := ipnet.DecodeV1PSK(bytes.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if len(psk) != KeySize {
		return nil, ErrKeyLength
	}
	return psk, nil
}

// Load 读取密钥文件
//
// 文件不存在返回零值 Key 和 nil；读取失败或格式错误返回错误，
// 调用方应把它当作启动失败。
func Load(path string) (Key, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 仓库目录下的固定文件
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug("未找到 swarm key，使用开放网络", "path", path)
		return Key{}, nil
	}
	if err != nil {
		return Key{}, fmt.Errorf("read swarm key %s: %w", path, err)
	}

	psk, err := Parse(data)
	if err != nil {
		return Key{}, fmt.Errorf("%s: %w", path, err)
	}
	log.Info("已加载 swarm key", "path", path)
	return Key{PSK: psk, Path: path}, nil
}
