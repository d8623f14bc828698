// Package addrutil 提供地址解析工具
//
// 用户输入的节点地址可能使用旧的 /ipfs/<id> 写法，也可能带有末尾的
// 节点标识。拨号器只接受不含节点标识的地址，因此拨号前统一规范化：
//
//	/ip4/1.2.3.4/tcp/4001/ipfs/QmXXX  →  /ip4/1.2.3.4/tcp/4001
package addrutil

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

const (
	// legacyScheme 旧的节点标识协议名
	legacyScheme = "ipfs"
	// currentScheme 当前的节点标识协议名
	currentScheme = "p2p"
)

var (
	// ErrEmptyAddress 空地址
	ErrEmptyAddress = errors.New("empty address")

	// ErrInvalidAddress 无法解析的地址
	ErrInvalidAddress = errors.New("invalid address")
)

// Normalize 规范化地址，诊断信息丢弃
func Normalize(text string) (ma.Multiaddr, error) {
	return NormalizeTo(io.Discard, text)
}

// NormalizeTo 规范化地址
//
// 按 "/" 切分后把每个 ipfs 组件替换为 p2p，再重新拼接并解析。
// 若最后一个组件是 /p2p/<id>，将其移除并向 w 写入一行说明；
// 其他末尾组件保持不变。
func NormalizeTo(w io.Writer, text string) (ma.Multiaddr, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAddress
	}

	parts := strings.Split(text, "/")
	for i, p := range parts {
		if p == legacyScheme {
			parts[i] = currentScheme
		}
	}

	addr, err := ma.NewMultiaddr(strings.Join(parts, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAddress, text, err)
	}

	rest, last := ma.SplitLast(addr)
	if last == nil || last.Protocol().Code != ma.P_P2P {
		return addr, nil
	}

	fmt.Fprintf(w, "removing peer id %s so this address can be dialed\n", last.String())
	if rest == nil {
		return nil, fmt.Errorf("%w %q: nothing left to dial", ErrInvalidAddress, text)
	}
	return rest, nil
}

// SplitPeerID 拆分地址末尾的 /p2p/<id>
//
// 没有节点标识时返回原地址和空 ID。
func SplitPeerID(addr ma.Multiaddr) (ma.Multiaddr, peer.ID) {
	if addr == nil {
		return nil, ""
	}
	rest, last := ma.SplitLast(addr)
	if last == nil || last.Protocol().Code != ma.P_P2P {
		return addr, ""
	}
	id, err := peer.Decode(last.Value())
	if err != nil {
		return addr, ""
	}
	return rest, id
}

// WithPeerID 在地址末尾追加 /ipfs/<id>，用于对外展示
func WithPeerID(addr ma.Multiaddr, id peer.ID) string {
	return fmt.Sprintf("%s/%s/%s", addr, legacyScheme, id)
}
