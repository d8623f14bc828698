package identify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/crypto"
	ma "github.com/multiformats/go-multiaddr"
	"google.golang.org/protobuf/encoding/protowire"
)

// Identify 消息字段号
const (
	fieldPublicKey       protowire.Number = 1
	fieldListenAddrs     protowire.Number = 2
	fieldProtocols       protowire.Number = 3
	fieldObservedAddr    protowire.Number = 4
	fieldProtocolVersion protowire.Number = 5
	fieldAgentVersion    protowire.Number = 6
)

// ErrMalformedMessage 消息格式错误
var ErrMalformedMessage = errors.New("identify: malformed message")

// Info 节点身份信息
type Info struct {
	PublicKey       crypto.PubKey
	ListenAddrs     []ma.Multiaddr
	Protocols       []string
	ObservedAddr    ma.Multiaddr
	ProtocolVersion string
	AgentVersion    string
}

// String 返回展示形式
func (i *Info) String() string {
	addrs := make([]string, len(i.ListenAddrs))
	for n, a := range i.ListenAddrs {
		addrs[n] = a.String()
	}
	observed := ""
	if i.ObservedAddr != nil {
		observed = i.ObservedAddr.String()
	}
	return fmt.Sprintf(
		"IdentifyInfo { protocol_version: %q, agent_version: %q, listen_addrs: [%s], protocols: [%s], observed_addr: %s }",
		i.ProtocolVersion, i.AgentVersion,
		strings.Join(addrs, ", "), strings.Join(i.Protocols, ", "), observed)
}

// Marshal 编码为 protobuf
func (i *Info) Marshal() ([]byte, error) {
	var b []byte
	if i.PublicKey != nil {
		key, err := crypto.MarshalPublicKey(i.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("marshal public key: %w", err)
		}
		b = protowire.AppendTag(b, fieldPublicKey, protowire.BytesType)
		b = protowire.AppendBytes(b, key)
	}
	for _, a := range i.ListenAddrs {
		b = protowire.AppendTag(b, fieldListenAddrs, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Bytes())
	}
	for _, p := range i.Protocols {
		b = protowire.AppendTag(b, fieldProtocols, protowire.BytesType)
		b = protowire.AppendString(b, p)
	}
	if i.ObservedAddr != nil {
		b = protowire.AppendTag(b, fieldObservedAddr, protowire.BytesType)
		b = protowire.AppendBytes(b, i.ObservedAddr.Bytes())
	}
	if i.ProtocolVersion != "" {
		b = protowire.AppendTag(b, fieldProtocolVersion, protowire.BytesType)
		b = protowire.AppendString(b, i.ProtocolVersion)
	}
	if i.AgentVersion != "" {
		b = protowire.AppendTag(b, fieldAgentVersion, protowire.BytesType)
		b = protowire.AppendString(b, i.AgentVersion)
	}
	return b, nil
}

// Unmarshal 解码 protobuf，未知字段跳过
//
// 无法解析的地址被忽略，公钥格式错误则整条消息无效。
func Unmarshal(b []byte) (*Info, error) {
	info := &Info{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldPublicKey:
			pub, err := crypto.UnmarshalPublicKey(v)
			if err != nil {
				return nil, fmt.Errorf("%w: public key: %v", ErrMalformedMessage, err)
			}
			info.PublicKey = pub
		case fieldListenAddrs:
			if a, err := ma.NewMultiaddrBytes(v); err == nil {
				info.ListenAddrs = append(info.ListenAddrs, a)
			}
		case fieldProtocols:
			info.Protocols = append(info.Protocols, string(v))
		case fieldObservedAddr:
			if a, err := ma.NewMultiaddrBytes(v); err == nil {
				info.ObservedAddr = a
			}
		case fieldProtocolVersion:
			info.ProtocolVersion = string(v)
		case fieldAgentVersion:
			info.AgentVersion = string(v)
		}
	}
	return info, nil
}
