package noise

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// 字段编号与 libp2p NoiseHandshakePayload 一致
const (
	fieldIdentityKey protowire.Number = 1
	fieldIdentitySig protowire.Number = 2
)

// handshakePayload 握手载荷
type handshakePayload struct {
	IdentityKey []byte
	IdentitySig []byte
}

func (p *handshakePayload) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldIdentityKey, protowire.BytesType)
	b = protowire.AppendBytes(b, p.IdentityKey)
	b = protowire.AppendTag(b, fieldIdentitySig, protowire.BytesType)
	b = protowire.AppendBytes(b, p.IdentitySig)
	return b
}

// unmarshal 解析载荷，未知字段（如 extensions）跳过
func (p *handshakePayload) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.BytesType && (num == fieldIdentityKey || num == fieldIdentitySig) {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(m))
			}
			if num == fieldIdentityKey {
				p.IdentityKey = append([]byte(nil), v...)
			} else {
				p.IdentitySig = append([]byte(nil), v...)
			}
			b = b[m:]
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(m))
		}
		b = b[m:]
	}
	if len(p.IdentityKey) == 0 || len(p.IdentitySig) == 0 {
		return fmt.Errorf("%w: missing identity key or signature", ErrInvalidPayload)
	}
	return nil
}
