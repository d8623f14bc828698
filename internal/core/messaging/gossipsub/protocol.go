package gossipsub

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/peer"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-p2pchat/internal/util/msgio"
)

// ProtocolID GossipSub 协议 ID
const ProtocolID = "/meshsub/1.0.0"

// RPC 及子消息字段号
const (
	fieldRPCSubscriptions protowire.Number = 1
	fieldRPCPublish       protowire.Number = 2
	fieldRPCControl       protowire.Number = 3

	fieldSubSubscribe protowire.Number = 1
	fieldSubTopic     protowire.Number = 2

	fieldMsgFrom  protowire.Number = 1
	fieldMsgData  protowire.Number = 2
	fieldMsgSeqno protowire.Number = 3
	fieldMsgTopic protowire.Number = 4

	fieldCtrlIHave protowire.Number = 1
	fieldCtrlIWant protowire.Number = 2
	fieldCtrlGraft protowire.Number = 3
	fieldCtrlPrune protowire.Number = 4

	fieldIHaveTopic protowire.Number = 1
	fieldIHaveIDs   protowire.Number = 2
	fieldIWantIDs   protowire.Number = 1
	fieldTopicID    protowire.Number = 1
)

// ============================================================================
//                              编码
// ============================================================================

// encodeRPC 编码 RPC 为 protobuf
func encodeRPC(rpc *RPC) []byte {
	var b []byte
	for _, sub := range rpc.Subscriptions {
		var s []byte
		s = protowire.AppendTag(s, fieldSubSubscribe, protowire.VarintType)
		s = protowire.AppendVarint(s, protowire.EncodeBool(sub.Subscribe))
		s = appendString(s, fieldSubTopic, sub.Topic)
		b = appendBytes(b, fieldRPCSubscriptions, s)
	}
	for _, msg := range rpc.Publish {
		b = appendBytes(b, fieldRPCPublish, encodeMessage(msg))
	}
	if !rpc.Control.empty() {
		b = appendBytes(b, fieldRPCControl, encodeControl(rpc.Control))
	}
	return b
}

func encodeMessage(msg *Message) []byte {
	var seqno [8]byte
	binary.BigEndian.PutUint64(seqno[:], msg.Seqno)

	var b []byte
	b = appendBytes(b, fieldMsgFrom, []byte(msg.From))
	b = appendBytes(b, fieldMsgData, msg.Data)
	b = appendBytes(b, fieldMsgSeqno, seqno[:])
	b = appendString(b, fieldMsgTopic, msg.Topic)
	return b
}

func encodeControl(ctrl *ControlMessage) []byte {
	var b []byte
	for _, ih := range ctrl.IHave {
		var m []byte
		m = appendString(m, fieldIHaveTopic, ih.Topic)
		for _, id := range ih.MessageIDs {
			m = appendString(m, fieldIHaveIDs, string(id))
		}
		b = appendBytes(b, fieldCtrlIHave, m)
	}
	for _, iw := range ctrl.IWant {
		var m []byte
		for _, id := range iw.MessageIDs {
			m = appendString(m, fieldIWantIDs, string(id))
		}
		b = appendBytes(b, fieldCtrlIWant, m)
	}
	for _, g := range ctrl.Graft {
		b = appendBytes(b, fieldCtrlGraft, appendString(nil, fieldTopicID, g.Topic))
	}
	for _, p := range ctrl.Prune {
		b = appendBytes(b, fieldCtrlPrune, appendString(nil, fieldTopicID, p.Topic))
	}
	return b
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// ============================================================================
//                              解码
// ============================================================================

// decodeRPC 解码 protobuf RPC，未知字段跳过
func decodeRPC(b []byte) (*RPC, error) {
	rpc := &RPC{}
	err := consumeFields(b, func(num protowire.Number, v []byte, _ uint64) error {
		switch num {
		case fieldRPCSubscriptions:
			sub, err := decodeSubOpts(v)
			if err != nil {
				return err
			}
			rpc.Subscriptions = append(rpc.Subscriptions, sub)
		case fieldRPCPublish:
			msg, err := decodeMessage(v)
			if err != nil {
				return err
			}
			rpc.Publish = append(rpc.Publish, msg)
		case fieldRPCControl:
			ctrl, err := decodeControl(v)
			if err != nil {
				return err
			}
			rpc.Control = ctrl
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rpc, nil
}

func decodeSubOpts(b []byte) (SubOpts, error) {
	var sub SubOpts
	err := consumeFields(b, func(num protowire.Number, v []byte, x uint64) error {
		switch num {
		case fieldSubSubscribe:
			sub.Subscribe = protowire.DecodeBool(x)
		case fieldSubTopic:
			sub.Topic = string(v)
		}
		return nil
	})
	return sub, err
}

func decodeMessage(b []byte) (*Message, error) {
	msg := &Message{}
	err := consumeFields(b, func(num protowire.Number, v []byte, _ uint64) error {
		switch num {
		case fieldMsgFrom:
			id, err := peer.IDFromBytes(v)
			if err != nil {
				return fmt.Errorf("%w: from: %v", ErrMalformedRPC, err)
			}
			msg.From = id
		case fieldMsgData:
			msg.Data = append([]byte(nil), v...)
		case fieldMsgSeqno:
			if len(v) > 8 {
				return fmt.Errorf("%w: seqno of %d bytes", ErrMalformedRPC, len(v))
			}
			var seqno uint64
			for _, c := range v {
				seqno = seqno<<8 | uint64(c)
			}
			msg.Seqno = seqno
		case fieldMsgTopic:
			msg.Topic = string(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeControl(b []byte) (*ControlMessage, error) {
	ctrl := &ControlMessage{}
	err := consumeFields(b, func(num protowire.Number, v []byte, _ uint64) error {
		switch num {
		case fieldCtrlIHave:
			var ih ControlIHave
			err := consumeFields(v, func(num protowire.Number, v []byte, _ uint64) error {
				switch num {
				case fieldIHaveTopic:
					ih.Topic = string(v)
				case fieldIHaveIDs:
					ih.MessageIDs = append(ih.MessageIDs, MessageID(v))
				}
				return nil
			})
			if err != nil {
				return err
			}
			ctrl.IHave = append(ctrl.IHave, ih)
		case fieldCtrlIWant:
			var iw ControlIWant
			err := consumeFields(v, func(num protowire.Number, v []byte, _ uint64) error {
				if num == fieldIWantIDs {
					iw.MessageIDs = append(iw.MessageIDs, MessageID(v))
				}
				return nil
			})
			if err != nil {
				return err
			}
			ctrl.IWant = append(ctrl.IWant, iw)
		case fieldCtrlGraft, fieldCtrlPrune:
			var topic string
			err := consumeFields(v, func(n protowire.Number, v []byte, _ uint64) error {
				if n == fieldTopicID {
					topic = string(v)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if num == fieldCtrlGraft {
				ctrl.Graft = append(ctrl.Graft, ControlGraft{Topic: topic})
			} else {
				ctrl.Prune = append(ctrl.Prune, ControlPrune{Topic: topic})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ctrl, nil
}

// consumeFields 依次回调每个字段；bytes 字段传 v，varint 字段传 x，其它类型跳过
func consumeFields(b []byte, fn func(num protowire.Number, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedRPC, protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedRPC, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(num, v, 0); err != nil {
				return err
			}
		case protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedRPC, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(num, nil, x); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedRPC, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// ============================================================================
//                              读写
// ============================================================================

// writeRPC 写入一个长度前缀的 RPC
func writeRPC(w io.Writer, rpc *RPC) error {
	return msgio.WriteMsg(w, encodeRPC(rpc))
}

// readRPC 读取一个长度前缀的 RPC
func readRPC(r msgio.Reader, maxSize int) (*RPC, error) {
	b, err := msgio.ReadMsg(r, maxSize)
	if err != nil {
		return nil, err
	}
	return decodeRPC(b)
}
