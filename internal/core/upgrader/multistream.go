package upgrader

import (
	"fmt"
	"io"

	mss "github.com/multiformats/go-multistream"
)

// negotiate 使用 multistream-select 协商单个协议
//
// 服务器端使用 MultistreamMuxer.Negotiate()，客户端使用 SelectProtoOrFail()。
// 截止时间由 Upgrade 统一设置在底层连接上。
func negotiate(rwc io.ReadWriteCloser, proto string, isServer bool) error {
	if isServer {
		muxer := mss.NewMultistreamMuxer[string]()
		muxer.AddHandler(proto, nil)

		selected, _, err := muxer.Negotiate(rwc)
		if err != nil {
			return fmt.Errorf("%w: server %s: %w", ErrNegotiationFailed, proto, err)
		}
		if selected != proto {
			return fmt.Errorf("%w: negotiated %s, want %s", ErrNegotiationFailed, selected, proto)
		}
		return nil
	}

	if err := mss.SelectProtoOrFail(proto, rwc); err != nil {
		return fmt.Errorf("%w: client %s: %w", ErrNegotiationFailed, proto, err)
	}
	return nil
}
