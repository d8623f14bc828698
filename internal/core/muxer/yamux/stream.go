package yamux

import (
	"sync"

	"github.com/hashicorp/yamux"
)

// Stream 复用流
type Stream struct {
	*yamux.Stream

	closeOnce sync.Once
	onClose   func()
}

func newStream(s *yamux.Stream, onClose func()) *Stream {
	return &Stream{Stream: s, onClose: onClose}
}

// Close 关闭流（半关闭写方向，等待对端关闭后释放）
func (s *Stream) Close() error {
	s.closeOnce.Do(s.onClose)
	return s.Stream.Close()
}

// ID 返回流 ID
func (s *Stream) ID() uint32 {
	return s.Stream.StreamID()
}
