// Package msgio 提供 uvarint 长度前缀的消息读写
package msgio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// ErrMsgTooLarge 消息长度超过上限
var ErrMsgTooLarge = errors.New("msgio: message too large")

// Reader 读取长度前缀消息
type Reader interface {
	io.Reader
	io.ByteReader
}

// NewReader 包装 r，使其同时支持按字节读取
func NewReader(r io.Reader) Reader {
	if br, ok := r.(Reader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// WriteMsg 写入一条消息：uvarint 长度 + 内容，单次 Write
func WriteMsg(w io.Writer, msg []byte) error {
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(msg)))+len(msg))
	buf = append(buf, varint.ToUvarint(uint64(len(msg)))...)
	buf = append(buf, msg...)
	_, err := w.Write(buf)
	return err
}

// ReadMsg 读取一条消息，长度超过 max 时返回 ErrMsgTooLarge
func ReadMsg(r Reader, max int) ([]byte, error) {
	n, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > uint64(max) {
		return nil, fmt.Errorf("%w: %d > %d", ErrMsgTooLarge, n, max)
	}

	msg := make([]byte, n)
	if _, err := io.ReadFull(r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return msg, nil
}
