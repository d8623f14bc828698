package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-p2pchat/internal/app/behaviour"
	"github.com/dep2p/go-p2pchat/internal/core/swarm"
	"github.com/dep2p/go-p2pchat/internal/util/addrutil"
)

// maxLineSize 单行输入上限
const maxLineSize = 1 << 20

// Network 事件循环需要的网络能力，*swarm.Swarm 满足此接口
type Network interface {
	LocalPeer() peer.ID
	ListenAddresses() []ma.Multiaddr
	Events() <-chan swarm.Event
}

// Behaviour 命令面与事件处理，*behaviour.Behaviour 满足此接口
type Behaviour interface {
	Subscribe(topic string) bool
	Publish(topic string, data []byte)
	Handle(ev behaviour.Event)
}

// Option 驱动器选项
type Option func(*Driver)

// WithInput 设置命令输入，默认 os.Stdin
func WithInput(r io.Reader) Option {
	return func(d *Driver) { d.in = r }
}

// WithOutput 设置事件与命令结果输出，默认 os.Stdout
func WithOutput(w io.Writer) Option {
	return func(d *Driver) { d.out = w }
}

// WithErrOutput 设置命令诊断输出，默认 os.Stderr
func WithErrOutput(w io.Writer) Option {
	return func(d *Driver) { d.errOut = w }
}

// Driver 会话事件循环
type Driver struct {
	network   Network
	behaviour Behaviour

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// announced 监听地址是否已输出
	announced bool
}

// New 创建驱动器
func New(network Network, b Behaviour, opts ...Option) *Driver {
	d := &Driver{
		network:   network,
		behaviour: b,
		in:        os.Stdin,
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run 运行事件循环直到输入结束、网络事件流关闭或 ctx 取消
//
// 输入读取在独立 goroutine 中进行；ctx 取消后该 goroutine
// 可能仍阻塞在 Read 上，直到输入源关闭。
func (d *Driver) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := make(chan []string)
	readErr := make(chan error, 1)
	go readLines(ctx, d.in, batches, readErr)

	events := d.network.Events()
	for {
		// 1. 输入
		for drained := false; !drained; {
			select {
			case batch := <-batches:
				d.applyAll(batch)
			case err := <-readErr:
				return err
			default:
				drained = true
			}
		}

		// 2. 网络事件
		for drained := false; !drained; {
			select {
			case ev, ok := <-events:
				if !ok {
					log.Info("网络事件流已关闭")
					return nil
				}
				d.handleEvent(ev)
			default:
				drained = true
			}
		}

		// 3. 网络源空闲
		d.announce()

		// 4. 等待
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch := <-batches:
			d.applyAll(batch)
		case err := <-readErr:
			return err
		case ev, ok := <-events:
			if !ok {
				log.Info("网络事件流已关闭")
				return nil
			}
			d.handleEvent(ev)
		}
	}
}

func (d *Driver) applyAll(batch []string) {
	for _, line := range batch {
		d.apply(line)
	}
}

func (d *Driver) handleEvent(ev swarm.Event) {
	if be, ok := ev.(behaviour.Event); ok {
		d.behaviour.Handle(be)
		return
	}
	fmt.Fprintln(d.out, ev)
}

// announce 首次空闲且有监听地址时输出可拨号地址
func (d *Driver) announce() {
	if d.announced {
		return
	}
	addrs := d.network.ListenAddresses()
	if len(addrs) == 0 {
		return
	}
	local := d.network.LocalPeer()
	for _, addr := range addrs {
		fmt.Fprintf(d.out, "Address %s\n", addrutil.WithPeerID(addr, local))
	}
	d.announced = true
}

// readLines 按批读取输入
//
// 每批包含一行阻塞读到的输入，以及此时缓冲区中已经完整的后续行，
// 同一次写入的多行命令因此在同一轮内全部处理。
// 输入结束时向 errc 发送 ErrStdinClosed，读取失败时发送包装后的错误。
func readLines(ctx context.Context, r io.Reader, batches chan<- []string, errc chan<- error) {
	br := bufio.NewReaderSize(r, 4096)
	for {
		batch, err := readBatch(br)
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				errc <- ErrStdinClosed
			} else {
				errc <- fmt.Errorf("read stdin: %w", err)
			}
			return
		}
	}
}

func readBatch(br *bufio.Reader) ([]string, error) {
	var batch []string
	for {
		line, err := readLine(br)
		if err != nil {
			return batch, err
		}
		batch = append(batch, line)
		if !hasBufferedLine(br) {
			return batch, nil
		}
	}
}

// readLine 读取一行并去掉行尾 \n 与 \r；输入末尾没有换行的残行照常返回
func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if len(line)+len(chunk) > maxLineSize {
			return "", ErrLineTooLong
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return string(trimEOL(line)), nil
		case errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF) && len(line) > 0:
			return string(trimEOL(line)), nil
		default:
			return "", err
		}
	}
}

func hasBufferedLine(br *bufio.Reader) bool {
	n := br.Buffered()
	if n == 0 {
		return false
	}
	buf, _ := br.Peek(n)
	return bytes.IndexByte(buf, '\n') >= 0
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
