package p2pchat

import (
	"errors"
	"fmt"
	"io"
	"os"

	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/config"
)

// Option 节点配置选项
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	// listenAddrs 覆盖配置中的监听地址
	listenAddrs []string

	// output 观察者输出（聊天消息、事件、命令结果）
	output io.Writer

	// userFxOptions 用户追加的 fx 选项
	userFxOptions []fx.Option
}

func defaultOptions() *options {
	return &options{
		config: config.NewConfig(),
		output: os.Stdout,
	}
}

// WithConfig 使用给定的完整配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return config.ErrNilConfig
		}
		o.config = cfg
		return nil
	}
}

// WithListenAddrs 设置监听地址
func WithListenAddrs(addrs ...string) Option {
	return func(o *options) error {
		if len(addrs) == 0 {
			return errors.New("no listen address given")
		}
		for _, a := range addrs {
			if _, err := ma.NewMultiaddr(a); err != nil {
				return fmt.Errorf("invalid listen address %q: %w", a, err)
			}
		}
		o.listenAddrs = addrs
		return nil
	}
}

// WithOutput 设置观察者输出，默认 os.Stdout
func WithOutput(w io.Writer) Option {
	return func(o *options) error {
		if w == nil {
			return errors.New("output writer is nil")
		}
		o.output = w
		return nil
	}
}

// WithFxOptions 追加 fx 选项，用于测试或替换模块
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
