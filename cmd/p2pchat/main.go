// Package main 提供 p2pchat 命令行入口
//
// 用法：
//
//	p2pchat [flags] [address ...]
//
// 每个参数都是要拨号的节点地址，允许旧的 /ipfs/<id> 写法。
// 启动后从标准输入读取命令：
//
//	SUB <topic>
//	PUB <topic> <message>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	p2pchat "github.com/dep2p/go-p2pchat"
	"github.com/dep2p/go-p2pchat/internal/app/session"
	"github.com/dep2p/go-p2pchat/internal/util/logger"
)

var log = logger.Logger("cmd")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run 运行节点直到输入结束、网络事件流关闭或收到退出信号
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, lookup func(string) (string, bool)) error {
	fs := flag.NewFlagSet("p2pchat", flag.ContinueOnError)
	flags := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := buildConfig(flags, fs, lookup)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "using IPFS_PATH %q\n", cfg.Pnet.RepoPath)

	node, err := p2pchat.New(p2pchat.WithConfig(cfg), p2pchat.WithOutput(stdout))
	if err != nil {
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			log.Warn("关闭节点失败", "error", err)
		}
	}()

	fmt.Fprintf(stdout, "using random peer id: %s\n", node.ID())
	if key := node.SwarmKey(); key.Enabled() {
		fmt.Fprintf(stdout, "using swarm key with fingerprint: %s\n", key.Fingerprint())
	}

	if err := node.Start(ctx); err != nil {
		return err
	}

	topic := cfg.Chat.Topic
	fmt.Fprintf(stdout, "Subscribing to %q\n", topic)
	node.Subscribe(topic)

	for _, target := range append(append([]string{}, cfg.Chat.Peers...), fs.Args()...) {
		if _, err := node.Dial(target); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Dialed %q\n", target)
	}

	err = node.Run(ctx, session.WithInput(stdin))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
