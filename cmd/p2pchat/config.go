package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/dep2p/go-p2pchat/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// EnvListen 覆盖监听地址的环境变量（逗号分隔）
const EnvListen = "P2PCHAT_LISTEN"

// cliFlags 命令行参数
//
// 优先级（从高到低）：命令行参数 > 环境变量 > 配置文件 > 默认值。
type cliFlags struct {
	configFile string
	listen     string
	topic      string
	agent      string
}

func registerFlags(fs *flag.FlagSet) *cliFlags {
	f := &cliFlags{}
	fs.StringVar(&f.configFile, "config", "", "配置文件路径（JSON）")
	fs.StringVar(&f.listen, "listen", "", "监听地址，逗号分隔（默认 "+config.DefaultListenAddr+"）")
	fs.StringVar(&f.topic, "topic", "", "启动时订阅的主题（默认 chat）")
	fs.StringVar(&f.agent, "agent", "", "identify 中上报的 agent version")
	return f
}

// buildConfig 依次应用配置文件、环境变量和命令行参数
//
// 仓库目录在此解析并写回配置，之后各模块使用同一个目录。
func buildConfig(f *cliFlags, fs *flag.FlagSet, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.NewConfig()
	if f.configFile != "" {
		var err error
		cfg, err = config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg, lookup)

	if isFlagSet(fs, "listen") {
		cfg.Transport.ListenAddrs = splitAndTrim(f.listen, ",")
	}
	if isFlagSet(fs, "topic") {
		cfg.Chat.Topic = f.topic
	}
	if isFlagSet(fs, "agent") {
		cfg.Identify.AgentVersion = f.agent
	}

	repo, err := cfg.Pnet.RepoPathOrResolve(lookup)
	if err != nil {
		return nil, err
	}
	cfg.Pnet.RepoPath = repo

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖
//
// 支持的环境变量：
//   - P2PCHAT_LISTEN: 监听地址（逗号分隔）
//
// IPFS_PATH 与 HOME 在解析仓库目录时读取，日志相关变量由 logger 包读取。
func applyEnvOverrides(cfg *config.Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvListen); ok && strings.TrimSpace(v) != "" {
		cfg.Transport.ListenAddrs = splitAndTrim(v, ",")
	}
}

// ============================================================================
//                              辅助函数
// ============================================================================

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
