// Package pnet 实现私有网络（预共享密钥）门控
//
// 密钥从仓库目录下的 swarm.key 读取，格式为 /key/swarm/psk/1.0.0/。
// 文件不存在表示开放网络；存在时每条原始连接在任何协商之前
// 先经过 XSalsa20 握手，双方密钥不一致的连接在协商阶段失败。
package pnet

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("core/pnet")
