// Package identify 实现节点身份识别协议
//
// identify 协议用于在连接建立后交换节点信息，包括：
//   - 公钥（须与节点 ID 一致）
//   - 支持的协议列表
//   - 监听地址与观测地址
//   - 协议版本与代理版本
//
// # 协议 ID
//
//	/ipfs/id/1.0.0
//
// # 流程
//
//  1. 连接建立 InitialDelay 后，向对端打开流
//  2. 对端写入一条长度前缀的 Identify 消息后关闭流
//  3. 校验公钥并产生 Received 事件；之后每隔 Interval 重复
//
// 回应对端请求时产生 Sent 事件，失败产生 Error 事件。
package identify

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("protocol/identify")
