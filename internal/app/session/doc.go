// Package session 驱动聊天会话
//
// Driver 是进程内唯一的事件循环：标准输入的命令行与网络事件流
// 都由它消费，命令面（订阅、发布）也只由它调用。
//
// 每一轮：
//
//  1. 取尽当前可读的输入行并逐行执行命令
//  2. 取尽当前可读的网络事件，协议事件交给 Behaviour.Handle，
//     其余 swarm 事件原样输出
//  3. 网络源空闲且已有监听地址时，首次输出 "Address <addr>/ipfs/<id>"
//  4. 阻塞等待任一来源就绪
//
// 输入结束返回 ErrStdinClosed；网络事件流关闭时正常返回 nil。
package session

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("app/session")
