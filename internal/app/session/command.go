package session

import (
	"errors"
	"fmt"
	"strings"
)

// Op 命令类型
type Op int

const (
	// OpSubscribe SUB <topic>
	OpSubscribe Op = iota + 1
	// OpPublish PUB <topic> <message>
	OpPublish
)

// String 返回命令关键字
func (o Op) String() string {
	switch o {
	case OpSubscribe:
		return "SUB"
	case OpPublish:
		return "PUB"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Command 一行输入解析后的命令
type Command struct {
	Op    Op
	Topic string

	// Message 仅 OpPublish 有效，为主题之后的整行剩余内容
	Message string
}

// ParseCommand 解析一行输入
//
// 语法：
//
//	SUB <topic>
//	PUB <topic> <message>
//
// 字段以单个空格分隔；消息是主题之后的剩余部分，可以包含空格。
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Command{}, ErrEmptyLine
	}

	parts := strings.SplitN(line, " ", 3)
	var cmd Command
	switch parts[0] {
	case "SUB":
		cmd.Op = OpSubscribe
	case "PUB":
		cmd.Op = OpPublish
	default:
		return Command{}, ErrUnknownCommand
	}

	if len(parts) < 2 || parts[1] == "" {
		return Command{}, ErrExpectedTopic
	}
	cmd.Topic = parts[1]

	if cmd.Op == OpPublish {
		if len(parts) < 3 || parts[2] == "" {
			return Command{}, ErrExpectedMessage
		}
		cmd.Message = parts[2]
	}
	return cmd, nil
}

// apply 执行一行输入
//
// 解析失败写诊断到 errOut 后丢弃该行，不修改任何状态。
func (d *Driver) apply(line string) {
	cmd, err := ParseCommand(line)
	if errors.Is(err, ErrEmptyLine) {
		return
	}
	if err != nil {
		fmt.Fprintln(d.errOut, err)
		return
	}

	switch cmd.Op {
	case OpSubscribe:
		if d.behaviour.Subscribe(cmd.Topic) {
			fmt.Fprintf(d.out, "Subscribed to topic %s\n", cmd.Topic)
		} else {
			fmt.Fprintln(d.out, "Failed to subscribe to topic")
		}
	case OpPublish:
		d.behaviour.Publish(cmd.Topic, []byte(cmd.Message))
	}
}
