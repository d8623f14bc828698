package session

import "errors"

var (
	// ErrStdinClosed 标准输入已结束
	ErrStdinClosed = errors.New("stdin closed")

	// ErrLineTooLong 单行输入超过上限
	ErrLineTooLong = errors.New("input line too long")

	// ErrEmptyLine 空行
	ErrEmptyLine = errors.New("empty line")

	// ErrExpectedTopic 命令缺少主题
	ErrExpectedTopic = errors.New("Expected topic") //nolint:stylecheck // 面向操作者的诊断文本

	// ErrExpectedMessage PUB 缺少消息
	ErrExpectedMessage = errors.New("Expected message") //nolint:stylecheck // 面向操作者的诊断文本

	// ErrUnknownCommand 既不是 PUB 也不是 SUB
	ErrUnknownCommand = errors.New("expected PUB or SUB")
)
