package config

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("config is nil")

	// ErrNoHomeDir 既没有 IPFS_PATH 也没有 HOME
	ErrNoHomeDir = errors.New("could not determine home directory")
)
