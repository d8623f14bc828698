package config

import (
	"errors"
	"path/filepath"
)

// 私有网络相关常量
const (
	// EnvIPFSPath 覆盖默认仓库目录的环境变量
	EnvIPFSPath = "IPFS_PATH"

	// SwarmKeyFile 仓库目录下的预共享密钥文件名
	SwarmKeyFile = "swarm.key"
)

// PnetConfig 私有网络配置
type PnetConfig struct {
	// RepoPath 仓库目录，为空时按 IPFS_PATH / $HOME/.ipfs 解析
	RepoPath string `json:"repo_path"`

	// KeyFile 密钥文件名（相对 RepoPath）或绝对路径
	KeyFile string `json:"key_file"`
}

// DefaultPnetConfig 返回默认私有网络配置
func DefaultPnetConfig() PnetConfig {
	return PnetConfig{KeyFile: SwarmKeyFile}
}

// Validate 验证私有网络配置
func (c PnetConfig) Validate() error {
	if c.KeyFile == "" {
		return errors.New("key file must not be empty")
	}
	return nil
}

// KeyPath 返回密钥文件的完整路径
func (c PnetConfig) KeyPath(repoPath string) string {
	if filepath.IsAbs(c.KeyFile) {
		return c.KeyFile
	}
	return filepath.Join(repoPath, c.KeyFile)
}

// ResolveIPFSPath 解析仓库目录
//
// 优先使用 IPFS_PATH，否则为 $HOME/.ipfs；两者都没有时返回 ErrNoHomeDir。
// lookup 一般传 os.LookupEnv。
func ResolveIPFSPath(lookup func(string) (string, bool)) (string, error) {
	if p, ok := lookup(EnvIPFSPath); ok {
		return p, nil
	}
	home, ok := lookup("HOME")
	if !ok {
		return "", ErrNoHomeDir
	}
	return filepath.Join(home, ".ipfs"), nil
}

// RepoPathOrResolve 返回配置的仓库目录，未配置时解析环境
func (c PnetConfig) RepoPathOrResolve(lookup func(string) (string, bool)) (string, error) {
	if c.RepoPath != "" {
		return c.RepoPath, nil
	}
	return ResolveIPFSPath(lookup)
}
