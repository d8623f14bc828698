package pnet

import (
	"os"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/config"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// ProvideKey 按配置加载 swarm key
//
// 仓库目录无法确定（没有 IPFS_PATH 也没有 HOME）或密钥格式错误时返回错误。
func ProvideKey(input ModuleInput) (Key, error) {
	cfg := config.DefaultPnetConfig()
	if input.Config != nil {
		cfg = input.Config.Pnet
	}

	repo, err := cfg.RepoPathOrResolve(os.LookupEnv)
	if err != nil {
		return Key{}, err
	}
	return Load(cfg.KeyPath(repo))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("pnet",
		fx.Provide(ProvideKey),
	)
}
