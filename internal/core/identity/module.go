package identity

import (
	"strings"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/config"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// ProvideIdentity 按配置生成随机身份
func ProvideIdentity(input ModuleInput) (*Identity, error) {
	cfg := config.DefaultIdentityConfig()
	if input.Config != nil {
		cfg = input.Config.Identity
	}
	if !strings.EqualFold(cfg.KeyType, "Ed25519") {
		return nil, ErrUnsupportedKeyType
	}

	id, err := Generate()
	if err != nil {
		return nil, err
	}
	log.Info("generated identity", "peer", id.ID())
	return id, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideIdentity),
	)
}
