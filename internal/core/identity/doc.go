package identity

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("core/identity")
