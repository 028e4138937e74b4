package member

import (
	"github.com/uplinehq/upline/internal/member/repository"
	"github.com/uplinehq/upline/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
