package purchase

import (
	"github.com/uplinehq/upline/internal/purchase/repository"
	"github.com/uplinehq/upline/internal/purchase/service"
	"go.uber.org/fx"
)

var Module = fx.Module("purchase",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
