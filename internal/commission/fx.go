package commission

import (
	"github.com/uplinehq/upline/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission",
	fx.Provide(service.New),
)
