package globalpool

import (
	"github.com/uplinehq/upline/internal/globalpool/service"
	"go.uber.org/fx"
)

var Module = fx.Module("globalpool",
	fx.Provide(service.New),
)
