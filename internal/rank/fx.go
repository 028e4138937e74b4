package rank

import (
	"github.com/uplinehq/upline/internal/rank/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rank",
	fx.Provide(service.New),
)
