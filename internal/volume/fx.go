package volume

import (
	"github.com/uplinehq/upline/internal/volume/service"
	"go.uber.org/fx"
)

var Module = fx.Module("volume",
	fx.Provide(service.New),
)
