package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/uplinehq/upline/internal/clock"
	"github.com/uplinehq/upline/internal/config"
	"github.com/uplinehq/upline/internal/migration"
	"github.com/uplinehq/upline/internal/scheduler"
	"github.com/uplinehq/upline/internal/server"
	"github.com/uplinehq/upline/pkg/db"
	"github.com/uplinehq/upline/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		fx.Provide(ProvideVirtualClock),
		fx.Provide(ProvideClock),

		server.Module,
		scheduler.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func ProvideVirtualClock() *clock.VirtualClock {
	return clock.NewVirtualClock()
}

// ProvideClock picks the time source. Virtual mode lets staging walk the
// deployment across month boundaries through the admin clock endpoint.
func ProvideClock(cfg config.Config, vc *clock.VirtualClock) clock.Clock {
	if cfg.UseVirtualClock() {
		return vc
	}
	return clock.SystemClock{}
}
