package migration

import (
	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	"github.com/uplinehq/upline/internal/config"
	globalpooldomain "github.com/uplinehq/upline/internal/globalpool/domain"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	purchasedomain "github.com/uplinehq/upline/internal/purchase/domain"
	rankdomain "github.com/uplinehq/upline/internal/rank/domain"
	"github.com/uplinehq/upline/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// The versioned SQL targets postgres. Other dialects (mysql,
			// sqlite in dev) derive the schema from the models.
			if err := conn.AutoMigrate(
				&memberdomain.Member{},
				&purchasedomain.Purchase{},
				&commissiondomain.Bonus{},
				&rankdomain.RankHistory{},
				&rankdomain.MonthlyStats{},
				&globalpooldomain.GlobalPool{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureFounder(conn, node, cfg.FounderChatID)
	}),
)
