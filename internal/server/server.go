// Package server exposes the HTTP API: purchase intake, member and rank
// queries, pool operations and the founder admin surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uplinehq/upline/internal/clock"
	"github.com/uplinehq/upline/internal/commission"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	"github.com/uplinehq/upline/internal/config"
	"github.com/uplinehq/upline/internal/events"
	"github.com/uplinehq/upline/internal/globalpool"
	globalpooldomain "github.com/uplinehq/upline/internal/globalpool/domain"
	"github.com/uplinehq/upline/internal/member"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	"github.com/uplinehq/upline/internal/purchase"
	purchasedomain "github.com/uplinehq/upline/internal/purchase/domain"
	"github.com/uplinehq/upline/internal/rank"
	rankdomain "github.com/uplinehq/upline/internal/rank/domain"
	"github.com/uplinehq/upline/internal/volume"
	volumedomain "github.com/uplinehq/upline/internal/volume/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	events.Module,
	member.Module,
	purchase.Module,
	commission.Module,
	volume.Module,
	rank.Module,
	globalpool.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	memberSvc     memberdomain.Service
	purchaseSvc   purchasedomain.Service
	commissionSvc commissiondomain.Service
	volumeSvc     volumedomain.Service
	rankSvc       rankdomain.Service
	poolSvc       globalpooldomain.Service
	virtualClock  *clock.VirtualClock
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	MemberSvc     memberdomain.Service
	PurchaseSvc   purchasedomain.Service
	CommissionSvc commissiondomain.Service
	VolumeSvc     volumedomain.Service
	RankSvc       rankdomain.Service
	PoolSvc       globalpooldomain.Service
	VirtualClock  *clock.VirtualClock `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		memberSvc:     p.MemberSvc,
		purchaseSvc:   p.PurchaseSvc,
		commissionSvc: p.CommissionSvc,
		volumeSvc:     p.VolumeSvc,
		rankSvc:       p.RankSvc,
		poolSvc:       p.PoolSvc,
		virtualClock:  p.VirtualClock,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/members", s.registerMember)
	api.GET("/members/:id", s.getMember)
	api.GET("/members/:id/rank", s.getActiveRank)
	api.GET("/members/:id/qualification", s.getQualification)
	api.GET("/members/:id/pool-qualification", s.getPoolQualification)
	api.GET("/members/:id/branches", s.getBranches)
	api.POST("/members/:id/transfers", s.transferBalance)

	api.POST("/purchases", s.createPurchase)
	api.POST("/purchases/:id/process", s.processPurchase)

	api.GET("/pools", s.listPools)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/v1")

	admin.POST("/ranks/check", s.checkAllRanks)
	admin.POST("/ranks/assign", s.assignRank)
	admin.POST("/pool/calculate", s.calculatePool)
	admin.POST("/pool/distribute", s.distributePool)
	admin.POST("/volumes/reset", s.resetVolumes)
	admin.POST("/stats/snapshot", s.snapshotStats)

	if s.cfg.UseVirtualClock() && s.virtualClock != nil {
		admin.POST("/clock", s.setVirtualClock)
	}
}
