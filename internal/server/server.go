package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	generationdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/generation/domain"
	ledgerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/domain"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability"
	obsmiddleware "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability/logger"
	obsmetrics "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability/metrics"
	obstracing "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability/tracing"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
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
	generationSvc generationdomain.Service
	ledgerSvc     ledgerdomain.Service
	routerSvc     routerdomain.Service
	limiter       *ratelimit.GenerationLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	GenerationSvc generationdomain.Service
	LedgerSvc     ledgerdomain.Service
	RouterSvc     routerdomain.Service
	Limiter       *ratelimit.GenerationLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		generationSvc: p.GenerationSvc,
		ledgerSvc:     p.LedgerSvc,
		routerSvc:     p.RouterSvc,
		limiter:       p.Limiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/generations", s.createGeneration)
	v1.GET("/generations/:id", s.getGeneration)
	v1.GET("/generations", s.listGenerations)

	v1.GET("/credits/balance", s.getBalance)
	v1.GET("/credits/transactions", s.listTransactions)
	v1.POST("/credits/accounts", s.createAccount)
	v1.POST("/credits/grants", s.grantCredits)

	v1.GET("/models", s.listModels)
	v1.POST("/models", s.upsertModel)
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case isValidationError(err):
		return "validation", "invalid_request"
	case errorIs(err, ledgerdomain.ErrInsufficientFunds):
		return "domain", "insufficient_funds"
	case errorIs(err, ledgerdomain.ErrAccountNotFound),
		errorIs(err, generationdomain.ErrGenerationNotFound):
		return "domain", "not_found"
	case errorIs(err, routerdomain.ErrModelNotConfigured):
		return "domain", "model_not_configured"
	case errorIs(err, capabilitydomain.ErrProviderNotRegistered):
		return "config", "provider_not_registered"
	case errorIs(err, generationdomain.ErrLedgerInconsistency):
		return "internal", "ledger_inconsistency"
	default:
		return "internal", "internal_error"
	}
}
