package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	catalogdomain "github.com/camphq/camppay/internal/catalog/domain"
	"github.com/camphq/camppay/internal/clock"
	"github.com/camphq/camppay/internal/config"
	gatewaydomain "github.com/camphq/camppay/internal/gateway/domain"
	"github.com/camphq/camppay/internal/observability"
	obsmiddleware "github.com/camphq/camppay/internal/observability/logger"
	obstracing "github.com/camphq/camppay/internal/observability/tracing"
	registrationdomain "github.com/camphq/camppay/internal/registration/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine          *gin.Engine
	cfg             config.Config
	clock           clock.Clock
	catalogSvc      catalogdomain.Service
	registrationSvc registrationdomain.Service
	gateway         gatewaydomain.Client
	submitLimiter   *rateLimiter
	log             *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Clock           clock.Clock
	CatalogSvc      catalogdomain.Service
	RegistrationSvc registrationdomain.Service
	Gateway         gatewaydomain.Client
	Log             *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		clock:           p.Clock,
		catalogSvc:      p.CatalogSvc,
		registrationSvc: p.RegistrationSvc,
		gateway:         p.Gateway,
		submitLimiter:   newRateLimiter(10, time.Minute),
		log:             p.Log.Named("server"),
	}

	svc.registerAPIRoutes()
	svc.registerPaymentRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.GET("/tracks", s.ListTracks)
	api.GET("/tracks/:id", s.GetTrack)
	api.GET("/tracks/:id/eligibility", s.GetEligibility)
	api.POST("/registrations", s.rateLimited(s.submitLimiter), s.SubmitRegistration)
}

func (s *Server) registerPaymentRoutes() {
	payment := s.engine.Group("/payment")
	payment.GET("/return", s.PaymentReturn)
	payment.POST("/ipn", s.PaymentIPN)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/api")
	admin.GET("/registrations", s.ListRegistrations)
}
