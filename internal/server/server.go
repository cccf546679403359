package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	checkoutdomain "github.com/smallbiznis/quotepilot/internal/checkout/domain"
	"github.com/smallbiznis/quotepilot/internal/config"
	"github.com/smallbiznis/quotepilot/internal/observability"
	obsmiddleware "github.com/smallbiznis/quotepilot/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/quotepilot/internal/observability/metrics"
	obstracing "github.com/smallbiznis/quotepilot/internal/observability/tracing"
	promotiondomain "github.com/smallbiznis/quotepilot/internal/promotion/domain"
	quotedomain "github.com/smallbiznis/quotepilot/internal/quote/domain"
	"github.com/smallbiznis/quotepilot/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/quotepilot/internal/subscription/domain"
	webhookdomain "github.com/smallbiznis/quotepilot/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	PathCreateCheckoutSession       = "/api/create-checkout-session"
	PathCreateCheckoutSessionDirect = "/api/create-checkout-session-direct"
	PathCreateQuote                 = "/api/create-quote"
	PathPromoLookup                 = "/api/promo-lookup"
	PathCreateSubscription          = "/api/create-subscription"
	PathStripeWebhook               = "/api/stripe-webhook"
)

// routeOperations names the server span of each billing route.
var routeOperations = map[string]string{
	PathCreateCheckoutSession:       "api.create_checkout_session",
	PathCreateCheckoutSessionDirect: "api.create_checkout_session_direct",
	PathCreateQuote:                 "api.create_quote",
	PathPromoLookup:                 "api.promo_lookup",
	PathCreateSubscription:          "api.create_subscription",
	PathStripeWebhook:               "webhook.stripe",
}

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

// APIRoutes mounts the synchronous billing endpoints.
var APIRoutes = fx.Invoke(func(s *Server) { s.RegisterAPIRoutes() })

// WebhookRoutes mounts the provider webhook receiver.
var WebhookRoutes = fx.Invoke(func(s *Server) { s.RegisterWebhookRoutes() })

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		Operations:      routeOperations,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.NoMethod(func(c *gin.Context) { AbortWithError(c, ErrMethodNotAllowed) })
	r.NoRoute(func(c *gin.Context) { AbortWithError(c, ErrNotFound) })

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
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
	log           *zap.Logger
	quoteSvc      quotedomain.Service
	checkoutSvc   checkoutdomain.Service
	promotionSvc  promotiondomain.Service
	subscriptions subscriptiondomain.Service
	webhookSvc    webhookdomain.Service
	limiter       *ratelimit.PublicLimiter
	obsMetrics    *obsmetrics.Metrics
}

// ServerParams marks the domain services optional so a binary can carry
// only the routes it mounts.
type ServerParams struct {
	fx.In

	Engine        *gin.Engine
	Config        config.Config
	Log           *zap.Logger
	Quotes        quotedomain.Service        `optional:"true"`
	Checkout      checkoutdomain.Service     `optional:"true"`
	Promotions    promotiondomain.Service    `optional:"true"`
	Subscriptions subscriptiondomain.Service `optional:"true"`
	Webhooks      webhookdomain.Service      `optional:"true"`
	Limiter       *ratelimit.PublicLimiter   `optional:"true"`
	Metrics       *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Engine,
		cfg:           p.Config,
		log:           p.Log.Named("http.server"),
		quoteSvc:      p.Quotes,
		checkoutSvc:   p.Checkout,
		promotionSvc:  p.Promotions,
		subscriptions: p.Subscriptions,
		webhookSvc:    p.Webhooks,
		limiter:       p.Limiter,
		obsMetrics:    p.Metrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	limited := s.PublicRateLimit()

	checkout := []gin.HandlerFunc{CORS(), limited}
	s.engine.OPTIONS(PathCreateCheckoutSession, CORS())
	s.engine.POST(PathCreateCheckoutSession, append(checkout, s.CreateCheckoutSession)...)
	s.engine.OPTIONS(PathCreateCheckoutSessionDirect, CORS())
	s.engine.GET(PathCreateCheckoutSessionDirect, append(checkout, s.CreateCheckoutSessionDirect)...)
	s.engine.POST(PathCreateCheckoutSessionDirect, append(checkout, s.CreateCheckoutSessionDirect)...)

	s.engine.POST(PathCreateQuote, limited, s.CreateQuote)
	s.engine.GET(PathPromoLookup, limited, s.PromoLookup)
	s.engine.POST(PathCreateSubscription, s.CreateSubscription)
}

func (s *Server) RegisterWebhookRoutes() {
	s.engine.POST(PathStripeWebhook, s.StripeWebhook)
}
