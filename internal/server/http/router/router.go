package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/metrics"
	pkgAuth "github.com/polkiloo/ordercheckout/internal/pkg/auth"
	_ "github.com/polkiloo/ordercheckout/internal/server/http/docs"
	"github.com/polkiloo/ordercheckout/internal/server/http/handlers"
	"github.com/polkiloo/ordercheckout/internal/server/http/middleware"
)

const maxInflatedBody = 1 << 20

// Params lists router dependencies.
type Params struct {
	fx.In

	Facade   handlers.CheckoutFacade
	Verifier pkgAuth.WebhookVerifier
	Logger   *slog.Logger
	Metrics  *metrics.Metrics `optional:"true"`
}

// Setup configures gin router with handlers and middleware.
func Setup(p Params) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(p.Logger, p.Metrics))
	engine.Use(middleware.DecompressRequest(maxInflatedBody))
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	authHandler := handlers.NewAuthHandler(p.Facade)
	orderHandler := handlers.NewOrderHandler(p.Facade)
	webhookHandler := handlers.NewWebhookHandler(p.Facade, p.Verifier, p.Logger)
	healthHandler := handlers.NewHealthHandler(p.Facade)

	engine.GET("/healthz", healthHandler.Check)
	if p.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(p.Metrics.Handler()))
	}
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group("/api")
	api.POST("/payments/webhook", webhookHandler.Payment)

	user := api.Group("/user")
	user.POST("/register", authHandler.Register)
	user.POST("/login", authHandler.Login)

	userAuth := user.Group("")
	userAuth.Use(middleware.AuthRequired(p.Facade))
	userAuth.POST("/orders", orderHandler.Checkout)
	userAuth.GET("/orders", orderHandler.List)
	userAuth.GET("/orders/:id", orderHandler.Get)
	userAuth.POST("/orders/:id/payment", orderHandler.RetryPayment)
	userAuth.POST("/orders/:id/cancel", orderHandler.Cancel)
	userAuth.DELETE("/orders/:id", orderHandler.Delete)

	return engine
}
