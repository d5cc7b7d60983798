package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turrn3r/walletlink/bot"
	"github.com/turrn3r/walletlink/config"
	"github.com/turrn3r/walletlink/service"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 64 << 10

// SetupRouter sets up the Gin router. dispatcher is only used in webhook mode.
func SetupRouter(cfg config.Config, links *service.LinkService, dispatcher *bot.Dispatcher) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	if cfg.OTEL.Enabled {
		router.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	}
	router.Use(RequestID(), Logger(), Recovery(), limitBody(maxBodyBytes), Metrics())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	router.Use(corsMiddleware(cfg.CORSAllowedOrigins))

	router.NoRoute(func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	router.NoMethod(func(c *gin.Context) {
		Fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	router.GET("/health", Health(cfg.StoreBackend, cfg.Bot.Mode, links.TicketsRequired()))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers := NewLinkHandlers(links)

	api := router.Group("/api")
	api.Use(NewRateLimiter(cfg.RateRPS, cfg.RateBurst).Handler())
	{
		api.POST("/nonce", handlers.RequestNonce)
		api.POST("/link", handlers.SubmitLink)
		api.GET("/link/:user_key", handlers.GetLink)
	}

	if cfg.Bot.Mode == config.BotWebhook && dispatcher != nil {
		webhook := NewWebhookHandler(dispatcher, cfg.Bot.WebhookSecret)
		router.POST("/telegram-webhook", webhook.Handle)
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
