package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/open-replykit/replykit/internal/api/handler"
	"github.com/open-replykit/replykit/internal/api/middleware"
)

type Options struct {
	Env            string
	AuthSecret     string
	HealthHandler  *handler.HealthHandler
	CannedHandler  *handler.CannedHandler
	ChannelHandler *handler.ChannelHandler
	WebhookHandler *handler.WhatsAppWebhookHandler
	RateLimit      middleware.RateLimitOption
}

func NewRouter(opts Options) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		MaxAge:       12 * time.Hour,
	}))

	api := router.Group("/api")

	opts.HealthHandler.Register(api)

	// Webhooks ficam fora do grupo autenticado: a Meta não manda JWT, a
	// verificação é pelo token do handshake.
	if opts.WebhookHandler != nil {
		opts.WebhookHandler.Register(api)
	}

	protected := api.Group("")
	if opts.RateLimit.Enabled {
		protected.Use(middleware.RateLimit(opts.RateLimit))
	}
	protected.Use(middleware.Auth(opts.AuthSecret))

	opts.CannedHandler.Register(protected)
	if opts.ChannelHandler != nil {
		opts.ChannelHandler.Register(protected)
	}

	return router
}
