package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/api/handler"
	"github.com/open-replykit/replykit/internal/api/middleware"
	"github.com/open-replykit/replykit/internal/app"
	"github.com/open-replykit/replykit/internal/config"
	"github.com/open-replykit/replykit/internal/logger"
	"github.com/open-replykit/replykit/internal/meta"
	"github.com/open-replykit/replykit/internal/server"
	"github.com/open-replykit/replykit/internal/service/canned"
	channelSvc "github.com/open-replykit/replykit/internal/service/channel"
	"github.com/open-replykit/replykit/internal/service/template"
	"github.com/open-replykit/replykit/internal/storage"
	"github.com/open-replykit/replykit/internal/webhook"
)

func main() {
	cfg := config.Load()

	logr, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logr.Sync()

	logr.Info("iniciando aplicação",
		zap.String("env", cfg.App.Env),
		zap.String("log_level", cfg.Log.Level),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Storage.Driver),
	)

	repos, err := storage.NewRepositories(cfg, logr)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	metaClient := meta.NewClient(cfg.Meta, logr)

	logr.Debug("inicializando serviços")
	creationService := template.NewCreationService(metaClient, repos.Canned, logr)
	deletionService := template.NewDeletionService(metaClient, logr)
	cannedService := canned.NewService(repos.Canned, repos.Channel, creationService, deletionService, logr)
	channelService := channelSvc.NewService(repos.Channel, metaClient, cfg.App.BaseURL, logr)
	logr.Debug("serviços inicializados")

	logr.Info("inicializando reconciliação de webhooks")
	reconciler := webhook.NewReconciler(repos.Canned, logr)
	webhookPool := webhook.NewPool(repos.EventQueue, reconciler, logr, cfg.Reconciler.Workers)
	webhookPool.Start(context.Background())
	logr.Info("webhook pool iniciada", zap.Int("workers", cfg.Reconciler.Workers))

	cannedHandler := handler.NewCannedHandler(cannedService, logr)
	channelHandler := handler.NewChannelHandler(channelService, logr)
	webhookHandler := handler.NewWhatsAppWebhookHandler(repos.Channel, repos.EventQueue, logr)
	healthHandler := handler.NewHealthHandler()

	rateLimitOpts := middleware.RateLimitOption{
		Enabled:  cfg.RateLimit.Enabled,
		Requests: cfg.RateLimit.Requests,
		Window:   time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		Prefix:   cfg.RateLimit.Prefix,
		Logger:   logr,
		Limiter:  repos.RateLimiter,
	}

	router := server.NewRouter(server.Options{
		Env:            cfg.App.Env,
		AuthSecret:     cfg.JWT.Secret,
		HealthHandler:  healthHandler,
		CannedHandler:  cannedHandler,
		ChannelHandler: channelHandler,
		WebhookHandler: webhookHandler,
		RateLimit:      rateLimitOpts,
	})

	logr.Debug("criando aplicação")
	application := app.New(cfg, logr, router)
	logr.Info("aplicação criada, iniciando servidor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := application.Run(context.Background()); err != nil {
			logr.Error("servidor finalizado com erro", zap.Error(err))
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logr.Info("sinal de encerramento recebido",
			zap.String("signal", "SIGINT/SIGTERM"),
		)
	case err := <-errCh:
		if err != nil {
			logr.Error("servidor finalizado com erro", zap.Error(err))
		} else {
			logr.Info("servidor finalizado normalmente")
		}
	}

	logr.Info("iniciando shutdown graceful")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	webhookPool.Stop()
	logr.Info("webhook pool encerrada")

	if repos.RedisClient != nil {
		if err := repos.RedisClient.Close(); err != nil {
			logr.Warn("erro ao fechar conexão Redis", zap.Error(err))
		} else {
			logr.Info("conexão Redis fechada")
		}
	}

	if err := application.Shutdown(shutdownCtx); err != nil {
		logr.Error("erro ao encerrar servidor", zap.Error(err))
	} else {
		logr.Info("servidor encerrado com sucesso")
	}
}
