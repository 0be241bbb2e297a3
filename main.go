package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sun2004ny/bada-builder-sub003/internal/config"
	"github.com/sun2004ny/bada-builder-sub003/internal/db"
	"github.com/sun2004ny/bada-builder-sub003/internal/handlers"
	"github.com/sun2004ny/bada-builder-sub003/internal/middleware"
	"github.com/sun2004ny/bada-builder-sub003/internal/observability"
	"github.com/sun2004ny/bada-builder-sub003/internal/rabbitmq"
	"github.com/sun2004ny/bada-builder-sub003/internal/repositories"
	"github.com/sun2004ny/bada-builder-sub003/internal/telemetry"
	"github.com/sun2004ny/bada-builder-sub003/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.OTLPEndpoint, "listing-chat")
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	logger.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher))

	observability.SetPublisher(publisher)

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()
	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, hub, publisher)
	socketHandler := ws.NewSocketHandler(hub, chatRepo, cfg.JWTSecret)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.listing_chat", "listing-chat", cfg.Env)

	if cfg.Env != "dev" && cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("listing-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/chats/start", authMiddleware, chatHandler.StartChat)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostChatMessage)
	router.POST("/chats/:chat_id/read", authMiddleware, chatHandler.MarkRead)

	router.GET("/ws/chats/:chat_id", socketHandler.HandleChat)
	router.GET("/ws/feed", socketHandler.HandleFeed)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg)

	logger.Info("listing chat service listening", "addr", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
