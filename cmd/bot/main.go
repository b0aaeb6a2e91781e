package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bio065/biobot/internal/api"
	"github.com/bio065/biobot/internal/bot"
	"github.com/bio065/biobot/internal/middleware"
	"github.com/bio065/biobot/internal/repository"
	"github.com/bio065/biobot/internal/service"
	"github.com/bio065/biobot/pkg/auth"
	"github.com/bio065/biobot/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		zapLogger.Fatal("Failed to initialize bot API", zap.Error(err))
	}
	botAPI.Debug = cfg.Telegram.Debug

	channel, err := bot.ParseChannel(cfg.Telegram.RequiredChannel)
	if err != nil {
		zapLogger.Fatal("Invalid required channel", zap.Error(err))
	}

	hub := service.NewHub()
	checker := bot.NewMembershipChecker(botAPI, channel)
	notifier := bot.NewNotifier(botAPI)

	registrationService := service.NewRegistrationService(repo)
	gateService := service.NewGateService(checker, registrationService, notifier, hub)
	userService := service.NewUserService(repo)
	svc := service.NewService(userService, gateService)

	telegramAuth := auth.NewTelegramAuth(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	authorization := middleware.NewAuthorization(cfg.Telegram.AdminIDs)

	router := gin.New()
	router.Use(gin.Recovery())

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, svc, telegramAuth, authorization)
	api.NewEventRoutes(a, hub, telegramAuth, authorization)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		zapLogger.Info("Starting admin API server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	tgBot := bot.New(botAPI, svc, bot.Config{
		ChannelURL: cfg.Telegram.ChannelURL,
		AdminIDs:   cfg.Telegram.AdminIDs,
	})
	tgBot.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down server", zap.Error(err))
	}
}
