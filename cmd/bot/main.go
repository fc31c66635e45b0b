package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/permissions"
	"xui-vpn-bot/internal/services"
	"xui-vpn-bot/internal/storage"
	"xui-vpn-bot/pkg/telegrambot"
)

func main() {
	logger := setupLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: ", err)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database: ", err)
	}
	defer store.Close()

	stateService := services.NewUserStateService(logger)
	qrService := services.NewQRService(logger)
	provisionService := services.NewProvisionService(store, cfg, logger)

	permController := permissions.NewController(cfg.Telegram.AdminIDs, provisionService, logger)

	syncService := services.NewTrafficSyncService(provisionService, cfg.SyncSpec, logger)
	if err := syncService.Start(); err != nil {
		logger.Fatal("Failed to start traffic sync: ", err)
	}
	defer syncService.Stop()

	bot, err := telegrambot.NewBot(cfg, stateService, provisionService, qrService, permController, logger)
	if err != nil {
		logger.Fatal("Failed to create bot: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	logger.Info("Starting VPN provisioning bot")
	if err := bot.Start(ctx); err != nil {
		logger.Fatal("Bot failed: ", err)
	}
}

// setupLogger sets up the logger
func setupLogger() *logrus.Logger {
	logger := logrus.New()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.Printf("Invalid log level %s, defaulting to info", logLevel)
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return logger
}
