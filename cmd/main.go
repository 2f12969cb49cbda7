package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"kursbot/internal/bootstrap"
	"kursbot/internal/bot"
	"kursbot/internal/config"
	cronpkg "kursbot/internal/cron"
	"kursbot/internal/middleware"
	"kursbot/internal/notify"
	"kursbot/internal/pkg/telegram"
	"kursbot/internal/referral"
	"kursbot/internal/repository"
	"kursbot/internal/router"
	"kursbot/internal/workflow"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db, cfg.Bot.AdminChat); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Telegram Bot API (direct HTTP client) ---
	botAPI := telegram.NewBotAPI(cfg.Bot.Token)

	// --- Core services ---
	notifier := notify.NewTelegramNotifier(botAPI, cfg.Bot.Username, logger)
	engine := referral.NewEngine(db, notifier, cfg.Referral.GraceWindow, logger)
	flow := workflow.NewService(db, engine, notifier, cfg.Referral, cfg.Bot.Username, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	updateDeduper, dedupeErr := middleware.NewUpdateDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		10*time.Minute,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for webhook dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Bot ---
	botRepos := &bot.BotRepos{
		User:       repository.NewUserRepository(db),
		Course:     repository.NewCourseRepository(db),
		Channel:    repository.NewChannelRepository(db),
		Payment:    repository.NewPaymentRepository(db),
		RefPayment: repository.NewReferralPaymentRepository(db),
	}
	teleBot, err := bot.New(cfg, botRepos, flow, engine, botAPI, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// --- Routes ---
	router.Setup(e, db, flow, engine, logger, cfg.API.Key, updateDeduper, teleBot.WebhookHandler())

	// --- Cron Scheduler ---
	cronRepos := &cronpkg.CronRepos{
		Payment:    repository.NewPaymentRepository(db),
		RefPayment: repository.NewReferralPaymentRepository(db),
	}
	scheduler := cronpkg.New(cfg, engine, cronRepos, botAPI, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting Kursbot server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	go teleBot.Start()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	teleBot.Stop()

	ctx := scheduler.Stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env)
	if err != nil {
		return err
	}
	if err := bootstrap.MigrateAndSeed(db, cfg.Bot.AdminChat); err != nil {
		return err
	}
	logger.Info("Schema migration and default seed completed")
	return nil
}
