package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/dwlr-dashboard/internal/api"
	"github.com/abelzeko/dwlr-dashboard/internal/config"
	"github.com/abelzeko/dwlr-dashboard/internal/integration"
	"github.com/abelzeko/dwlr-dashboard/internal/integration/openai"
	"github.com/abelzeko/dwlr-dashboard/internal/log"
	"github.com/abelzeko/dwlr-dashboard/internal/scheduler"
	"github.com/abelzeko/dwlr-dashboard/internal/usecases"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer log.Sync()

	log.Info("Starting Groundwater Dashboard bot...")

	if cfg.Telegram.BotToken == "" {
		log.Fatalf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	// Initialize backend client
	client := integration.NewGroundwaterClient(cfg.Backend.BaseURL,
		integration.WithTimeout(cfg.Backend.Timeout),
		integration.WithLogger(log.Named("client")))

	// Shared scheduler for alert polls and session reaping
	sched := scheduler.NewCronScheduler(log.Named("cron"))
	sched.Start()
	defer sched.Stop()

	sessions := usecases.NewSessions(func() *usecases.Dashboard {
		return usecases.NewDashboard(client, sched, usecases.Options{
			AlertsInterval: cfg.Alerts.PollInterval,
			Logger:         log.Named("dashboard"),
		})
	}, log.Named("sessions"))
	defer sessions.Close()

	stopReaper := sched.Every(cfg.Sessions.ReapInterval, func() {
		if n := sessions.Reap(cfg.Sessions.IdleTimeout); n > 0 {
			log.Infof("Reaped %d idle dashboards", n)
		}
	})
	defer stopReaper()

	// The assistant is optional
	var assistant *usecases.Assistant
	if agent, err := openai.NewOpenAIService(cfg.OpenAI.APIKey); err != nil {
		log.Warnf("Assistant disabled: %v", err)
	} else {
		assistant = usecases.NewAssistant(agent)
	}

	handler := api.NewCommandHandler(sessions, assistant, log.Named("bot"))
	telegramBot, err := api.NewTelegramBot(cfg.Telegram.BotToken, handler)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the bot
	telegramBot.Start(ctx)
	log.Info("Bot stopped")
}
