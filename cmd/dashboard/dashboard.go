package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelzeko/dwlr-dashboard/internal/api"
	"github.com/abelzeko/dwlr-dashboard/internal/config"
	"github.com/abelzeko/dwlr-dashboard/internal/integration"
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

	client := integration.NewGroundwaterClient(cfg.Backend.BaseURL,
		integration.WithTimeout(cfg.Backend.Timeout),
		integration.WithLogger(log.Named("client")))

	sched := scheduler.NewCronScheduler(log.Named("cron"))
	sched.Start()

	sessions := usecases.NewSessions(func() *usecases.Dashboard {
		return usecases.NewDashboard(client, sched, usecases.Options{
			AlertsInterval: cfg.Alerts.PollInterval,
			Logger:         log.Named("dashboard"),
		})
	}, log.Named("sessions"))

	stopReaper := sched.Every(cfg.Sessions.ReapInterval, func() {
		if n := sessions.Reap(cfg.Sessions.IdleTimeout); n > 0 {
			log.Infof("Reaped %d idle dashboards", n)
		}
	})

	web, err := api.NewWebDashboard(sessions, log.Named("web"))
	if err != nil {
		log.Fatalf("Failed to initialize web dashboard: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Web.ListenAddr,
		Handler:           web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error shutting down server: %v", err)
		}
	}()

	log.Infof("Dashboard starting at %s (backend %s)", cfg.Web.ListenAddr, client.BaseURL())
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	stopReaper()
	sessions.Close()
	sched.Stop()
}
