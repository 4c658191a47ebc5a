package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/dwlr-dashboard/internal/config"
	"github.com/abelzeko/dwlr-dashboard/internal/entities"
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

	log.Info("Starting DWLR alert watcher...")

	client := integration.NewGroundwaterClient(cfg.Backend.BaseURL,
		integration.WithTimeout(cfg.Backend.Timeout),
		integration.WithLogger(log.Named("client")))

	sched := scheduler.NewCronScheduler(log.Named("cron"))

	alerts := usecases.NewAlertsWidget(client, sched, cfg.Alerts.PollInterval, log.Named("alerts"))
	alerts.OnChange(func() { reportAlerts(alerts.View()) })

	// Polls immediately on start, then on every interval
	sched.Start()
	alerts.Start()
	log.Infof("Alerts are polled every %s from %s", cfg.Alerts.PollInterval, client.BaseURL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down...")
	alerts.Close()
	sched.Stop()
}

func reportAlerts(view usecases.View[[]entities.Alert]) {
	if view.Error != "" {
		log.Warnf("Alert refresh failed, keeping %d known alerts: %s", len(view.Data), view.Error)
		return
	}
	if len(view.Data) == 0 {
		log.Info("All stations operating normally")
		return
	}
	log.Infof("%d stations need attention", len(view.Data))
	for _, a := range view.Data {
		log.Infow("Alert", "station", a.StationID, "district", a.District,
			"water_level_m_bgl", a.WaterLevelMBGL, "reason", a.AlertReason)
	}
}
