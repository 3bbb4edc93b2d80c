package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alertengine/internal/alertstore"
	"alertengine/internal/config"
	"alertengine/internal/engine"
	"alertengine/internal/leader"
	"alertengine/internal/models"
	"alertengine/internal/monitorstore"
	"alertengine/internal/notifier"
	"alertengine/internal/pql"
	"alertengine/internal/repository"
	"alertengine/internal/scheduler"
	"alertengine/internal/sweeper"
	"alertengine/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// clusterSettingsSource adapts *config.Store to the sweeper's narrow
// SettingsSource; the scheduler reads the *config.Store directly.
type clusterSettingsSource struct{ store *config.Store }

func (c clusterSettingsSource) Current() sweeper.Settings {
	return sweeper.Settings{HistoryEnabled: c.store.Current().HistoryEnabled}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(cfg.Logger)

	db, err := repository.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	monitors := monitorstore.New(db)
	alerts := alertstore.New(db)

	ctx := context.Background()
	if err := monitors.EnsureMapping(ctx); err != nil {
		log.Fatalf("Failed to ensure monitor collection: %v", err)
	}
	if err := alerts.EnsureCollections(ctx); err != nil {
		log.Fatalf("Failed to ensure alert collections: %v", err)
	}

	settingsStore := config.NewStore(cfg.Cluster)

	executor := pql.NewHTTPExecutor(pql.HTTPExecutorConfig{
		BaseURL:   cfg.PQL.BaseURL,
		Timeout:   time.Duration(cfg.PQL.TimeoutSeconds) * time.Second,
		RateLimit: rate.Limit(cfg.PQL.RateLimit),
		Burst:     cfg.PQL.Burst,
		Logger:    log,
	})

	notify := notifier.NewWebhook(notifier.WebhookConfig{
		URL:     cfg.Webhook.URL,
		Timeout: time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second,
	})

	runners := engine.NewRegistry()
	runners.Register(models.MonitorTypePQL, engine.NewMonitorRunner(executor, notify, alerts, monitors, nil, log))

	// A single process is always the leader in this deployment shape; a
	// multi-replica deployment would swap this for a real lease-backed
	// implementation of leader.Elector without touching the sweeper.
	elector := leader.NewStatic(true)

	sweep := sweeper.New(alerts, monitors, elector, nil, clusterSettingsSource{settingsStore}, log)
	sweep.Start()

	sched := scheduler.New(monitors, runners, settingsStore, log)
	sched.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"sweeper":     map[string]interface{}{"running": sweep.IsRunning()},
			"pql_breaker": executor.BreakerStats(),
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Infof("Starting alert engine metrics server on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	sched.Stop()
	sweep.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited gracefully")
}
