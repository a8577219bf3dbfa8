package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/api"
	"github.com/vigil-ops/vigil-backend-go/internal/api/handlers"
	"github.com/vigil-ops/vigil-backend-go/internal/config"
	"github.com/vigil-ops/vigil-backend-go/internal/core/alerting"
	"github.com/vigil-ops/vigil-backend-go/internal/core/detection"
	"github.com/vigil-ops/vigil-backend-go/internal/core/escalation"
	"github.com/vigil-ops/vigil-backend-go/internal/core/health"
	"github.com/vigil-ops/vigil-backend-go/internal/core/incident"
	"github.com/vigil-ops/vigil-backend-go/internal/core/metrics"
	"github.com/vigil-ops/vigil-backend-go/internal/core/notify"
	"github.com/vigil-ops/vigil-backend-go/internal/core/pipeline"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database"
	"github.com/vigil-ops/vigil-backend-go/internal/websocket"
	"github.com/vigil-ops/vigil-backend-go/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	logger.SetLevel(log, cfg.Logging.Level)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	// Run migrations
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
	}

	// Create repositories
	repos := database.NewRepositories(db)

	// Create WebSocket hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Prometheus instruments
	collector := metrics.NewCollector(cfg.Metrics.Prefix, prometheus.DefaultRegisterer)

	// Notification dispatcher: log fallback plus webhook bridges
	dispatcher := notify.NewManager(notify.RetryPolicy{
		MaxRetries:     cfg.Notifications.MaxRetries,
		InitialDelay:   cfg.Notifications.InitialDelay,
		MaxDelay:       cfg.Notifications.MaxDelay,
		BackoffFactor:  cfg.Notifications.BackoffFactor,
		AttemptTimeout: cfg.Notifications.AttemptTimeout,
	}, &notify.LogChannel{Logger: log}, collector, log)
	dispatcher.Register(types.ChannelDashboard, &notify.DashboardChannel{Hub: wsHub})
	for channel, url := range cfg.Notifications.Webhooks {
		if url == "" {
			continue
		}
		dispatcher.Register(types.ChannelType(channel),
			notify.NewWebhookChannel(url, cfg.Notifications.AttemptTimeout))
		log.WithField("channel", channel).Info("Webhook notification channel registered")
	}

	// Core services
	engine := detection.NewEngine(detection.Config{
		BaselineRetention:  cfg.Detection.BaselineRetention,
		MaxPointsPerSeries: cfg.Detection.MaxPointsPerSeries,
	}, nil, collector, log)

	alertManager := alerting.NewManager(alerting.Config{
		DispatchTimeout: cfg.Alerting.DispatchTimeout,
		DefaultChannels: toChannels(cfg.Alerting.DefaultChannels),
	}, repos.Alert, repos.Failure, dispatcher, wsHub, collector, log)

	coordinator := incident.NewCoordinator(incident.Config{
		CorrelationWindow:    cfg.Correlation.Window,
		MinAlerts:            cfg.Correlation.MinAlerts,
		NotificationChannels: toChannels(cfg.Correlation.Channels),
	}, repos.Incident, repos.Alert, dispatcher, wsHub, collector, log)

	scheduler := escalation.NewScheduler(escalation.Config{
		Tick:            cfg.Escalation.Tick,
		MaxLevel:        cfg.Escalation.MaxLevel,
		Intervals:       toIntervals(cfg.Escalation.Intervals),
		ChannelTiers:    toChannelTiers(cfg.Escalation.ChannelTiers),
		DispatchTimeout: cfg.Escalation.DispatchTimeout,
	}, repos.Alert, dispatcher, wsHub, collector, log)

	tracker := health.NewPerformanceTracker(cfg.Health.PerformanceWindow, 0)
	healthService := health.NewService(health.Config{
		Interval:          cfg.Health.Interval,
		FailureLookback:   cfg.Health.FailureLookback,
		LatencySLA:        cfg.Health.LatencySLA,
		TrendDepth:        cfg.Health.TrendDepth,
		PerformanceWindow: cfg.Health.PerformanceWindow,
	}, repos.Alert, repos.Incident, repos.Failure, repos.Health,
		tracker, nil, wsHub, collector, log)

	pipe := pipeline.New(engine, repos.Rule, alertManager, coordinator, tracker, collector, log)

	// Load monitoring and suppression rules from file
	if cfg.Rules.Path != "" {
		if err := seedRules(cfg.Rules.Path, repos, alertManager, log); err != nil {
			log.WithError(err).Warn("Failed to load rules file")
		}
	}

	// Start background services
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start escalation scheduler:", err)
	}
	if err := healthService.Start(); err != nil {
		log.Fatal("Failed to start health aggregation:", err)
	}

	// Initialize router
	h := handlers.NewHandlers(cfg, repos, pipe, alertManager, coordinator, healthService, wsHub, log)
	router := api.NewRouter(cfg, h, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting Vigil backend on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(ctx); err != nil {
		log.WithError(err).Warn("Failed to stop escalation scheduler gracefully")
	}
	if err := healthService.Stop(ctx); err != nil {
		log.WithError(err).Warn("Failed to stop health aggregation gracefully")
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Info("Server exited")
}

// seedRules loads the rules file, upserts its monitoring rules, and
// installs the suppression windows.
func seedRules(path string, repos *database.Repositories, alerts *alerting.Manager, log *logrus.Logger) error {
	file, err := config.LoadRules(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, rule := range file.Rules {
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = time.Now().UTC()
		}
		existing, err := repos.Rule.GetByID(ctx, rule.ID)
		if err == nil && existing != nil {
			if err := repos.Rule.Update(ctx, rule); err != nil {
				return err
			}
			continue
		}
		if err := repos.Rule.Create(ctx, rule); err != nil {
			return err
		}
	}
	alerts.SetSuppressionRules(file.Suppressions)

	log.WithFields(logrus.Fields{
		"rules":        len(file.Rules),
		"suppressions": len(file.Suppressions),
	}).Info("Monitoring rules loaded")
	return nil
}

func toChannels(names []string) []types.ChannelType {
	channels := make([]types.ChannelType, 0, len(names))
	for _, n := range names {
		channels = append(channels, types.ChannelType(n))
	}
	return channels
}

func toChannelTiers(tiers [][]string) [][]types.ChannelType {
	out := make([][]types.ChannelType, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, toChannels(tier))
	}
	return out
}

func toIntervals(raw map[string]time.Duration) map[types.Severity]time.Duration {
	intervals := make(map[types.Severity]time.Duration, len(raw))
	for severity, interval := range raw {
		intervals[types.Severity(severity)] = interval
	}
	return intervals
}
