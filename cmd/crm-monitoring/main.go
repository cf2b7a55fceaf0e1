package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/utils/clock"

	// Application
	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/application/usecase"

	// Domain
	"github.com/dreschagin/crm-monitoring/internal/domain/service"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"

	// Infrastructure
	redisCache "github.com/dreschagin/crm-monitoring/internal/infrastructure/cache/redis"
	"github.com/dreschagin/crm-monitoring/internal/infrastructure/collector"
	natsMessaging "github.com/dreschagin/crm-monitoring/internal/infrastructure/messaging/nats"
	"github.com/dreschagin/crm-monitoring/internal/infrastructure/notification/email"
	"github.com/dreschagin/crm-monitoring/internal/infrastructure/notification/webhook"
	wsInfra "github.com/dreschagin/crm-monitoring/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/crm-monitoring/internal/infrastructure/observability/cloudwatch"
	promsink "github.com/dreschagin/crm-monitoring/internal/infrastructure/observability/prometheus"
	"github.com/dreschagin/crm-monitoring/internal/infrastructure/persistence/postgres"

	// Interfaces
	httpInterface "github.com/dreschagin/crm-monitoring/internal/interfaces/http"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/handler"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/middleware"

	// Shared
	"github.com/dreschagin/crm-monitoring/pkg/config"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
	"github.com/dreschagin/crm-monitoring/pkg/scheduler"
)

const (
	alertStreamName = "CRM_ALERTS"
	cpuSampleWindow = 200 * time.Millisecond
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger
	log := logger.NewWithWriter(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	log.Info("Starting CRM monitoring")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []func(context.Context)

	// 3. Observability: Prometheus + опционально CloudWatch
	promSink := promsink.NewSink("crm")
	sinks := port.MultiSink{promSink}

	if cfg.CloudWatch.LogsEnabled {
		logsPublisher, err := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.CloudWatch.LogGroupName,
			LogStreamName:   cfg.CloudWatch.LogStreamName,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			BufferSize:      cfg.CloudWatch.LogsBufferSize,
			FlushInterval:   cfg.CloudWatch.LogsFlushInterval,
			AutoCreate:      true,
		})
		if err != nil {
			log.Error("Failed to initialize CloudWatch logs", err)
		} else {
			log.SetLogPublisher(logsPublisher)
			closers = append(closers, func(ctx context.Context) {
				log.SetLogPublisher(nil)
				if err := logsPublisher.Close(ctx); err != nil {
					log.Error("Failed to flush CloudWatch logs", err)
				}
			})
			log.Info("CloudWatch logs enabled", "group", cfg.CloudWatch.LogGroupName)
		}
	}

	if cfg.CloudWatch.MetricsEnabled {
		metricsPublisher, err := cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:         cfg.CloudWatch.MetricsNamespace,
			Region:            cfg.CloudWatch.Region,
			Endpoint:          cfg.CloudWatch.Endpoint,
			AccessKeyID:       cfg.CloudWatch.AccessKeyID,
			SecretAccessKey:   cfg.CloudWatch.SecretAccessKey,
			DefaultDimensions: cfg.CloudWatch.MetricsDimensions,
			BufferSize:        cfg.CloudWatch.MetricsBufferSize,
			FlushInterval:     cfg.CloudWatch.MetricsFlushInterval,
		}, log)
		if err != nil {
			log.Error("Failed to initialize CloudWatch metrics", err)
		} else {
			sinks = append(sinks, metricsPublisher)
			closers = append(closers, func(ctx context.Context) {
				if err := metricsPublisher.Close(ctx); err != nil {
					log.Error("Failed to flush CloudWatch metrics", err)
				}
			})
			log.Info("CloudWatch metrics enabled", "namespace", cfg.CloudWatch.MetricsNamespace)
		}
	}

	var sink port.MetricsSink = sinks
	realClock := clock.RealClock{}

	// 4. Domain: агрегатор метрик запросов
	aggregator := service.NewMetricAggregator(service.AggregatorConfig{
		SlowRequestThreshold:   cfg.Metrics.SlowRequestThreshold,
		SlowOperationThreshold: cfg.Metrics.SlowOperationThreshold,
		SlowLogSize:            cfg.Metrics.SlowLogSize,
		Retention:              cfg.Metrics.Retention,
	}, realClock, usecase.NewMetricsObserver(sink, log))

	cleanup := scheduler.New("metrics-cleanup", cfg.Metrics.CleanupInterval, realClock, func(context.Context) {
		endpoints, operations := aggregator.Cleanup()
		if endpoints > 0 || operations > 0 {
			log.Info("Metrics cleanup", "endpoints_removed", endpoints, "operations_removed", operations)
		}
	}, log)

	// 5. Infrastructure: БД, кэш, системные метрики
	var databaseHealth port.DatabaseHealthProvider
	if cfg.Database.Enabled {
		db, err := postgres.Open(cfg.Database)
		if err != nil {
			log.Error("Failed to open database", err)
			os.Exit(1)
		}
		closers = append(closers, func(context.Context) { closeDB(db, log) })

		instrumented := postgres.NewInstrumentedDB(db, aggregator)
		databaseHealth = postgres.NewDatabaseHealthProvider(instrumented)
		log.Info("Database configured", "host", cfg.Database.Host, "database", cfg.Database.Database)
	} else {
		log.Warn("Database is disabled, readiness will report not_ready")
	}

	var cache *redisCache.HealthClient
	if cfg.Redis.Enabled {
		cache = redisCache.NewHealthClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		closers = append(closers, func(context.Context) {
			if err := cache.Close(); err != nil {
				log.Error("Failed to close Redis client", err)
			}
		})
	}

	systemStats := collector.NewSystemStatsCollector(cpuSampleWindow)

	// 6. Health orchestrator и встроенные проверки
	orchestrator := usecase.NewHealthOrchestrator(usecase.HealthOrchestratorConfig{
		Timeout:     cfg.Health.CheckTimeout,
		HistorySize: cfg.Health.HistorySize,
	}, realClock, sink, log)

	if databaseHealth != nil {
		orchestrator.Register(usecase.CheckDatabase,
			usecase.DatabaseProbe(databaseHealth, cfg.Alerting.DatabasePool.Warning, cfg.Health.SlowDatabaseResponse))
	}
	orchestrator.Register(usecase.CheckMetrics,
		usecase.MetricsProbe(aggregator, cfg.Alerting.ErrorRate.Warning, cfg.Alerting.ResponseTime.Warning))
	orchestrator.Register(usecase.CheckMemory,
		usecase.MemoryProbe(systemStats, thresholds(cfg.Alerting.Memory)))
	orchestrator.Register(usecase.CheckDisk,
		usecase.DiskProbe(systemStats, cfg.Health.DiskPath, valueobject.ThresholdPair{
			Warning:  cfg.Health.DiskWarningPercent,
			Critical: cfg.Health.DiskCriticalPercent,
		}))
	if cache != nil {
		orchestrator.Register(usecase.CheckCache, usecase.CacheProbe(cache))
	}
	log.Info("Health checks registered", "checks", orchestrator.Names())

	// 7. Каналы уведомлений
	hub := wsInfra.NewHub(log)
	notifiers := []port.Notifier{hub}

	httpClient := &http.Client{Timeout: cfg.Alerting.NotifyTimeout}
	if cfg.Alerting.Webhook.Enabled {
		notifiers = append(notifiers, webhook.NewNotifier(cfg.Alerting.Webhook.URL, httpClient, log))
	}
	if cfg.Alerting.Chat.Enabled {
		notifiers = append(notifiers, webhook.NewChatNotifier(cfg.Alerting.Chat.WebhookURL, cfg.Alerting.Chat.Channel, httpClient, log))
	}
	if cfg.Alerting.Email.Enabled {
		notifiers = append(notifiers, email.NewNotifier(email.Config{
			SMTPAddr:   cfg.Alerting.Email.SMTPAddr,
			From:       cfg.Alerting.Email.From,
			Recipients: cfg.Alerting.Email.Recipients,
			Username:   cfg.Alerting.Email.Username,
			Password:   cfg.Alerting.Email.Password,
		}, nil))
	}
	if cfg.NATS.Enabled {
		publisher, err := natsMessaging.NewNATSPublisher(cfg.NATS.URL, alertStreamName, cfg.NATS.SubjectPrefix+".>", log)
		if err != nil {
			log.Error("Failed to connect to NATS, alert events disabled", err)
		} else {
			notifiers = append(notifiers, natsMessaging.NewAlertNotifier(publisher, cfg.NATS.SubjectPrefix))
			closers = append(closers, func(context.Context) {
				if err := publisher.Close(); err != nil {
					log.Error("Failed to close NATS connection", err)
				}
			})
		}
	}

	dispatcher := usecase.NewNotificationDispatcher(notifiers, cfg.Alerting.NotifyTimeout, sink, log)
	log.Info("Notification channels configured", "channels", dispatcher.Channels())

	// 8. Alert engine
	engine := usecase.NewAlertEngine(usecase.AlertEngineConfig{
		ErrorRate:          thresholds(cfg.Alerting.ErrorRate),
		ResponseTime:       thresholds(cfg.Alerting.ResponseTime),
		DatabasePool:       thresholds(cfg.Alerting.DatabasePool),
		Memory:             thresholds(cfg.Alerting.Memory),
		CPU:                thresholds(cfg.Alerting.CPU),
		SuppressionWindow:  cfg.Alerting.SuppressionWindow,
		EvaluationInterval: cfg.Alerting.EvaluationInterval,
		HistorySize:        cfg.Alerting.HistorySize,
	}, realClock, aggregator, databaseHealth, systemStats, dispatcher, sink, log)

	// 9. HTTP
	authConfig := middleware.AuthConfig{
		Enabled:     cfg.Security.AuthEnabled,
		BearerToken: cfg.Security.AuthToken,
	}

	router := httpInterface.NewRouter(
		handler.NewHealthHandler(orchestrator, databaseHealth, realClock, log),
		handler.NewAlertsHandler(engine, log),
		handler.NewMetricsHandler(aggregator, realClock),
		handler.NewWebSocketHandler(hub, cfg.Security.AllowedOrigins, authConfig, log),
		promSink.Handler(),
		aggregator,
		sink,
		cfg.Security,
		log,
	)

	// 10. Запускаем фоновые процессы
	go hub.Run(ctx)
	log.Info("WebSocket hub started")

	if err := cleanup.Start(ctx); err != nil {
		log.Error("Failed to start metrics cleanup", err)
		os.Exit(1)
	}
	if err := engine.Start(ctx); err != nil {
		log.Error("Failed to start alert engine", err)
		os.Exit(1)
	}
	log.Info("Alert engine started", "interval", cfg.Alerting.EvaluationInterval.String())

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 11. Ожидаем сигнал для graceful shutdown
	select {
	case <-sigChan:
		log.Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		log.Error("HTTP server failed", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	engine.Stop()
	cleanup.Stop()
	dispatcher.Wait()
	cancel()

	// Закрываем в обратном порядке: последним сбрасывается буфер CloudWatch Logs
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i](shutdownCtx)
	}

	log.Info("Server stopped gracefully")
}

func thresholds(t config.Thresholds) valueobject.ThresholdPair {
	return valueobject.ThresholdPair{Warning: t.Warning, Critical: t.Critical}
}

func closeDB(db *sql.DB, log *logger.Logger) {
	if err := db.Close(); err != nil {
		log.Error("Failed to close database", err)
	}
}
