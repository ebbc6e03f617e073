package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/config"
	"github.com/bugmaker2/Inspector/internal/db"
	"github.com/bugmaker2/Inspector/internal/handler"
	"github.com/bugmaker2/Inspector/internal/llm"
	"github.com/bugmaker2/Inspector/internal/logging"
	"github.com/bugmaker2/Inspector/internal/metrics"
	"github.com/bugmaker2/Inspector/internal/monitor"
	"github.com/bugmaker2/Inspector/internal/notify"
	"github.com/bugmaker2/Inspector/internal/repository"
	"github.com/bugmaker2/Inspector/internal/router"
	"github.com/bugmaker2/Inspector/internal/scheduler"
	"github.com/bugmaker2/Inspector/internal/summarizer"
)

const notifyTimeout = 30 * time.Second

// Run initializes and starts the application
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logging.Setup(cfg.Log)
	logrus.Info("Starting Inspector")

	loc, err := cfg.Summary.Location()
	if err != nil {
		return err
	}

	// Init also runs the migrations.
	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	store := repository.New(dbConn)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	ring := notify.NewRing(cfg.Notification.RingSize)
	sink, asyncSinks, err := buildSinks(cfg, store, ring, m)
	if err != nil {
		return err
	}

	github, err := monitor.NewGitHubMonitor(cfg.GitHub)
	if err != nil {
		return fmt.Errorf("failed to create GitHub monitor: %w", err)
	}
	manager := monitor.NewManager(store, sink, m, monitor.Options{
		StaleAfter:  cfg.Monitoring.StaleAfter(),
		Concurrency: cfg.Monitoring.Concurrency,
	}, github, monitor.NewLinkedInMonitor(cfg.LinkedIn))

	// A nil provider leaves the service running with summaries disabled.
	provider := llm.NewProvider(cfg.OpenAI)
	generator := summarizer.New(store, provider, sink, m, summarizer.Options{
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		Location:    loc,
	})

	sched := scheduler.New(cfg.Monitoring, cfg.Summary, manager, generator, loc)

	h := handler.NewHandlers(store, manager, generator, ring, sched, loc)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	for _, a := range asyncSinks {
		a.Wait()
	}

	if sqlDB, err := dbConn.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.Errorf("Failed to close database: %v", err)
		}
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

// buildSinks assembles the notification fan-out. The ring and the log sink
// are always present; external sinks are added when configured and run
// asynchronously.
func buildSinks(cfg *config.Config, store repository.Store, ring *notify.Ring, m *metrics.Metrics) (notify.Sink, []*notify.Async, error) {
	sinks := notify.Multi{ring, notify.LogSink{}}
	var async []*notify.Async

	add := func(d notify.Deliverer) {
		a := notify.NewAsync(d, notifyTimeout, m)
		async = append(async, a)
		sinks = append(sinks, a)
		logrus.Infof("Notification sink enabled: %s", d.Name())
	}

	if cfg.Notification.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Notification.Redis.Addr,
			Password: cfg.Notification.Redis.Password,
			DB:       cfg.Notification.Redis.DB,
		})
		add(notify.NewRedisSink(client, cfg.Notification.Redis.Channel))
	}

	if cfg.Notification.Slack.WebhookURL != "" {
		add(notify.NewSlackSink(cfg.Notification.Slack.WebhookURL))
	}

	if cfg.Notification.Email.Enabled {
		sender, err := notify.NewGmailSender(context.Background(), cfg.Gmail)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create mail sender: %w", err)
		}
		add(notify.NewMailSink(sender, cfg.Gmail.UserEmail, cfg.Notification.Email.Recipients, store))
	}

	return sinks, async, nil
}
