package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/statushq/launchlog/internal/api"
	"github.com/statushq/launchlog/internal/changelog"
	"github.com/statushq/launchlog/internal/config"
	"github.com/statushq/launchlog/internal/mailer"
	"github.com/statushq/launchlog/internal/newsletter"
	"github.com/statushq/launchlog/internal/pkg/logger"
	"github.com/statushq/launchlog/internal/storage"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := storage.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	events := changelog.NewStore(db)
	news := newsletter.NewStore(db)

	if err := news.SeedDefaultTemplates(ctx); err != nil {
		log.Fatalf("Failed to seed templates: %v", err)
	}

	mailDefaults := newsletter.MailSettings{
		Host:        cfg.Mail.Host,
		Port:        cfg.Mail.Port,
		Username:    cfg.Mail.Username,
		Password:    cfg.Mail.Password,
		Encryption:  cfg.Mail.Encryption,
		FromAddress: cfg.Mail.FromAddress,
		FromName:    cfg.Mail.FromName,
	}

	transport := mailer.New(func(ctx context.Context) (mailer.Config, error) {
		settings, err := news.GetOrCreateMailSettings(ctx, mailDefaults)
		if err != nil {
			return mailer.Config{}, err
		}
		return mailer.Config{
			Host:        settings.Host,
			Port:        settings.Port,
			Username:    settings.Username,
			Password:    settings.Password,
			Encryption:  settings.Encryption,
			FromAddress: settings.FromAddress,
			FromName:    settings.FromName,
		}, nil
	})

	var guard newsletter.DebounceGuard
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		guard = newsletter.NewRedisDebounce(rdb)
		logger.Info("dispatch debounce using redis", "addr", cfg.Redis.Addr)
	} else {
		guard = newsletter.NewHistoryDebounce(news)
		logger.Info("dispatch debounce using email history table")
	}

	dispatcher := newsletter.NewDispatcher(news, events, transport, guard)
	service := api.NewService(db, events, news, dispatcher, mailDefaults)
	router := api.SetupRoutes(service)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
