package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeRF-or-Nothing/go-user-service/internal/config"
	"github.com/NeRF-or-Nothing/go-user-service/internal/log"
	"github.com/NeRF-or-Nothing/go-user-service/internal/models/user"
	"github.com/NeRF-or-Nothing/go-user-service/internal/services"
	"github.com/NeRF-or-Nothing/go-user-service/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration from .env, the optional config file and the environment
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %s\n", err)
		os.Exit(1)
	}

	// Create webserver logger
	logger, err := log.NewLogger(cfg.Development, cfg.Debug, cfg.LogPath)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Errorf("Fatal: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

// run connects the store, then binds the listener, and blocks until a signal arrives.
func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB before anything listens
	db, err := services.NewDatabaseService(ctx, services.DatabaseConfig{
		URI:      cfg.DBURI,
		Name:     cfg.DBName,
		Attempts: cfg.ConnectAttempts,
		Timeout:  cfg.ConnectTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := db.Shutdown(shutdownCtx); err != nil {
			logger.Error(err)
		}
	}()

	userManager := user.NewUserManager(db.Database(), logger)
	if err := userManager.EnsureIndexes(ctx); err != nil {
		return err
	}

	// Events are optional
	var publisher services.EventPublisher = services.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpService, err := services.NewAMQPService(ctx, cfg.AMQPURL, logger)
		if err != nil {
			return fmt.Errorf("error initializing AMQP service: %w", err)
		}
		defer amqpService.Shutdown()
		publisher = amqpService
	}

	userService := services.NewUserService(userManager, publisher, logger)
	server := web.NewWebServer(userService, db, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(cfg.Addr())
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("error starting web server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down web server: %w", err)
	}
	logger.Info("Web server stopped")
	return nil
}
