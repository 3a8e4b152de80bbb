// This file contains the implementation of DatabaseService, the connector between the process and MongoDB.
//
// The connection is opened once at start-up. mongo.Connect itself is lazy, so the service pings the primary and
// retries the ping with exponential backoff until the configured number of attempts is spent. Callers are expected
// to treat a returned error as fatal: the web server must never listen without a live store behind it.
//
// After start-up, failed server heartbeats are reported through the logger as connection errors. The driver
// reconnects on its own; the service does not exit or retry on those events.

package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/NeRF-or-Nothing/go-user-service/internal/log"
)

// DatabaseConfig describes how to reach the store.
type DatabaseConfig struct {
	URI      string
	Name     string
	Attempts uint64
	// Timeout bounds server selection for a single attempt.
	Timeout time.Duration
	// RetryBase is the first backoff delay. Defaults to 500ms.
	RetryBase time.Duration
}

type DatabaseService struct {
	client    *mongo.Client
	database  *mongo.Database
	logger    *log.Logger
	ready     atomic.Bool
	connected atomic.Bool
}

// NewDatabaseService connects to MongoDB and waits until the primary answers a ping.
// Returns an error if the URI is invalid or every attempt failed.
func NewDatabaseService(ctx context.Context, cfg DatabaseConfig, logger *log.Logger) (*DatabaseService, error) {
	s := &DatabaseService{logger: logger}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout).
		SetServerMonitor(s.serverMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("error creating MongoDB client: %w", err)
	}

	if err := s.waitForPrimary(ctx, client, cfg); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s.client = client
	s.database = client.Database(cfg.Name)
	s.connected.Store(true)
	s.ready.Store(true)
	s.logger.Infof("MongoDB connected, using database %s", cfg.Name)
	return s, nil
}

func (s *DatabaseService) waitForPrimary(ctx context.Context, client *mongo.Client, cfg DatabaseConfig) error {
	base := cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}

	backoff := retry.NewExponential(base)
	backoff = retry.WithCappedDuration(10*time.Second, backoff)
	backoff = retry.WithMaxRetries(attempts-1, backoff)

	var attempt uint64
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			s.logger.Errorf("MongoDB connection error (attempt %d/%d): %v", attempt, attempts, err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", attempt, err)
	}
	return nil
}

// serverMonitor reports heartbeat failures and recoveries after start-up.
func (s *DatabaseService) serverMonitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			if s.connected.CompareAndSwap(true, false) {
				s.logger.Errorf("MongoDB connection error on %s: %v", e.ConnectionID, e.Failure)
			}
		},
		ServerHeartbeatSucceeded: func(e *event.ServerHeartbeatSucceededEvent) {
			if s.ready.Load() && s.connected.CompareAndSwap(false, true) {
				s.logger.Infof("MongoDB connection to %s restored", e.ConnectionID)
			}
		},
	}
}

// Client returns the underlying MongoDB client.
func (s *DatabaseService) Client() *mongo.Client {
	return s.client
}

// Database returns the configured database.
func (s *DatabaseService) Database() *mongo.Database {
	return s.database
}

// Ping checks that the primary is reachable.
func (s *DatabaseService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Shutdown disconnects the client.
func (s *DatabaseService) Shutdown(ctx context.Context) error {
	s.logger.Info("Disconnecting from MongoDB...")
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	s.logger.Info("MongoDB disconnected")
	return nil
}
