// This file contains the implementation of AMQPService. This service is responsible for publishing user change events
// to an AMQP message broker, so other services can follow the users collection without polling it.
//
// This service expects a rabbitMQ AMQP 0.9.1 broker to be reachable at the configured URL. The service connects to the broker
// and declares a durable topic exchange. Every event is published with its type as routing key, e.g. 'user.created'.
//
// The connection is re-established lazily: if the broker went away, the next publish makes a single reconnect attempt
// bound to the request context. While the broker stays unreachable, publishes fail fast for a short cooldown.

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/NeRF-or-Nothing/go-user-service/internal/log"
)

// UserExchange is the topic exchange user events are published to.
const UserExchange = "users"

const (
	// startupWindow bounds how long NewAMQPService keeps dialling.
	startupWindow = time.Minute / 4
	// reconnectCooldown is how long Publish fails fast after a failed reconnect.
	reconnectCooldown = 5 * time.Second
)

// ErrBrokerUnavailable is returned by Publish while a recent reconnect attempt failed.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

type AMQPService struct {
	url        string
	exchange   string
	connection *amqp.Connection
	channel    *amqp.Channel
	logger     *log.Logger
	// last failed reconnect, used to fail fast instead of dialling on every publish
	lastFailure time.Time
	// guards connection, channel and lastFailure, amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// NewAMQPService connects to the broker at url and declares the user exchange.
// Dialling is retried for up to 15 seconds, or until ctx is done.
func NewAMQPService(ctx context.Context, url string, logger *log.Logger) (*AMQPService, error) {
	service := &AMQPService{
		url:      url,
		exchange: UserExchange,
		logger:   logger,
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.connect(ctx, time.Now().Add(startupWindow)); err != nil {
		return nil, err
	}

	return service, nil
}

// connect establishes a connection to the AMQP message broker and declares the exchange.
// Failed dials are retried every second until retryUntil; a zero retryUntil means a single attempt.
// Any previous connection is closed first. Callers must hold mu.
func (s *AMQPService) connect(ctx context.Context, retryUntil time.Time) error {
	s.closeConnection()

	var (
		conn *amqp.Connection
		err  error
	)
	for {
		conn, err = s.dial(ctx)
		if err == nil || !time.Now().Before(retryUntil) {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to connect to RabbitMQ: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(s.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", s.exchange, err)
	}

	s.connection = conn
	s.channel = ch
	s.logger.Infof("Connected to RabbitMQ, publishing to exchange %s", s.exchange)
	return nil
}

// dial opens a connection whose TCP dial is bound to ctx.
func (s *AMQPService) dial(ctx context.Context) (*amqp.Connection, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	return amqp.DialConfig(s.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	})
}

// closeConnection closes and forgets the current channel and connection. Callers must hold mu.
func (s *AMQPService) closeConnection() {
	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
	if s.connection != nil {
		s.connection.Close()
		s.connection = nil
	}
}

// ensureConnection ensures that the AMQP connection is established. Callers must hold mu.
// A broken connection is re-dialled once, bound to ctx; after a failure, calls within
// reconnectCooldown return ErrBrokerUnavailable without dialling.
func (s *AMQPService) ensureConnection(ctx context.Context) error {
	if s.connection != nil && !s.connection.IsClosed() && s.channel != nil && !s.channel.IsClosed() {
		return nil
	}
	if !s.lastFailure.IsZero() && time.Since(s.lastFailure) < reconnectCooldown {
		return ErrBrokerUnavailable
	}

	s.logger.Info("Reconnecting to RabbitMQ...")
	if err := s.connect(ctx, time.Time{}); err != nil {
		s.lastFailure = time.Now()
		return err
	}
	s.lastFailure = time.Time{}
	return nil
}

// Publish sends evt to the user exchange with evt.Type as routing key.
func (s *AMQPService) Publish(ctx context.Context, evt UserEvent) error {
	body, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnection(ctx); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}

	err = s.channel.PublishWithContext(ctx, s.exchange, evt.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Timestamp:    evt.OccurredAt,
		Type:         evt.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", evt.Type, err)
	}

	s.logger.Debugf("Published %s for user %s", evt.Type, evt.UserID)
	return nil
}

// Shutdown closes the AMQP channel and connection.
func (s *AMQPService) Shutdown() {
	s.logger.Info("Shutting down AMQP service...")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeConnection()
	s.logger.Info("AMQP service shut down")
}

func encodeEvent(evt UserEvent) ([]byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}
	return body, nil
}
