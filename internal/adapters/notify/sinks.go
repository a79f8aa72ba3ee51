// Package notify dispatches proposal notifications to their sinks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/pkg/logger"
)

// DefaultChannel is the pub/sub channel notifications are published on.
const DefaultChannel = "headhunt:notifications"

// LogSink writes notifications to the log. It is the default sink.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Get().Named("notify")
	}
	return &LogSink{logger: l}
}

func (s *LogSink) Send(ctx context.Context, n model.Notification) error {
	s.logger.Info(ctx, "notify company",
		logger.String("company", n.CompanyEmail),
		logger.String("recruiter", n.RecruiterEmail),
		logger.String("proposal_id", n.ProposalID),
		logger.String("candidate", n.CandidateName),
		logger.String("from", string(n.OldStatus)),
		logger.String("to", string(n.NewStatus)),
		logger.Time("occurred_at", n.OccurredAt))
	return nil
}

// Publisher is the part of a redis client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes notifications as JSON on a redis channel.
type RedisSink struct {
	client  Publisher
	channel string
}

// NewRedisSink creates a sink publishing on channel; empty uses DefaultChannel.
func NewRedisSink(client Publisher, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (s *RedisSink) Send(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	return nil
}

// MultiSink sends to every sink and joins their errors.
type MultiSink []Sink

// Sink delivers one notification.
type Sink interface {
	Send(ctx context.Context, n model.Notification) error
}

func (m MultiSink) Send(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
