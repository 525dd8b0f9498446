package events

import (
	"context"
	"fmt"
	"time"

	"github.com/citizenvoice/platform/internal/shared/config"
	"go.uber.org/zap"
)

// EventBus defines the interface for event publishing
type EventBus interface {
	// Publish appends an event to its stream
	Publish(ctx context.Context, event Event) error

	// Close closes the event bus connection
	Close()

	// Health checks the event bus connection
	Health(ctx context.Context) error
}

// NewEventBus connects to KurrentDB when it is enabled and returns a logging
// bus otherwise.
func NewEventBus(ctx context.Context, cfg config.KurrentDBConfig, logger *zap.Logger) (EventBus, error) {
	if !cfg.Enabled {
		return NewLogBus(logger), nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bus, err := NewBus(cfg)
	if err != nil {
		return nil, err
	}

	if err := bus.Health(timeoutCtx); err != nil {
		bus.Close()
		return nil, fmt.Errorf("KurrentDB health check failed: %w", err)
	}

	return bus, nil
}

// LogBus writes events to the log instead of a store
type LogBus struct {
	logger *zap.Logger
}

// NewLogBus creates a logging bus
func NewLogBus(logger *zap.Logger) *LogBus {
	return &LogBus{logger: logger}
}

func (b *LogBus) Publish(_ context.Context, event Event) error {
	b.logger.Info("event",
		zap.String("id", event.ID),
		zap.String("type", event.Type),
		zap.String("stream", event.Stream),
		zap.String("actor_id", event.ActorID.String()),
	)
	return nil
}

func (b *LogBus) Close() {}

func (b *LogBus) Health(context.Context) error { return nil }

var (
	_ EventBus = (*Bus)(nil)
	_ EventBus = (*LogBus)(nil)
)
