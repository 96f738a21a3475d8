// Package worker reacts to snapshot refresh notifications.
package worker

import (
	"context"
	"errors"
	"fmt"

	"costboard/internal/amqp"
	"costboard/internal/core"
	"costboard/internal/log"
	"costboard/internal/profile"
	"costboard/internal/storage"
)

// Invalidator drops cached snapshots of a brand, one period or all of them
// when p is zero.
type Invalidator interface {
	Invalidate(ctx context.Context, brandID string, p core.Period) (int, error)
}

// EventRecorder keeps a history of processed notifications.
type EventRecorder interface {
	RecordSnapshotEvent(ctx context.Context, ev storage.SnapshotEvent) (int64, error)
}

// Consumer delivers notifications to a handler until ctx ends.
type Consumer interface {
	ConsumeSnapshotUpdates(ctx context.Context, handler amqp.Handler) error
}

// InvalidationWorker evicts cached cost snapshots when a refresh is
// announced, so the next dashboard request reads the new data.
type InvalidationWorker struct {
	invalidator Invalidator
	events      EventRecorder
	logger      *log.Logger
}

// NewInvalidationWorker builds a worker. events may be nil.
func NewInvalidationWorker(invalidator Invalidator, events EventRecorder, logger *log.Logger) *InvalidationWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &InvalidationWorker{
		invalidator: invalidator,
		events:      events,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes notifications until ctx ends.
func (w *InvalidationWorker) Run(ctx context.Context, consumer Consumer) error {
	err := consumer.ConsumeSnapshotUpdates(ctx, w.HandleSnapshotUpdated)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleSnapshotUpdated processes one notification. Messages for unknown
// brands are acknowledged and dropped; only invalidation failures are
// returned so the message is retried.
func (w *InvalidationWorker) HandleSnapshotUpdated(ctx context.Context, msg *amqp.SnapshotUpdatedMessage) error {
	kind := msg.EffectiveKind()
	w.logger.InfoContext(ctx, "Processing snapshot update",
		log.FieldBrand, msg.Brand, log.FieldPeriod, msg.Period.String(), "kind", kind)

	evicted := 0
	// Headcount and revenue tables are read per request and never cached.
	if kind == amqp.KindCost {
		n, err := w.invalidator.Invalidate(ctx, msg.Brand, msg.Period)
		if errors.Is(err, profile.ErrUnknownBrand) {
			w.logger.WarnContext(ctx, "Ignoring update for unknown brand", log.FieldBrand, msg.Brand)
			return nil
		}
		if err != nil {
			return fmt.Errorf("invalidate %s: %w", msg.Brand, err)
		}
		evicted = n
	}

	w.logger.InfoContext(ctx, "Snapshot cache invalidated",
		log.FieldOperation, log.OpInvalidate,
		log.FieldBrand, msg.Brand,
		log.FieldPeriod, msg.Period.String(),
		log.FieldEvicted, evicted)

	if w.events != nil {
		ev := storage.SnapshotEvent{
			Brand:      msg.Brand,
			Period:     msg.Period,
			Kind:       kind,
			Evicted:    evicted,
			ReceivedAt: msg.Timestamp,
		}
		if _, err := w.events.RecordSnapshotEvent(ctx, ev); err != nil {
			w.logger.ErrorContext(ctx, "Failed to record snapshot event", log.FieldError, err)
		}
	}
	return nil
}
