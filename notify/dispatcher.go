// Package notify sends best-effort notifications. A notification never
// fails or delays the request that triggered it.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout-svc/middleware"
	"checkout-svc/models"

	"go.uber.org/zap"
)

// Notifier is what request paths depend on.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent)
}

// EventPublisher delivers an event to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
}

type Dispatcher struct {
	publisher EventPublisher
	topic     string
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(publisher EventPublisher, topic string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		topic:     topic,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

// Notify publishes event in the background. The caller's cancellation
// does not reach the publish; trace context does.
func (d *Dispatcher) Notify(ctx context.Context, event models.NotificationEvent) {
	if event.Recipient == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				middleware.RecordNotification(event.EventType, err)
				d.logger.Error("Notification panicked", zap.String("event_type", event.EventType), zap.Error(err))
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		err := d.publisher.Publish(ctx, d.topic, event.Recipient, event)
		middleware.RecordNotification(event.EventType, err)
		if err != nil {
			d.logger.Warn("Failed to dispatch notification",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
