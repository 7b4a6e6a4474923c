package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"checkout-svc/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.NotificationEvent
	err    error
	panics bool
}

func (r *recordingPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	if r.panics {
		panic("broker exploded")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.(models.NotificationEvent))
	return r.err
}

func TestDispatcher_SurvivesCancelledCaller(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, "notification_events", zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, models.NotificationEvent{EventType: models.NotifyBuyerItemPaused, Recipient: "buyer@example.com"})
	cancel()
	d.Wait()

	assert.Len(t, pub.events, 1)
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	d := NewDispatcher(&recordingPublisher{err: errors.New("no brokers")}, "notification_events", zaptest.NewLogger(t))
	d.Notify(context.Background(), models.NotificationEvent{EventType: models.NotifyOrderPaid, Recipient: "a@example.com"})
	d.Wait()

	p := NewDispatcher(&recordingPublisher{panics: true}, "notification_events", zaptest.NewLogger(t))
	assert.NotPanics(t, func() {
		p.Notify(context.Background(), models.NotificationEvent{EventType: models.NotifyOrderPaid, Recipient: "a@example.com"})
		p.Wait()
	})
}

func TestDispatcher_SkipsMissingRecipient(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, "notification_events", zaptest.NewLogger(t))
	d.Notify(context.Background(), models.NotificationEvent{EventType: models.NotifyOrderPaid})
	d.Wait()

	assert.Empty(t, pub.events)
}
