package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/payments"
	"checkout-svc/repository"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func InitConsumer(brokers []string, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// TransferRecorder stores the processor transfer made for a paid claim.
type TransferRecorder interface {
	RecordChapterTransfer(ctx context.Context, claimID, transferID string) error
}

// TransferConsumer moves the earmarked chapter donation of each paid
// steward claim to the chapter's payout account.
type TransferConsumer struct {
	consumer   sarama.Consumer
	topic      string
	processor  payments.Processor
	claims     TransferRecorder
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration
}

func NewTransferConsumer(consumer sarama.Consumer, topic string, processor payments.Processor, claims TransferRecorder, logger *zap.Logger) *TransferConsumer {
	return &TransferConsumer{
		consumer:   consumer,
		topic:      topic,
		processor:  processor,
		claims:     claims,
		logger:     logger,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Start blocks until ctx is cancelled.
func (tc *TransferConsumer) Start(ctx context.Context) error {
	partitionConsumer, err := tc.consumer.ConsumePartition(tc.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	tc.logger.Info("Kafka consumer started", zap.String("topic", tc.topic))

	for {
		select {
		case <-ctx.Done():
			return nil
		case message := <-partitionConsumer.Messages():
			if err := tc.handleMessageWithRetry(ctx, message); err != nil {
				tc.logger.Error("Failed to handle message after retries", zap.Error(err))
			}
		case err := <-partitionConsumer.Errors():
			tc.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func (tc *TransferConsumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var lastErr error
	for attempt := 1; attempt <= tc.maxRetries; attempt++ {
		err := tc.handleMessage(message)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < tc.maxRetries {
			backoff := time.Duration(attempt) * tc.backoff
			tc.logger.Warn("Retrying message handling",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", tc.maxRetries, lastErr)
}

func (tc *TransferConsumer) handleMessage(message *sarama.ConsumerMessage) error {
	carrier := consumerHeaderCarrier(message.Headers)
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), carrier)

	ctx, span := otel.Tracer("checkout-service").Start(ctx, "ProcessSettlementEvent")
	defer span.End()

	var event models.SettlementEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		// A malformed payload will not improve on retry.
		tc.logger.Error("Dropping malformed settlement event", zap.Error(err))
		return nil
	}
	span.SetAttributes(attribute.String("event.type", event.EventType))

	if err := tc.HandleEvent(ctx, event); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// HandleEvent creates the chapter transfer for a steward_claim_paid
// event. The processor idempotency key and the conditional write on the
// claim make redelivery harmless.
func (tc *TransferConsumer) HandleEvent(ctx context.Context, event models.SettlementEvent) error {
	if event.EventType != models.SettlementStewardClaimPaid || event.DonationCents <= 0 {
		return nil
	}

	traceID := middleware.GetTraceID(ctx)
	if event.ChapterAccountID == "" {
		tc.logger.Error("Paid claim has no chapter account, donation held on platform",
			zap.String("trace_id", traceID),
			zap.String("claim_id", event.ClaimID),
			zap.String("chapter_id", event.ChapterID),
		)
		return nil
	}

	transferID, err := tc.processor.CreateTransfer(ctx, payments.TransferParams{
		AmountCents:    event.DonationCents,
		Destination:    event.ChapterAccountID,
		TransferGroup:  event.ClaimID,
		Description:    "Chapter donation for steward claim " + event.ClaimID,
		IdempotencyKey: "chapter-donation-" + event.ClaimID,
		Metadata: map[string]string{
			payments.MetaClaimID:       event.ClaimID,
			payments.MetaChapterID:     event.ChapterID,
			payments.MetaDonationCents: strconv.FormatInt(event.DonationCents, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create chapter transfer: %w", err)
	}

	err = tc.claims.RecordChapterTransfer(ctx, event.ClaimID, transferID)
	if errors.Is(err, repository.ErrConflict) {
		tc.logger.Info("Chapter transfer already recorded",
			zap.String("trace_id", traceID),
			zap.String("claim_id", event.ClaimID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record chapter transfer: %w", err)
	}

	tc.logger.Info("Chapter donation transferred",
		zap.String("trace_id", traceID),
		zap.String("claim_id", event.ClaimID),
		zap.String("transfer_id", transferID),
		zap.Int64("amount_cents", event.DonationCents),
	)
	return nil
}

type consumerHeaderCarrier []*sarama.RecordHeader

func (c consumerHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c consumerHeaderCarrier) Set(string, string) {}

func (c consumerHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
