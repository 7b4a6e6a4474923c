package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-svc/middleware"
	"checkout-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func InitRedis(addr, password string, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", addr))
	return rdb, nil
}

// ProductSource is the authoritative product lookup behind the cache.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// ProductCache is a read-through cache over ProductSource. Redis
// failures degrade to direct reads.
type ProductCache struct {
	rdb    *redis.Client
	source ProductSource
	ttl    time.Duration
	logger *zap.Logger
}

func NewProductCache(rdb *redis.Client, source ProductSource, ttl time.Duration, logger *zap.Logger) *ProductCache {
	return &ProductCache{rdb: rdb, source: source, ttl: ttl, logger: logger}
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func (c *ProductCache) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err == nil {
		var p models.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Product cache read failed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("product_id", id),
			zap.Error(err),
		)
	}

	product, err := c.source.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := c.rdb.Set(ctx, productKey(id), data, c.ttl).Err(); err != nil {
			c.logger.Debug("Product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}
	return product, nil
}

// EventLedger remembers processed webhook event ids. It only saves
// work on redelivery; the conditional status updates stay authoritative.
type EventLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewEventLedger(rdb *redis.Client, ttl time.Duration) *EventLedger {
	return &EventLedger{rdb: rdb, ttl: ttl}
}

func eventKey(id string) string {
	return fmt.Sprintf("webhook_event:%s", id)
}

func (l *EventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.rdb.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *EventLedger) Mark(ctx context.Context, eventID string) error {
	return l.rdb.SetNX(ctx, eventKey(eventID), time.Now().Unix(), l.ttl).Err()
}
