package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"offernexus/internal/offers"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// CachedCalculator serves offer values from redis and falls back to next on
// a miss. Concurrent misses for the same key share one call to next.
type CachedCalculator struct {
	next   offers.ValueCalculator
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

func NewCachedCalculator(next offers.ValueCalculator, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCalculator{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedCalculator) ComputeValue(ctx context.Context, member *offers.Member, offerType *offers.OfferType) (int, error) {
	key := valueCacheKey(member, offerType)

	ctx, span := tracer.Start(ctx, "valuation.cache",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	cached, err := c.rdb.Get(ctx, key).Int()
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return 0, offers.Cancelled(ctx)
	default:
		c.logger.WarnContext(ctx, "value cache read failed", "key", key, "error", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		value, err := c.next.ComputeValue(shared, member, offerType)
		if err != nil {
			return 0, err
		}
		if err := c.rdb.Set(shared, key, value, c.ttl).Err(); err != nil {
			c.logger.WarnContext(shared, "value cache write failed", "key", key, "error", err)
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return 0, offers.Cancelled(ctx)
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

// valueCacheKey uses the email exactly as the valuation service receives it.
func valueCacheKey(member *offers.Member, offerType *offers.OfferType) string {
	return fmt.Sprintf("offer-value:%s:%s", offerType.Name, member.Email)
}
