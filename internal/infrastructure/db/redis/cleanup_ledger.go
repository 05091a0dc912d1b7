package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	pendingKey = "identity:peer_cleanup:pending"
	detailKey  = "identity:peer_cleanup:detail"
)

// CleanupLedger tracks users whose peer data cleanup failed after the user
// row was deleted. Pending ids live in a sorted set scored by the time of the
// first failure, the last reported detail in a hash.
type CleanupLedger struct {
	client *redis.Client
	now    func() time.Time
}

// NewCleanupLedger creates a CleanupLedger wrapping the given Redis client.
func NewCleanupLedger(client *redis.Client) *CleanupLedger {
	return &CleanupLedger{client: client, now: time.Now}
}

var _ ports.CleanupLedger = (*CleanupLedger)(nil)

// Record marks userID as pending. Re-recording keeps the original position in
// the queue and refreshes the detail.
func (l *CleanupLedger) Record(ctx context.Context, userID, detail string) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, pendingKey, redis.Z{Score: float64(l.now().Unix()), Member: userID})
		pipe.HSet(ctx, detailKey, userID, detail)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record pending cleanup: %w", err)
	}
	return nil
}

// Pending returns up to limit user ids, oldest first.
func (l *CleanupLedger) Pending(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := l.client.ZRangeByScore(ctx, pendingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(l.now().Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending cleanups: %w", err)
	}
	return ids, nil
}

// Resolve removes userID from the ledger.
func (l *CleanupLedger) Resolve(ctx context.Context, userID string) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, pendingKey, userID)
		pipe.HDel(ctx, detailKey, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("resolve pending cleanup: %w", err)
	}
	return nil
}

// Count returns the number of pending cleanups.
func (l *CleanupLedger) Count(ctx context.Context) (int64, error) {
	n, err := l.client.ZCard(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count pending cleanups: %w", err)
	}
	return n, nil
}
