// README: Dispatch log backed by Redis; remembers which orders were pushed to which drivers.
package matching

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dispatchKeyPrefix = "matching:order:%d:dispatched_at"
	notifiedKeyPrefix = "matching:order:%d:notified"
	// TTL for dispatch keys (orders should resolve well within 7 days).
	keyTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// ClaimDispatch marks the order as dispatched. It returns false when another
// process already claimed it.
func (s *Store) ClaimDispatch(ctx context.Context, orderID int64) (bool, error) {
	return s.redis.SetNX(ctx, dispatchedAtKey(orderID), time.Now().UTC().Format(time.RFC3339), keyTTL).Result()
}

// RecordNotified adds the drivers that received a push for the order.
func (s *Store) RecordNotified(ctx context.Context, orderID int64, driverIDs []int64) error {
	if len(driverIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(driverIDs))
	for i, d := range driverIDs {
		members[i] = strconv.FormatInt(d, 10)
	}
	pipe := s.redis.Pipeline()
	pipe.SAdd(ctx, notifiedKey(orderID), members...)
	pipe.Expire(ctx, notifiedKey(orderID), keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetDispatchedAt returns when the order was first dispatched, and whether it has been dispatched.
func (s *Store) GetDispatchedAt(ctx context.Context, orderID int64) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, dispatchedAtKey(orderID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func dispatchedAtKey(orderID int64) string {
	return fmt.Sprintf(dispatchKeyPrefix, orderID)
}

func notifiedKey(orderID int64) string {
	return fmt.Sprintf(notifiedKeyPrefix, orderID)
}
