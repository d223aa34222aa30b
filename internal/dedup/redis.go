package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/models"
)

// Seen ids are kept long enough that every source's fetch window has moved
// past them several times over.
const seenTTL = 30 * 24 * time.Hour

// RedisStore is the shared, cross-process dedup store.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStore(addr, password string, db int, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// IsNew records the id and reports whether it was unseen. SETNX makes the
// check-and-record atomic, so concurrent pollers cannot both see true.
func (s *RedisStore) IsNew(ctx context.Context, source models.SourceType, externalID string) (bool, error) {
	set, err := s.client.SetNX(ctx, key(source, externalID), 1, seenTTL).Result()
	if err != nil {
		s.logger.Warn("dedup store unreachable, failing closed",
			zap.Error(err),
			zap.String("external_id", externalID))
		return false, ErrUnavailable
	}
	return set, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
