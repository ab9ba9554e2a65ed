package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

// Store defines the contract for the engine's persisted state. The only state
// that survives a restart is the viewer's last known location and search
// radius; everything else the engine holds is rebuilt from upstream sources.
type Store interface {
	SaveLocation(ctx context.Context, actorID int64, loc model.Location) error
	LoadLocation(ctx context.Context, actorID int64) (*model.Location, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// RedisStore is a Redis-backed Store.
type RedisStore struct {
	redis  *redis.Client
	logger *zap.Logger
}

// locationTTL bounds how long a stale location is rehydrated on startup.
const locationTTL = 30 * 24 * time.Hour

// New creates a Redis-backed store and verifies connectivity.
func New(redisAddr string, redisDB int, redisPass string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		DB:       redisDB,
		Password: redisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{redis: rdb, logger: logger}, nil
}

func locationKey(actorID int64) string {
	return fmt.Sprintf("tradeboard:location:%d", actorID)
}

// SaveLocation persists the viewer's last known location and radius.
func (s *RedisStore) SaveLocation(ctx context.Context, actorID int64, loc model.Location) error {
	if err := s.SetJSON(ctx, locationKey(actorID), loc, locationTTL); err != nil {
		s.logger.Error("store.save_location_failed",
			zap.Int64("actor_id", actorID),
			zap.Error(err))
		return err
	}
	return nil
}

// LoadLocation returns the persisted location, or nil if none is known.
func (s *RedisStore) LoadLocation(ctx context.Context, actorID int64) (*model.Location, error) {
	var loc model.Location
	err := s.GetJSON(ctx, locationKey(actorID), &loc)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *RedisStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
