// Package cache provides a Redis-backed second-level store for token
// metadata shared across processes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// DecimalsStore keeps token decimals at "decimals:{chainID}:{address}".
type DecimalsStore struct {
	rdb     redis.Cmdable
	chainID int64
	ttl     time.Duration
}

func NewDecimalsStore(rdb redis.Cmdable, chainID int64, ttl time.Duration) *DecimalsStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &DecimalsStore{rdb: rdb, chainID: chainID, ttl: ttl}
}

func (s *DecimalsStore) key(token common.Address) string {
	return fmt.Sprintf("decimals:%d:%s", s.chainID, token.Hex())
}

// GetDecimals reports ok=false with a nil error on a miss.
func (s *DecimalsStore) GetDecimals(ctx context.Context, token common.Address) (uint8, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis: get decimals %s: %w", token.Hex(), err)
	}
	dec, err := strconv.ParseUint(val, 10, 8)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse decimals %s: %w", token.Hex(), err)
	}
	return uint8(dec), true, nil
}

func (s *DecimalsStore) SetDecimals(ctx context.Context, token common.Address, dec uint8) error {
	if err := s.rdb.Set(ctx, s.key(token), strconv.Itoa(int(dec)), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set decimals %s: %w", token.Hex(), err)
	}
	return nil
}
