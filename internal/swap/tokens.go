package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DecimalsReader resolves ERC-20 decimals on-chain.
type DecimalsReader interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// DecimalsStore is an optional shared second-level cache (e.g. Redis).
// A miss is reported as ok=false with a nil error.
type DecimalsStore interface {
	GetDecimals(ctx context.Context, token common.Address) (dec uint8, ok bool, err error)
	SetDecimals(ctx context.Context, token common.Address, dec uint8) error
}

// TokenCache is the token metadata cache. Decimals never change for a
// deployed token, so entries are kept for the life of the process.
type TokenCache struct {
	reader DecimalsReader
	store  DecimalsStore
	log    logrus.FieldLogger

	mu       sync.RWMutex
	decimals map[common.Address]uint8
	group    singleflight.Group
}

func NewTokenCache(reader DecimalsReader, store DecimalsStore, log logrus.FieldLogger) *TokenCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TokenCache{
		reader:   reader,
		store:    store,
		log:      log.WithField("component", "tokens"),
		decimals: make(map[common.Address]uint8),
	}
}

// Seed records known decimals without a chain read.
func (c *TokenCache) Seed(token common.Address, dec uint8) {
	c.mu.Lock()
	c.decimals[token] = dec
	c.mu.Unlock()
}

func (c *TokenCache) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.RLock()
	dec, ok := c.decimals[token]
	c.mu.RUnlock()
	if ok {
		return dec, nil
	}

	v, err, _ := c.group.Do(token.Hex(), func() (any, error) {
		return c.resolve(ctx, token)
	})
	if err != nil {
		return 0, err
	}
	return v.(uint8), nil
}

func (c *TokenCache) resolve(ctx context.Context, token common.Address) (uint8, error) {
	if c.store != nil {
		dec, ok, err := c.store.GetDecimals(ctx, token)
		if err != nil {
			c.log.WithError(err).WithField("token", token.Hex()).Warn("decimals store read failed")
		} else if ok {
			c.Seed(token, dec)
			return dec, nil
		}
	}

	dec, err := c.reader.Decimals(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("decimals(%s): %w", token.Hex(), err)
	}
	c.Seed(token, dec)

	if c.store != nil {
		if err := c.store.SetDecimals(ctx, token, dec); err != nil {
			c.log.WithError(err).WithField("token", token.Hex()).Warn("decimals store write failed")
		}
	}
	c.log.WithFields(logrus.Fields{"token": token.Hex(), "decimals": dec}).Debug("resolved token decimals")
	return dec, nil
}

// OneUnit returns 10^decimals, the raw amount of one whole token.
func (c *TokenCache) OneUnit(ctx context.Context, token common.Address) (*big.Int, error) {
	dec, err := c.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil), nil
}

// ToHuman converts a raw amount into whole-token units.
func (c *TokenCache) ToHuman(ctx context.Context, token common.Address, raw *big.Int) (decimal.Decimal, error) {
	dec, err := c.Decimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	return ToHuman(raw, dec), nil
}

// ToRaw converts a whole-token amount into raw units, truncating extra precision.
func (c *TokenCache) ToRaw(ctx context.Context, token common.Address, human decimal.Decimal) (*big.Int, error) {
	dec, err := c.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	return ToRaw(human, dec), nil
}

func ToHuman(raw *big.Int, dec uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(dec))
}

func ToRaw(human decimal.Decimal, dec uint8) *big.Int {
	return human.Shift(int32(dec)).Truncate(0).BigInt()
}
