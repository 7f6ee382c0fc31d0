package swap

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type memStore struct {
	mu   sync.Mutex
	data map[common.Address]uint8
	sets int
}

func (s *memStore) GetDecimals(_ context.Context, token common.Address) (uint8, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[token]
	return d, ok, nil
}

func (s *memStore) SetDecimals(_ context.Context, token common.Address, dec uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[token] = dec
	s.sets++
	return nil
}

func TestTokenCache_ReadsOnce(t *testing.T) {
	chain := newMockChain()
	cache := NewTokenCache(chain, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, err := cache.Decimals(context.Background(), tokenA); err != nil || d != 6 {
				t.Errorf("got %d, %v", d, err)
			}
		}()
	}
	wg.Wait()

	if _, err := cache.Decimals(context.Background(), tokenA); err != nil {
		t.Fatal(err)
	}
	chain.mu.Lock()
	calls := chain.decCalls
	chain.mu.Unlock()
	if calls < 1 || calls > 16 {
		t.Fatalf("unexpected chain reads %d", calls)
	}

	before := calls
	cache.Decimals(context.Background(), tokenA)
	chain.mu.Lock()
	after := chain.decCalls
	chain.mu.Unlock()
	if after != before {
		t.Fatal("cached decimals must not hit the chain again")
	}
}

func TestTokenCache_UsesStore(t *testing.T) {
	chain := newMockChain()
	store := &memStore{data: map[common.Address]uint8{tokenB: 8}}
	cache := NewTokenCache(chain, store, nil)

	d, err := cache.Decimals(context.Background(), tokenB)
	if err != nil || d != 8 {
		t.Fatalf("expected store value 8, got %d, %v", d, err)
	}
	if chain.decCalls != 0 {
		t.Fatal("store hit must not read the chain")
	}

	if _, err := cache.Decimals(context.Background(), tokenA); err != nil {
		t.Fatal(err)
	}
	if store.sets != 1 || store.data[tokenA] != 6 {
		t.Fatalf("chain read should populate the store, got %v", store.data)
	}
}

func TestTokenCache_UnknownToken(t *testing.T) {
	cache := NewTokenCache(newMockChain(), nil, nil)
	if _, err := cache.Decimals(context.Background(), common.HexToAddress("0x01")); err == nil {
		t.Fatal("expected error for unknown token")
	}
}

func TestHumanRawConversion(t *testing.T) {
	raw := big.NewInt(1_500_000)
	if got := ToHuman(raw, 6); !got.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("ToHuman: got %s", got)
	}
	if got := ToRaw(decimal.RequireFromString("1.5"), 6); got.Cmp(raw) != 0 {
		t.Fatalf("ToRaw: got %s", got)
	}
	if got := ToRaw(decimal.RequireFromString("0.0000019"), 6); got.Int64() != 1 {
		t.Fatalf("ToRaw should truncate, got %s", got)
	}

	cache := NewTokenCache(newMockChain(), nil, nil)
	one, err := cache.OneUnit(context.Background(), tokenB)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if one.Cmp(want) != 0 {
		t.Fatalf("OneUnit: got %s", one)
	}
}
