package grid

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

var (
	baseToken  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	quoteToken = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

type mockTokens struct{}

func (mockTokens) Decimals(_ context.Context, token common.Address) (uint8, error) {
	switch token {
	case baseToken:
		return 18, nil
	case quoteToken:
		return 6, nil
	}
	return 0, fmt.Errorf("unknown token %s", token.Hex())
}

type mockQuoter struct {
	mu    sync.Mutex
	price float64
	err   error
	calls int
}

func (m *mockQuoter) setPrice(p float64) {
	m.mu.Lock()
	m.price = p
	m.mu.Unlock()
}

func (m *mockQuoter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockQuoter) GetQuote(_ context.Context, _, _ common.Address, _ *big.Int) (*swap.SwapQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &swap.SwapQuote{
		AmountOut:   decimal.NewFromFloat(m.price).Shift(6).BigInt(),
		Route:       []common.Address{baseToken, quoteToken},
		PoolFeeTier: swap.FeeMid,
	}, nil
}

type mockSwapper struct {
	mu        sync.Mutex
	requests  []swap.SwapRequest
	failCalls map[int]bool // 1-based call numbers that fail
	amountOut *big.Int
	block     chan struct{}
	entered   chan struct{}
	waitCtx   bool
}

func (m *mockSwapper) ExecuteSwap(ctx context.Context, req swap.SwapRequest) (*swap.SwapResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	fail := m.failCalls[n]
	block, entered, waitCtx := m.block, m.entered, m.waitCtx
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if waitCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, &swap.SwapFailedError{TxHash: common.BigToHash(big.NewInt(int64(n))), AmountOutMin: big.NewInt(0)}
	}

	out := m.amountOut
	if out == nil {
		out = big.NewInt(1)
	}
	return &swap.SwapResult{
		TxHash:            common.BigToHash(big.NewInt(int64(1000 + n))),
		AmountIn:          new(big.Int).Set(req.AmountIn),
		AmountOut:         new(big.Int).Set(out),
		GasUsed:           100_000,
		EffectiveGasPrice: big.NewInt(3),
	}, nil
}

func (m *mockSwapper) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type mockGuard struct {
	tradeErr     error
	portfolioErr error
	lastPnL      float64
}

func (g *mockGuard) PreTradeCheck(context.Context, *big.Int) error { return g.tradeErr }
func (g *mockGuard) PortfolioCheck(pnl float64) error {
	g.lastPnL = pnl
	return g.portfolioErr
}

var errBlocked = errors.New("trade blocked")
