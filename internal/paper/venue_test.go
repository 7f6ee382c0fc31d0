package paper

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

var (
	usdc   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	weth   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	router = common.HexToAddress("0x0000000000000000000000000000000000000003")
	owner  = common.HexToAddress("0x0000000000000000000000000000000000000004")
	now    = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
)

func newTestVenue(kind swap.VenueKind) *Venue {
	v := NewVenue(Options{
		Kind:    kind,
		Address: router,
		Owner:   owner,
		Now:     func() time.Time { return now },
	})
	v.AddToken(usdc, 6, decimal.NewFromInt(1))
	v.AddToken(weth, 18, decimal.NewFromInt(2000))
	v.Fund(usdc, owner, big.NewInt(10_000_000_000)) // 10k USDC
	v.Fund(Native, owner, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	return v
}

func executorFor(v *Venue) *swap.Executor {
	quotes := swap.NewQuoteEngine(v, weth, nil, nil)
	approvals := swap.NewApprovalManager(v, v.Address(), nil)
	return swap.NewExecutor(quotes, approvals, v, v, swap.ExecutorOptions{
		Owner: owner,
		Now:   func() time.Time { return now },
	})
}

func TestQuoteSingle_RespectsTierSwitch(t *testing.T) {
	v := newTestVenue(swap.VenueConcentrated)
	v.SetTier(swap.FeeLow, false)

	if _, err := v.QuoteSingle(context.Background(), usdc, weth, swap.FeeLow, big.NewInt(1_000_000)); err == nil {
		t.Fatal("disabled tier should revert")
	}
	out, err := v.QuoteSingle(context.Background(), usdc, weth, swap.FeeMid, big.NewInt(2_000_000_000))
	if err != nil {
		t.Fatal(err)
	}
	// 2000 USDC -> 1 WETH less 0.3%
	want, _ := new(big.Int).SetString("997000000000000000", 10)
	if out.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestExecutor_EndToEndConcentrated(t *testing.T) {
	v := newTestVenue(swap.VenueConcentrated)
	v.SetTier(swap.FeeLow, false)
	ex := executorFor(v)

	res, err := ex.ExecuteSwap(context.Background(), swap.SwapRequest{
		TokenIn:     usdc,
		TokenOut:    weth,
		AmountIn:    big.NewInt(100_000_000),
		SlippageBps: 50,
	})
	if err != nil {
		t.Fatal(err)
	}

	bal, _ := v.BalanceOf(context.Background(), weth, owner)
	if bal.Cmp(res.AmountOut) != 0 {
		t.Fatalf("settled %s, quoted %s", bal, res.AmountOut)
	}
	left, _ := v.BalanceOf(context.Background(), usdc, owner)
	if left.Int64() != 9_900_000_000 {
		t.Fatalf("expected 9900 USDC left, got %s", left)
	}
	allowance, _ := v.Allowance(context.Background(), usdc, owner, router)
	if allowance.Sign() != 0 {
		t.Fatalf("exact approval should be fully consumed, left %s", allowance)
	}
	if s := v.Stats(); s.Swaps != 1 || s.Approvals != 1 || s.GasSpent.Sign() <= 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestExecutor_EndToEndConstantProductTwoHop(t *testing.T) {
	dai := common.HexToAddress("0x0000000000000000000000000000000000000005")
	v := newTestVenue(swap.VenueConstantProduct)
	v.AddToken(dai, 18, decimal.NewFromInt(1))
	ex := executorFor(v)

	res, err := ex.ExecuteSwap(context.Background(), swap.SwapRequest{
		TokenIn: usdc, TokenOut: dai, AmountIn: big.NewInt(1_000_000), SlippageBps: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	// two hops at 0.3% each
	want := decimal.RequireFromString("0.997").Mul(decimal.RequireFromString("0.997")).Shift(18).BigInt()
	if res.AmountOut.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", res.AmountOut, want)
	}
}

func TestSwap_MinOutViolationFailsReceipt(t *testing.T) {
	v := newTestVenue(swap.VenueConcentrated)
	ctx := context.Background()
	v.Approve(ctx, usdc, router, big.NewInt(1_000_000))

	hash, err := v.Swap(ctx, swap.SwapCall{
		Route:        []common.Address{usdc, weth},
		Fee:          swap.FeeLow,
		AmountIn:     big.NewInt(1_000_000),
		AmountOutMin: new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		Recipient:    owner,
		Deadline:     now.Add(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	r, _ := v.WaitReceipt(ctx, hash)
	if r.Status != types.ReceiptStatusFailed {
		t.Fatal("expected failed receipt")
	}
	if bal, _ := v.BalanceOf(ctx, usdc, owner); bal.Int64() != 10_000_000_000 {
		t.Fatalf("reverted swap must not move funds, balance %s", bal)
	}
}

func TestSwap_RevertedSwapKeepsAllowance(t *testing.T) {
	v := newTestVenue(swap.VenueConcentrated)
	ctx := context.Background()
	approved := big.NewInt(20_000_000_000) // 20k USDC, wallet holds 10k
	v.Approve(ctx, usdc, router, approved)

	hash, err := v.Swap(ctx, swap.SwapCall{
		Route:        []common.Address{usdc, weth},
		Fee:          swap.FeeLow,
		AmountIn:     approved,
		AmountOutMin: new(big.Int),
		Recipient:    owner,
		Deadline:     now.Add(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	r, _ := v.WaitReceipt(ctx, hash)
	if r.Status != types.ReceiptStatusFailed {
		t.Fatal("swap beyond balance should revert")
	}
	left, _ := v.Allowance(ctx, usdc, owner, router)
	t.Logf("allowance after reverted swap: %s", left)
	if left.Cmp(approved) != 0 {
		t.Fatalf("reverted swap consumed allowance: %s left of %s", left, approved)
	}
	if bal, _ := v.BalanceOf(ctx, usdc, owner); bal.Int64() != 10_000_000_000 {
		t.Fatalf("reverted swap moved funds, balance %s", bal)
	}
}

func TestSwap_ExpiredDeadlineSurfacesAsSwapFailed(t *testing.T) {
	v := newTestVenue(swap.VenueConcentrated)
	quotes := swap.NewQuoteEngine(v, weth, nil, nil)
	approvals := swap.NewApprovalManager(v, router, nil)
	// submission clock runs behind the venue clock
	ex := swap.NewExecutor(quotes, approvals, v, v, swap.ExecutorOptions{
		Owner:    owner,
		Deadline: time.Minute,
		Now:      func() time.Time { return now.Add(-time.Hour) },
	})

	_, err := ex.ExecuteSwap(context.Background(), swap.SwapRequest{TokenIn: usdc, TokenOut: weth, AmountIn: big.NewInt(1_000_000)})
	if !errors.Is(err, swap.ErrSwapFailed) {
		t.Fatalf("expected ErrSwapFailed, got %v", err)
	}
}

func TestSwapNativeRoundTrip(t *testing.T) {
	v := newTestVenue(swap.VenueConstantProduct)
	ex := executorFor(v)
	ctx := context.Background()

	half := new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)
	if _, err := ex.SwapNativeForTokens(ctx, usdc, half, 50, common.Address{}); err != nil {
		t.Fatal(err)
	}
	got, _ := v.BalanceOf(ctx, usdc, owner)
	if got.Int64() <= 10_000_000_000 {
		t.Fatalf("expected USDC to increase, got %s", got)
	}

	if _, err := ex.SwapTokensForNative(ctx, usdc, big.NewInt(100_000_000), 50, common.Address{}); err != nil {
		t.Fatal(err)
	}
	if s := v.Stats(); s.Swaps != 2 || s.FailedSwaps != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}
