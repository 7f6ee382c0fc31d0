package swap

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExecutor(r *mockRouter, chain *mockChain) *Executor {
	quotes := NewQuoteEngine(r, weth, nil, nil)
	approvals := NewApprovalManager(chain, r.Address(), nil)
	return NewExecutor(quotes, approvals, r, chain, ExecutorOptions{
		Owner: wallet,
		Now:   func() time.Time { return fixedNow },
	})
}

func TestAmountOutMin(t *testing.T) {
	q := big.NewInt(1_000_000)
	cases := []struct {
		bps  uint32
		want int64
	}{
		{0, 1_000_000},
		{50, 995_000},
		{500, 950_000},
		{9999, 100},
		{10000, 0},
	}
	for _, c := range cases {
		if got := AmountOutMin(q, c.bps); got.Int64() != c.want {
			t.Errorf("bps=%d: got %s, want %d", c.bps, got, c.want)
		}
	}
}

func TestAmountOutMin_Floors(t *testing.T) {
	// 999 * 9950 / 10000 = 994.005
	if got := AmountOutMin(big.NewInt(999), 50); got.Int64() != 994 {
		t.Fatalf("expected floor to 994, got %s", got)
	}
}

func TestSlippageFromPercent(t *testing.T) {
	if bps, err := SlippageFromPercent(0.5); err != nil || bps != 50 {
		t.Fatalf("0.5%% -> %d, %v", bps, err)
	}
	if bps, err := SlippageFromPercent(100); err != nil || bps != 10000 {
		t.Fatalf("100%% -> %d, %v", bps, err)
	}
	if _, err := SlippageFromPercent(101); !errors.Is(err, ErrInvalidSlippage) {
		t.Fatalf("expected ErrInvalidSlippage, got %v", err)
	}
}

func TestExecuteSwap_HappyPath(t *testing.T) {
	r := &mockRouter{kind: VenueConcentrated, tierOut: map[FeeTier]*big.Int{FeeMid: big.NewInt(2_000_000)}}
	chain := newMockChain()
	ex := newTestExecutor(r, chain)

	res, err := ex.ExecuteSwap(context.Background(), SwapRequest{
		TokenIn:     tokenA,
		TokenOut:    tokenB,
		AmountIn:    big.NewInt(500),
		SlippageBps: 50,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(chain.approvals) != 1 || chain.approvals[0].Int64() != 500 {
		t.Fatalf("expected exact approval of 500, got %v", chain.approvals)
	}
	if len(r.swaps) != 1 {
		t.Fatalf("expected one swap, got %d", len(r.swaps))
	}
	call := r.swaps[0]
	if call.AmountOutMin.Int64() != 1_990_000 {
		t.Fatalf("expected min out 1990000, got %s", call.AmountOutMin)
	}
	if call.Fee != FeeMid {
		t.Fatalf("expected mid tier on the call, got %s", call.Fee)
	}
	if !call.Deadline.Equal(fixedNow.Add(20 * time.Minute)) {
		t.Fatalf("expected 20 minute deadline, got %s", call.Deadline)
	}
	if call.Recipient != wallet {
		t.Fatalf("zero recipient should default to wallet, got %s", call.Recipient.Hex())
	}
	if call.NativeIn || call.NativeOut {
		t.Fatal("token swap must not be flagged native")
	}

	if res.TxHash != mockSwapHash(1) {
		t.Fatalf("unexpected tx hash %s", res.TxHash.Hex())
	}
	if res.AmountOut.Int64() != 2_000_000 {
		t.Fatalf("expected reported amount to be the quote, got %s", res.AmountOut)
	}
	wantGas := new(big.Int).Mul(big.NewInt(150000), big.NewInt(2_000_000_000))
	if res.GasCost().Cmp(wantGas) != 0 {
		t.Fatalf("gas cost %s, want %s", res.GasCost(), wantGas)
	}
}

func TestExecuteSwap_FullSlippageIsAccepted(t *testing.T) {
	r := &mockRouter{kind: VenueConstantProduct, pathOut: big.NewInt(77)}
	ex := newTestExecutor(r, newMockChain())

	if _, err := ex.ExecuteSwap(context.Background(), SwapRequest{
		TokenIn: tokenA, TokenOut: tokenB, AmountIn: big.NewInt(1), SlippageBps: 10000,
	}); err != nil {
		t.Fatal(err)
	}
	if r.swaps[0].AmountOutMin.Sign() != 0 {
		t.Fatalf("expected zero min out, got %s", r.swaps[0].AmountOutMin)
	}
}

func TestExecuteSwap_RejectsBadInput(t *testing.T) {
	r := &mockRouter{kind: VenueConstantProduct, pathOut: big.NewInt(77)}
	ex := newTestExecutor(r, newMockChain())

	_, err := ex.ExecuteSwap(context.Background(), SwapRequest{TokenIn: tokenA, TokenOut: tokenB, AmountIn: big.NewInt(0)})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	_, err = ex.ExecuteSwap(context.Background(), SwapRequest{TokenIn: tokenA, TokenOut: tokenB, AmountIn: big.NewInt(1), SlippageBps: 10001})
	if !errors.Is(err, ErrInvalidSlippage) {
		t.Fatalf("expected ErrInvalidSlippage, got %v", err)
	}
	if len(r.swaps) != 0 {
		t.Fatal("no swap should be submitted for invalid input")
	}
}

func TestExecuteSwap_NoLiquiditySkipsApproval(t *testing.T) {
	r := &mockRouter{kind: VenueConcentrated}
	chain := newMockChain()
	ex := newTestExecutor(r, chain)

	_, err := ex.ExecuteSwap(context.Background(), SwapRequest{TokenIn: tokenA, TokenOut: tokenB, AmountIn: big.NewInt(1)})
	if !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("expected ErrNoLiquidity, got %v", err)
	}
	if len(chain.approvals) != 0 || len(r.swaps) != 0 {
		t.Fatal("nothing should be sent when no route exists")
	}
}

func TestExecuteSwap_RevertedSwap(t *testing.T) {
	r := &mockRouter{kind: VenueConstantProduct, pathOut: big.NewInt(1000)}
	chain := newMockChain()
	chain.failed[mockSwapHash(1)] = true
	ex := newTestExecutor(r, chain)

	_, err := ex.ExecuteSwap(context.Background(), SwapRequest{TokenIn: tokenA, TokenOut: tokenB, AmountIn: big.NewInt(10), SlippageBps: 100})
	if !errors.Is(err, ErrSwapFailed) {
		t.Fatalf("expected ErrSwapFailed, got %v", err)
	}
	var sfe *SwapFailedError
	if !errors.As(err, &sfe) || sfe.AmountOutMin.Int64() != 990 {
		t.Fatalf("expected *SwapFailedError carrying min out 990, got %v", err)
	}
}

func TestSwapNativeForTokens_SkipsApproval(t *testing.T) {
	r := &mockRouter{kind: VenueConstantProduct, pathOut: big.NewInt(1000)}
	chain := newMockChain()
	ex := newTestExecutor(r, chain)
	other := common.HexToAddress("0x0000000000000000000000000000000000000999")

	if _, err := ex.SwapNativeForTokens(context.Background(), tokenA, big.NewInt(10), 50, other); err != nil {
		t.Fatal(err)
	}
	if len(chain.approvals) != 0 {
		t.Fatal("native input needs no approval")
	}
	call := r.swaps[0]
	if !call.NativeIn || call.NativeOut {
		t.Fatalf("expected native-in call, got %+v", call)
	}
	if call.Route[0] != weth || len(call.Route) != 2 {
		t.Fatalf("expected direct route from reference, got %v", call.Route)
	}
	if call.Recipient != other {
		t.Fatalf("explicit recipient lost, got %s", call.Recipient.Hex())
	}
}

func TestSwapTokensForNative_Approves(t *testing.T) {
	r := &mockRouter{kind: VenueConcentrated, tierOut: map[FeeTier]*big.Int{FeeLow: big.NewInt(3)}}
	chain := newMockChain()
	ex := newTestExecutor(r, chain)

	if _, err := ex.SwapTokensForNative(context.Background(), tokenA, big.NewInt(10), 0, common.Address{}); err != nil {
		t.Fatal(err)
	}
	if len(chain.approvals) != 1 {
		t.Fatalf("expected approval for token input, got %d", len(chain.approvals))
	}
	call := r.swaps[0]
	if !call.NativeOut || call.NativeIn {
		t.Fatalf("expected native-out call, got %+v", call)
	}
	if call.Route[1] != weth {
		t.Fatalf("expected output to be the reference token, got %v", call.Route)
	}
}
