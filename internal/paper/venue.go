// Package paper provides an in-memory venue that satisfies both swap.Chain
// and swap.Router, for dry runs and end-to-end tests.
package paper

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

// Native is the balance key used for the chain's native coin.
var Native = common.Address{}

const (
	defaultGasPerSwap    = 150_000
	defaultGasPerApprove = 46_000
	// constant-product pools charge 0.30% per hop
	constantProductFee = 3000
)

type Options struct {
	Kind       swap.VenueKind
	Address    common.Address
	Owner      common.Address
	GasPrice   *big.Int
	GasPerSwap uint64
	Now        func() time.Time
	Log        logrus.FieldLogger
}

type allowanceKey struct {
	token, owner, spender common.Address
}

type Stats struct {
	Swaps       int
	FailedSwaps int
	Approvals   int
	GasSpent    *big.Int
}

type Venue struct {
	kind       swap.VenueKind
	address    common.Address
	owner      common.Address
	gasPrice   *big.Int
	gasPerSwap uint64
	now        func() time.Time
	log        logrus.FieldLogger

	mu         sync.Mutex
	decimals   map[common.Address]uint8
	prices     map[common.Address]decimal.Decimal
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
	tiers      map[swap.FeeTier]bool
	receipts   map[common.Hash]*types.Receipt
	nonce      uint64
	stats      Stats
}

func NewVenue(opts Options) *Venue {
	if opts.GasPrice == nil {
		opts.GasPrice = big.NewInt(1_000_000_000)
	}
	if opts.GasPerSwap == 0 {
		opts.GasPerSwap = defaultGasPerSwap
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	tiers := make(map[swap.FeeTier]bool)
	for _, t := range swap.DefaultFeeTiers {
		tiers[t] = true
	}
	return &Venue{
		kind:       opts.Kind,
		address:    opts.Address,
		owner:      opts.Owner,
		gasPrice:   new(big.Int).Set(opts.GasPrice),
		gasPerSwap: opts.GasPerSwap,
		now:        opts.Now,
		log:        opts.Log.WithField("component", "paper"),
		decimals:   make(map[common.Address]uint8),
		prices:     make(map[common.Address]decimal.Decimal),
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		tiers:      tiers,
		receipts:   make(map[common.Hash]*types.Receipt),
		stats:      Stats{GasSpent: new(big.Int)},
	}
}

// AddToken registers a token with its decimals and a price in any common
// numeraire (e.g. USD). Output amounts are derived from the price ratio.
func (v *Venue) AddToken(token common.Address, dec uint8, price decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.decimals[token] = dec
	v.prices[token] = price
}

func (v *Venue) SetPrice(token common.Address, price decimal.Decimal) {
	v.mu.Lock()
	v.prices[token] = price
	v.mu.Unlock()
}

// SetTier enables or disables the pool for one fee tier.
func (v *Venue) SetTier(fee swap.FeeTier, enabled bool) {
	v.mu.Lock()
	v.tiers[fee] = enabled
	v.mu.Unlock()
}

// Fund credits amount of token (or Native) to owner.
func (v *Venue) Fund(token, owner common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(token, owner, amount)
}

func (v *Venue) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.stats
	s.GasSpent = new(big.Int).Set(v.stats.GasSpent)
	return s
}

// swap.Router

func (v *Venue) Address() common.Address { return v.address }
func (v *Venue) Kind() swap.VenueKind    { return v.kind }

func (v *Venue) QuotePath(_ context.Context, path []common.Address, amountIn *big.Int) (*big.Int, error) {
	if v.kind != swap.VenueConstantProduct {
		return nil, fmt.Errorf("path quotes need a constant-product venue")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quotePathLocked(path, amountIn)
}

func (v *Venue) QuoteSingle(_ context.Context, tokenIn, tokenOut common.Address, fee swap.FeeTier, amountIn *big.Int) (*big.Int, error) {
	if v.kind != swap.VenueConcentrated {
		return nil, fmt.Errorf("fee tiers need a concentrated venue")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.tiers[fee] {
		return nil, fmt.Errorf("%w: no pool for %s", swap.ErrReverted, fee)
	}
	return v.convert(tokenIn, tokenOut, amountIn, uint32(fee))
}

// Swap settles immediately. Violations of the deadline, amountOutMin,
// balance or allowance produce a failed receipt rather than an error, as
// they would on chain.
func (v *Venue) Swap(_ context.Context, call swap.SwapCall) (common.Hash, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	hash := v.nextHash()
	gasCost := new(big.Int).Mul(v.gasPrice, new(big.Int).SetUint64(v.gasPerSwap))
	v.debitGas(gasCost)

	out, reason := v.settle(call)
	status := types.ReceiptStatusSuccessful
	if reason != "" {
		status = types.ReceiptStatusFailed
		v.stats.FailedSwaps++
		v.log.WithFields(logrus.Fields{"tx": hash.Hex(), "reason": reason}).Warn("paper swap reverted")
	} else {
		v.stats.Swaps++
		v.log.WithFields(logrus.Fields{
			"tx":        hash.Hex(),
			"amountIn":  call.AmountIn.String(),
			"amountOut": out.String(),
		}).Info("paper swap filled")
	}
	v.receipts[hash] = &types.Receipt{
		TxHash:            hash,
		Status:            status,
		GasUsed:           v.gasPerSwap,
		EffectiveGasPrice: new(big.Int).Set(v.gasPrice),
	}
	return hash, nil
}

func (v *Venue) settle(call swap.SwapCall) (*big.Int, string) {
	if len(call.Route) < 2 {
		return nil, "empty route"
	}
	if v.now().After(call.Deadline) {
		return nil, "Transaction too old"
	}

	var (
		out *big.Int
		err error
	)
	if v.kind == swap.VenueConcentrated {
		if !v.tiers[call.Fee] {
			return nil, "no pool"
		}
		out, err = v.convert(call.Route[0], call.Route[len(call.Route)-1], call.AmountIn, uint32(call.Fee))
	} else {
		out, err = v.quotePathLocked(call.Route, call.AmountIn)
	}
	if err != nil {
		return nil, err.Error()
	}
	if out.Cmp(call.AmountOutMin) < 0 {
		return nil, "Too little received"
	}

	tokenIn, tokenOut := call.Route[0], call.Route[len(call.Route)-1]
	key := allowanceKey{token: tokenIn, owner: v.owner, spender: v.address}
	var allowed *big.Int
	if call.NativeIn {
		tokenIn = Native
	} else {
		allowed = v.allowances[key]
		if allowed == nil || allowed.Cmp(call.AmountIn) < 0 {
			return nil, "insufficient allowance"
		}
	}
	if call.NativeOut {
		tokenOut = Native
	}
	if v.balance(tokenIn, v.owner).Cmp(call.AmountIn) < 0 {
		return nil, "insufficient balance"
	}

	// all checks passed; a revert above leaves the allowance untouched
	if allowed != nil {
		v.allowances[key] = new(big.Int).Sub(allowed, call.AmountIn)
	}
	v.credit(tokenIn, v.owner, new(big.Int).Neg(call.AmountIn))
	v.credit(tokenOut, call.Recipient, out)
	return out, ""
}

// swap.Chain

func (v *Venue) Decimals(_ context.Context, token common.Address) (uint8, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	dec, ok := v.decimals[token]
	if !ok {
		return 0, fmt.Errorf("unknown token %s", token.Hex())
	}
	return dec, nil
}

func (v *Venue) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance(token, owner)), nil
}

func (v *Venue) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if a := v.allowances[allowanceKey{token, owner, spender}]; a != nil {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (v *Venue) Approve(_ context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	hash := v.nextHash()
	v.allowances[allowanceKey{token, v.owner, spender}] = new(big.Int).Set(amount)
	v.debitGas(new(big.Int).Mul(v.gasPrice, big.NewInt(defaultGasPerApprove)))
	v.stats.Approvals++
	v.receipts[hash] = &types.Receipt{
		TxHash:            hash,
		Status:            types.ReceiptStatusSuccessful,
		GasUsed:           defaultGasPerApprove,
		EffectiveGasPrice: new(big.Int).Set(v.gasPrice),
	}
	return hash, nil
}

func (v *Venue) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", hash.Hex())
	}
	return r, nil
}

// --- helpers (mu held) ---

func (v *Venue) quotePathLocked(path []common.Address, amountIn *big.Int) (*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("path needs at least two tokens")
	}
	amount := amountIn
	for i := 0; i+1 < len(path); i++ {
		out, err := v.convert(path[i], path[i+1], amount, constantProductFee)
		if err != nil {
			return nil, err
		}
		amount = out
	}
	return amount, nil
}

// convert prices amountIn of tokenIn in tokenOut, less a fee in
// hundredths of a basis point.
func (v *Venue) convert(tokenIn, tokenOut common.Address, amountIn *big.Int, fee uint32) (*big.Int, error) {
	decIn, okIn := v.decimals[tokenIn]
	decOut, okOut := v.decimals[tokenOut]
	if !okIn || !okOut {
		return nil, fmt.Errorf("%w: no pool for %s/%s", swap.ErrReverted, tokenIn.Hex(), tokenOut.Hex())
	}
	pIn, pOut := v.prices[tokenIn], v.prices[tokenOut]
	if !pIn.IsPositive() || !pOut.IsPositive() {
		return nil, fmt.Errorf("%w: no price for %s/%s", swap.ErrReverted, tokenIn.Hex(), tokenOut.Hex())
	}

	human := swap.ToHuman(amountIn, decIn).Mul(pIn).Div(pOut)
	afterFee := human.Mul(decimal.NewFromInt(int64(1_000_000 - fee))).Div(decimal.NewFromInt(1_000_000))
	return swap.ToRaw(afterFee, decOut), nil
}

func (v *Venue) balance(token, owner common.Address) *big.Int {
	if b := v.balances[token][owner]; b != nil {
		return b
	}
	return new(big.Int)
}

func (v *Venue) credit(token, owner common.Address, amount *big.Int) {
	m, ok := v.balances[token]
	if !ok {
		m = make(map[common.Address]*big.Int)
		v.balances[token] = m
	}
	m[owner] = new(big.Int).Add(v.balance(token, owner), amount)
}

func (v *Venue) debitGas(cost *big.Int) {
	v.credit(Native, v.owner, new(big.Int).Neg(cost))
	v.stats.GasSpent.Add(v.stats.GasSpent, cost)
}

func (v *Venue) nextHash() common.Hash {
	v.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v.nonce)
	return crypto.Keccak256Hash(v.address.Bytes(), buf[:])
}
