// Package grid runs the price-band strategy: it lays out a ladder of levels
// between two prices and, on each tick, swaps at the first level the current
// price has crossed.
package grid

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/trahn-swapgrid/internal/ledger"
	"github.com/kjannette/trahn-swapgrid/internal/models"
	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultTickTimeout = 2 * time.Minute
)

var (
	ErrNotInitialized = errors.New("grid not initialized")
	ErrAlreadyRunning = errors.New("grid already running")
	ErrTickInProgress = errors.New("previous tick still in progress")
)

type Quoter interface {
	GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*swap.SwapQuote, error)
}

type Swapper interface {
	ExecuteSwap(ctx context.Context, req swap.SwapRequest) (*swap.SwapResult, error)
}

type DecimalsSource interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// Guard vetoes trades. tradeValue is in raw quote-token units; pnlPercent is
// realized profit as a percentage of the total investment.
type Guard interface {
	PreTradeCheck(ctx context.Context, tradeValue *big.Int) error
	PortfolioCheck(pnlPercent float64) error
}

type Options struct {
	TickTimeout time.Duration
	Guard       Guard
	Ledger      *ledger.Ledger
	Bus         *Bus
	Now         func() time.Time
	Log         logrus.FieldLogger
}

// Scheduler exclusively owns one GridBotState. Ticks never overlap: a tick
// that starts while another is running is skipped.
type Scheduler struct {
	quoter      Quoter
	swapper     Swapper
	tokens      DecimalsSource
	guard       Guard
	book        *ledger.Ledger
	bus         *Bus
	tickTimeout time.Duration
	now         func() time.Time
	log         logrus.FieldLogger

	mu    sync.Mutex
	state *models.GridBotState

	busy   atomic.Bool
	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(quoter Quoter, swapper Swapper, tokens DecimalsSource, opts Options) *Scheduler {
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = DefaultTickTimeout
	}
	if opts.Ledger == nil {
		opts.Ledger = ledger.New()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Bus == nil {
		opts.Bus = NewBus(opts.Log)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		quoter:      quoter,
		swapper:     swapper,
		tokens:      tokens,
		guard:       opts.Guard,
		book:        opts.Ledger,
		bus:         opts.Bus,
		tickTimeout: opts.TickTimeout,
		now:         opts.Now,
		log:         opts.Log.WithField("component", "grid"),
	}
}

func (s *Scheduler) Ledger() *ledger.Ledger { return s.book }
func (s *Scheduler) Bus() *Bus              { return s.bus }

// Subscribe is shorthand for Bus().Subscribe.
func (s *Scheduler) Subscribe(buffer int) (<-chan Event, func()) {
	return s.bus.Subscribe(buffer)
}

// Initialize computes the ladder for cfg. It fails while the grid runs or
// while an evaluation is in flight.
func (s *Scheduler) Initialize(cfg models.GridBotConfig) error {
	levels, err := CalculateLevels(cfg)
	if err != nil {
		return fmt.Errorf("calculate levels: %w", err)
	}

	if !s.busy.CompareAndSwap(false, true) {
		return ErrTickInProgress
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	if s.state != nil && s.state.Running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = &models.GridBotState{
		Running:       false,
		Config:        cfg,
		Levels:        levels,
		TotalInvested: s.book.TotalInvested(),
		TotalProfit:   s.book.TotalProfit(),
	}
	snap := snapshot(s.state, s.book)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"levels": cfg.LevelCount,
		"lower":  cfg.LowerPrice,
		"upper":  cfg.UpperPrice,
		"step":   PriceStep(cfg),
	}).Info("grid initialized")
	s.bus.Publish(Event{Kind: EventStateChange, State: snap})
	return nil
}

// Snapshot returns a copy of the current state, or nil before Initialize.
func (s *Scheduler) Snapshot() *models.GridBotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return snapshot(s.state, s.book)
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != nil && s.state.Running
}

// Start evaluates once immediately and then every interval until Stop or
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.state.Running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state.Running = true
	snap := snapshot(s.state, s.book)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.WithField("interval", interval.String()).Info("grid started")
	s.bus.Publish(Event{Kind: EventStateChange, State: snap})

	go s.loop(loopCtx, interval, s.done)
	return nil
}

// Stop halts scheduling and waits for the loop to exit. A tick already in
// flight finishes first.
func (s *Scheduler) Stop() {
	s.loopMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.setStopped()
}

func (s *Scheduler) setStopped() {
	s.mu.Lock()
	if s.state == nil || !s.state.Running {
		s.mu.Unlock()
		return
	}
	s.state.Running = false
	snap := snapshot(s.state, s.book)
	s.mu.Unlock()

	s.log.Info("grid stopped")
	s.bus.Publish(Event{Kind: EventStateChange, State: snap})
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer s.setStopped()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one evaluation detached from loop cancellation so Stop never
// interrupts a submitted swap, bounded by the tick timeout.
func (s *Scheduler) tick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tickTimeout)
	defer cancel()

	err := s.CheckAndExecute(tctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrTickInProgress):
		s.log.Debug("tick skipped, previous tick still running")
	case errors.Is(err, context.DeadlineExceeded):
		s.log.WithField("timeout", s.tickTimeout.String()).Warn("tick timed out, will retry next interval")
	default:
		s.log.WithError(err).Warn("tick failed")
	}
}

// CheckAndExecute performs one evaluation: probe the price for one whole
// base token, then swap at the first due level in index order. At most one
// trade executes. A failing level is logged and the scan moves on.
func (s *Scheduler) CheckAndExecute(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrTickInProgress
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	cfg := s.state.Config
	s.mu.Unlock()

	decBase, err := s.tokens.Decimals(ctx, cfg.BaseToken)
	if err != nil {
		return fmt.Errorf("base decimals: %w", err)
	}
	decQuote, err := s.tokens.Decimals(ctx, cfg.QuoteToken)
	if err != nil {
		return fmt.Errorf("quote decimals: %w", err)
	}

	price, err := s.currentPrice(ctx, cfg, decBase, decQuote)
	if err != nil {
		return fmt.Errorf("price probe: %w", err)
	}

	s.mu.Lock()
	s.state.LastCheckTime = s.now()
	s.state.LastPrice = price
	levelCount := len(s.state.Levels)
	s.mu.Unlock()

	if s.guard != nil {
		if err := s.guard.PortfolioCheck(s.pnlPercent(cfg)); err != nil {
			return err
		}
	}

	log := s.log.WithField("price", price)
	log.Debug("checking levels")

	for i := 0; i < levelCount; i++ {
		s.mu.Lock()
		level := s.state.Levels[i]
		s.mu.Unlock()

		if !IsDue(level, price) {
			continue
		}

		entry := log.WithFields(logrus.Fields{"level": level.Index, "side": string(level.Side), "levelPrice": level.Price})
		entry.Info("level due")

		rec, err := s.executeLevel(ctx, cfg, level, decBase, decQuote)
		if err != nil {
			entry.WithError(err).Warn("level execution failed")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		entry.WithField("tx", rec.TxHash.Hex()).Info("level filled")
		s.bus.Publish(Event{Kind: EventTrade, Trade: &rec})
		s.bus.Publish(Event{Kind: EventStateChange, State: s.Snapshot()})
		return nil
	}
	return nil
}

func (s *Scheduler) currentPrice(ctx context.Context, cfg models.GridBotConfig, decBase, decQuote uint8) (float64, error) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decBase)), nil)
	q, err := s.quoter.GetQuote(ctx, cfg.BaseToken, cfg.QuoteToken, one)
	if err != nil {
		return 0, err
	}
	return swap.ToHuman(q.AmountOut, decQuote).InexactFloat64(), nil
}

func (s *Scheduler) pnlPercent(cfg models.GridBotConfig) float64 {
	profit := decimal.NewFromBigInt(s.book.TotalProfit(), 0)
	total := decimal.NewFromBigInt(cfg.TotalInvestment, 0)
	if total.IsZero() {
		return 0
	}
	return profit.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// executeLevel swaps for one level and, on success, applies the fill under
// the state lock. Buys spend the allocation in quote; sells spend the base
// amount the allocation buys at the level price.
func (s *Scheduler) executeLevel(ctx context.Context, cfg models.GridBotConfig, level models.GridLevel, decBase, decQuote uint8) (models.TradeRecord, error) {
	req := swap.SwapRequest{SlippageBps: cfg.SlippageBps}
	switch level.Side {
	case models.SideBuy:
		req.TokenIn, req.TokenOut = cfg.QuoteToken, cfg.BaseToken
		req.AmountIn = new(big.Int).Set(level.AllocatedAmount)
	case models.SideSell:
		req.TokenIn, req.TokenOut = cfg.BaseToken, cfg.QuoteToken
		req.AmountIn = BaseAmountAt(level.AllocatedAmount, level.Price, decBase, decQuote)
	default:
		return models.TradeRecord{}, fmt.Errorf("level %d has no side", level.Index)
	}
	if req.AmountIn.Sign() <= 0 {
		return models.TradeRecord{}, fmt.Errorf("level %d: amount rounds to zero", level.Index)
	}

	if s.guard != nil {
		if err := s.guard.PreTradeCheck(ctx, level.AllocatedAmount); err != nil {
			return models.TradeRecord{}, err
		}
	}

	res, err := s.swapper.ExecuteSwap(ctx, req)
	if err != nil {
		return models.TradeRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lv := &s.state.Levels[level.Index]
	at := s.now()
	applyFill(lv, res.TxHash, at)

	rec := models.TradeRecord{
		ID:        uuid.NewString(),
		Time:      at,
		GridLevel: lv.Index,
		Side:      lv.Side,
		Price:     lv.Price,
		AmountIn:  res.AmountIn,
		AmountOut: res.AmountOut,
		TxHash:    res.TxHash,
		GasCost:   res.GasCost(),
	}
	if lv.Side == models.SideSell && matchBuy(s.state.Levels, lv.Index) {
		rec.Profit = sellProfit(res.AmountOut, lv.AllocatedAmount)
	}
	recordTrade(s.state, s.book, rec)
	flipLevel(lv)
	return rec, nil
}

// BaseAmountAt converts a quote-denominated allocation into raw base units
// at price (quote per whole base).
func BaseAmountAt(quoteAmount *big.Int, price float64, decBase, decQuote uint8) *big.Int {
	if price <= 0 {
		return new(big.Int)
	}
	human := swap.ToHuman(quoteAmount, decQuote).Div(decimal.NewFromFloat(price))
	return swap.ToRaw(human, decBase)
}
