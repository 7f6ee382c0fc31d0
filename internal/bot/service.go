package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kjannette/trahn-swapgrid/internal/api"
	"github.com/kjannette/trahn-swapgrid/internal/config"
	"github.com/kjannette/trahn-swapgrid/internal/db"
	"github.com/kjannette/trahn-swapgrid/internal/external"
	"github.com/kjannette/trahn-swapgrid/internal/grid"
	"github.com/kjannette/trahn-swapgrid/internal/ledger"
	"github.com/kjannette/trahn-swapgrid/internal/models"
	"github.com/kjannette/trahn-swapgrid/internal/notifications"
	"github.com/kjannette/trahn-swapgrid/internal/repository"
	"github.com/kjannette/trahn-swapgrid/internal/risk"
	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

const subscriberBuffer = 64

// Service runs one grid with its side services: status API, webhook
// notifier, Postgres journal, paper price feed and periodic status report.
type Service struct {
	cfg   *config.Config
	log   logrus.FieldLogger
	stack *Stack
	base  common.Address
	quote common.Address
	pair  notifications.Pair

	sched    *grid.Scheduler
	book     *ledger.Ledger
	pool     *pgxpool.Pool
	trades   *repository.TradeRepo
	sender   *notifications.Sender
	server   *api.Server
	follower *PriceFollower
}

func NewService(ctx context.Context, cfg *config.Config, stack *Stack, log logrus.FieldLogger) (*Service, error) {
	s := &Service{
		cfg:   cfg,
		log:   log.WithField("component", "bot"),
		stack: stack,
		base:  common.HexToAddress(cfg.BaseTokenAddress),
		quote: common.HexToAddress(cfg.QuoteTokenAddress),
		book:  ledger.New(),
	}

	baseDec, err := stack.Tokens.Decimals(ctx, s.base)
	if err != nil {
		return nil, fmt.Errorf("base token: %w", err)
	}
	quoteDec, err := stack.Tokens.Decimals(ctx, s.quote)
	if err != nil {
		return nil, fmt.Errorf("quote token: %w", err)
	}
	s.pair = notifications.Pair{
		BaseSymbol:    cfg.BaseTokenSymbol,
		QuoteSymbol:   cfg.QuoteTokenSymbol,
		BaseDecimals:  baseDec,
		QuoteDecimals: quoteDec,
	}

	if cfg.JournalEnabled() {
		s.log.WithFields(logrus.Fields{"host": cfg.DBHost, "db": cfg.DBName}).Info("connecting to database")
		pool, err := db.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := db.TestConnection(ctx, pool, s.log); err != nil {
			pool.Close()
			return nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		s.pool = pool
		s.trades = repository.NewTradeRepo(pool, cfg.PaperTradingEnabled)
	}

	opts := grid.Options{
		TickTimeout: cfg.TickTimeout(),
		Ledger:      s.book,
		Log:         log,
	}
	limits := risk.Limits{
		MaxDailyTrades:    cfg.MaxDailyTrades,
		MaxTradeAmount:    swap.ToRaw(cfg.TradeLimit(), quoteDec),
		StopLossPercent:   cfg.StopLossPercent,
		TakeProfitPercent: cfg.TakeProfitPercent,
	}
	if limits.Enabled() {
		var counter risk.DailyTradeCounter = s.book
		if s.trades != nil {
			counter = s.trades
		}
		opts.Guard = risk.NewGuardian(limits, counter)
	}
	s.sched = grid.NewScheduler(stack.Quotes, stack.Executor, stack.Tokens, opts)

	s.sender = notifications.NewSender(cfg.WebhookURL, cfg.BotName, log)

	if cfg.APIPort > 0 {
		apiCfg := api.ServerConfig{
			Port:       cfg.APIPort,
			APIKey:     cfg.APIKey,
			CORSOrigin: cfg.CORSAllowOrigin,
			Grid:       s.sched,
			Log:        log,
		}
		if s.trades != nil {
			apiCfg.Journal = s.trades
			apiCfg.Database = s.pool
		}
		s.server = api.NewServer(apiCfg)
	}

	if stack.Paper != nil && cfg.PaperPriceSource == "coingecko" {
		s.follower = NewPriceFollower(external.NewCoinGeckoClient("", log), stack.Paper, s.base, cfg.PaperCoinGeckoID, log)
	}

	return s, nil
}

func (s *Service) Scheduler() *grid.Scheduler { return s.sched }

// InitializeGrid lays out the ladder, centering it on the current price when
// no explicit bounds are configured.
func (s *Service) InitializeGrid(ctx context.Context) error {
	if s.follower != nil {
		if err := s.follower.Update(ctx); err != nil {
			s.log.WithError(err).Warn("initial paper price fetch failed, using configured price")
		}
	}

	price, err := s.stack.Price(ctx, s.base, s.quote)
	if err != nil {
		return fmt.Errorf("probe price: %w", err)
	}
	spot, _ := price.Float64()
	lower, upper := s.cfg.Bounds(spot)

	bps, err := swap.SlippageFromPercent(s.cfg.SlippagePercent)
	if err != nil {
		return err
	}
	gridCfg := models.GridBotConfig{
		BaseToken:       s.base,
		QuoteToken:      s.quote,
		LowerPrice:      lower,
		UpperPrice:      upper,
		LevelCount:      s.cfg.GridLevels,
		TotalInvestment: swap.ToRaw(s.cfg.Investment(), s.pair.QuoteDecimals),
		SlippageBps:     bps,
	}
	if err := gridCfg.Validate(); err != nil {
		return fmt.Errorf("grid config: %w", err)
	}
	if err := s.sched.Initialize(gridCfg); err != nil {
		return err
	}

	snap := s.sched.Snapshot()
	s.log.Infof("grid ladder at %s %s/%s\n%s", price.StringFixed(4), s.cfg.BaseTokenSymbol, s.cfg.QuoteTokenSymbol,
		grid.FormatGridDisplay(snap.Levels, spot))
	return nil
}

// RunOnce evaluates the grid a single time. Trade events are still
// journaled and notified before it returns.
func (s *Service) RunOnce(ctx context.Context) error {
	var sinks []func()
	if s.trades != nil {
		events, cancel := s.sched.Subscribe(subscriberBuffer)
		journal := repository.NewJournal(s.trades, s.log)
		sinks = append(sinks, func() { cancel(); journal.Run(ctx, events) })
	}
	if s.sender.Enabled() {
		events, cancel := s.sched.Subscribe(subscriberBuffer)
		notifier := notifications.NewNotifier(s.sender, s.pair)
		sinks = append(sinks, func() { cancel(); notifier.Run(ctx, events) })
	}

	err := s.sched.CheckAndExecute(ctx)
	for _, drain := range sinks {
		drain()
	}
	s.reportStatus(ctx)
	return err
}

// Run starts every service and blocks until ctx is cancelled or one of them
// fails. Notifier and journal drain the final stop event before exiting.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	detached := context.WithoutCancel(ctx)

	var closeSubs []func()
	if s.sender.Enabled() {
		events, cancel := s.sched.Subscribe(subscriberBuffer)
		closeSubs = append(closeSubs, cancel)
		notifier := notifications.NewNotifier(s.sender, s.pair)
		g.Go(func() error {
			notifier.Run(detached, events)
			return nil
		})
	}
	if s.trades != nil {
		events, cancel := s.sched.Subscribe(subscriberBuffer)
		closeSubs = append(closeSubs, cancel)
		journal := repository.NewJournal(s.trades, s.log)
		g.Go(func() error {
			journal.Run(detached, events)
			return nil
		})
	}

	if s.server != nil {
		g.Go(s.server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(detached, 5*time.Second)
			defer cancel()
			return s.server.Shutdown(shutdownCtx)
		})
	}

	if s.follower != nil {
		g.Go(func() error {
			s.follower.Run(gctx, s.cfg.PriceCheckInterval())
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, cancel := range closeSubs {
				cancel()
			}
		}()
		if err := s.sched.Start(gctx, s.cfg.PriceCheckInterval()); err != nil {
			return fmt.Errorf("start grid: %w", err)
		}
		<-gctx.Done()
		s.sched.Stop()
		return nil
	})

	if interval := s.cfg.StatusReportInterval(); interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s.reportStatus(gctx)
				}
			}
		})
	}

	s.log.Info("all services started")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) reportStatus(ctx context.Context) {
	snap := s.sched.Snapshot()
	if snap == nil {
		return
	}
	stats := grid.GetGridStats(snap.Levels)
	pnl := s.book.GetTotalPnL()

	fields := logrus.Fields{
		"last_price":    snap.LastPrice,
		"trades":        pnl.Trades,
		"open_buys":     stats.OpenBuys,
		"pending_buys":  stats.PendingBuys,
		"pending_sells": stats.PendingSells,
		"profit":        swap.ToHuman(pnl.Profit, s.pair.QuoteDecimals).String() + " " + s.pair.QuoteSymbol,
		"gas_wei":       pnl.GasCosts.String(),
	}
	base, baseErr := s.stack.Balance(ctx, s.base)
	quote, quoteErr := s.stack.Balance(ctx, s.quote)
	if baseErr == nil && quoteErr == nil {
		fields["base_balance"] = base.String()
		fields["quote_balance"] = quote.String()
	}
	if native, err := s.stack.NativeBalance(ctx); err == nil {
		fields["native_wei"] = native.String()
	}
	if snap.LastPrice > 0 && grid.IsPriceOutsideGrid(snap.LastPrice, snap.Levels) {
		s.log.WithField("price", snap.LastPrice).Warn("price outside grid band")
	}
	s.log.WithFields(fields).Info("status")

	if s.sender.Enabled() {
		prefix := ""
		if s.cfg.PaperTradingEnabled {
			prefix = "[PAPER] "
		}
		err := s.sender.Send(ctx, fmt.Sprintf("%sStatus: %s @ %.4f | trades %d | profit %s %s | levels %d buys, %d sells, %d open",
			prefix, s.pair.BaseSymbol, snap.LastPrice, pnl.Trades,
			swap.ToHuman(pnl.Profit, s.pair.QuoteDecimals).StringFixed(2), s.pair.QuoteSymbol,
			stats.PendingBuys, stats.PendingSells, stats.OpenBuys))
		if err != nil {
			s.log.WithError(err).Warn("status notification not delivered")
		}
	}
}

func (s *Service) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
