// Package bot assembles the swap layer, grid scheduler and side services
// from process configuration.
package bot

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/trahn-swapgrid/internal/cache"
	"github.com/kjannette/trahn-swapgrid/internal/config"
	"github.com/kjannette/trahn-swapgrid/internal/ethereum"
	"github.com/kjannette/trahn-swapgrid/internal/paper"
	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

// paperWallet is the owner address used in paper mode when WALLET_ADDRESS
// is unset.
var paperWallet = common.HexToAddress("0x000000000000000000000000000000000000bEEF")

// Stack is the wired swap layer for one wallet.
type Stack struct {
	Chain    swap.Chain
	Router   swap.Router
	Tokens   *swap.TokenCache
	Quotes   *swap.QuoteEngine
	Executor *swap.Executor
	Wallet   common.Address
	WETH     common.Address
	// Paper is nil in live mode.
	Paper *paper.Venue

	closers []func()
}

// NewStack builds the chain, router and swap engine described by cfg: the
// in-memory paper venue when paper trading is enabled, otherwise a signing
// RPC client against the configured Uniswap deployment.
func NewStack(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Stack, error) {
	tiers, err := cfg.Tiers()
	if err != nil {
		return nil, err
	}
	kind := swap.VenueConcentrated
	if cfg.Venue == "v2" {
		kind = swap.VenueConstantProduct
	}

	s := &Stack{WETH: common.HexToAddress(cfg.WETHAddress)}
	routerAddr := common.HexToAddress(cfg.RouterAddress)

	if cfg.PaperTradingEnabled {
		s.Wallet = paperWallet
		if cfg.WalletAddress != "" {
			s.Wallet = common.HexToAddress(cfg.WalletAddress)
		}
		venue, err := newPaperVenue(cfg, kind, routerAddr, s.Wallet, s.WETH, log)
		if err != nil {
			return nil, err
		}
		s.Paper = venue
		s.Chain, s.Router = venue, venue
	} else {
		client, err := ethereum.NewClient(ethereum.ClientConfig{
			RPCURL:        cfg.EthereumAPIEndpoint,
			PrivateKey:    cfg.PrivateKey,
			ChainID:       cfg.ChainID,
			GasLimit:      cfg.GasLimit,
			GasMultiplier: cfg.GasMultiplier,
			RateLimit:     cfg.RPCRateLimit,
			Log:           log,
		})
		if err != nil {
			return nil, fmt.Errorf("ethereum client: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.Chain = client
		s.Wallet = client.WalletAddress()

		if kind == swap.VenueConstantProduct {
			s.Router, err = ethereum.NewUniswapV2(client, routerAddr)
		} else {
			s.Router, err = ethereum.NewUniswapV3(client, routerAddr, common.HexToAddress(cfg.QuoterAddress))
		}
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("router: %w", err)
		}
	}

	var store swap.DecimalsStore
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { rdb.Close() })
		store = cache.NewDecimalsStore(rdb, cfg.ChainID, 0)
	}

	s.Tokens = swap.NewTokenCache(s.Chain, store, log)
	s.Quotes = swap.NewQuoteEngine(s.Router, s.WETH, tiers, log)
	approvals := swap.NewApprovalManager(s.Chain, s.Router.Address(), log)
	s.Executor = swap.NewExecutor(s.Quotes, approvals, s.Router, s.Chain, swap.ExecutorOptions{
		Owner:    s.Wallet,
		Deadline: cfg.Deadline(),
		Log:      log,
	})

	log.WithFields(logrus.Fields{
		"wallet": s.Wallet.Hex(),
		"router": s.Router.Address().Hex(),
		"venue":  s.Router.Kind().String(),
		"paper":  s.Paper != nil,
	}).Info("swap stack ready")
	return s, nil
}

// Price returns the quote-token value of one whole base token.
func (s *Stack) Price(ctx context.Context, base, quote common.Address) (decimal.Decimal, error) {
	unit, err := s.Tokens.OneUnit(ctx, base)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := s.Quotes.GetQuote(ctx, base, quote, unit)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Tokens.ToHuman(ctx, quote, q.AmountOut)
}

// Balance returns owner's balance of token in whole units.
func (s *Stack) Balance(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	raw, err := s.Chain.BalanceOf(ctx, token, s.Wallet)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Tokens.ToHuman(ctx, token, raw)
}

// NativeBalance is the wallet's gas-coin balance in wei.
func (s *Stack) NativeBalance(ctx context.Context) (*big.Int, error) {
	if s.Paper != nil {
		return s.Paper.BalanceOf(ctx, paper.Native, s.Wallet)
	}
	if c, ok := s.Chain.(*ethereum.Client); ok {
		return c.NativeBalance(ctx)
	}
	return nil, fmt.Errorf("native balance not available")
}

func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
