package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/trahn-swapgrid/internal/config"
	"github.com/kjannette/trahn-swapgrid/internal/paper"
	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

// newPaperVenue prices the quote token at 1 and the base token at
// PAPER_BASE_PRICE, then funds the wallet with the configured balances.
func newPaperVenue(cfg *config.Config, kind swap.VenueKind, router, wallet, weth common.Address, log logrus.FieldLogger) (*paper.Venue, error) {
	basePrice, err := decimal.NewFromString(cfg.PaperBasePrice)
	if err != nil {
		return nil, fmt.Errorf("PAPER_BASE_PRICE: %w", err)
	}
	gasPrice := decimal.NewFromFloat(cfg.PaperGasPriceGwei).Shift(9).BigInt()

	v := paper.NewVenue(paper.Options{
		Kind:     kind,
		Address:  router,
		Owner:    wallet,
		GasPrice: gasPrice,
		Log:      log,
	})

	base := common.HexToAddress(cfg.BaseTokenAddress)
	quote := common.HexToAddress(cfg.QuoteTokenAddress)
	baseDec, quoteDec := uint8(cfg.PaperBaseDecimals), uint8(cfg.PaperQuoteDecimals)

	v.AddToken(quote, quoteDec, decimal.NewFromInt(1))
	v.AddToken(base, baseDec, basePrice)
	if weth != base && weth != quote {
		// only a routing hop; its price cancels out
		v.AddToken(weth, 18, basePrice)
	}

	for _, f := range []struct {
		token  common.Address
		amount string
		dec    uint8
	}{
		{paper.Native, cfg.PaperInitialNative, 18},
		{base, cfg.PaperInitialBase, baseDec},
		{quote, cfg.PaperInitialQuote, quoteDec},
	} {
		amt, err := decimal.NewFromString(f.amount)
		if err != nil {
			return nil, fmt.Errorf("paper balance %q: %w", f.amount, err)
		}
		v.Fund(f.token, wallet, swap.ToRaw(amt, f.dec))
	}

	log.WithFields(logrus.Fields{
		"base_price": basePrice.String(),
		"native":     cfg.PaperInitialNative,
		"base":       cfg.PaperInitialBase + " " + cfg.BaseTokenSymbol,
		"quote":      cfg.PaperInitialQuote + " " + cfg.QuoteTokenSymbol,
	}).Info("paper venue funded")
	return v, nil
}

// PriceFeed is an off-chain spot price source.
type PriceFeed interface {
	GetPrice(ctx context.Context, coinID, vs string) (decimal.Decimal, error)
}

// PriceFollower moves the paper venue's base price with an external feed.
// The feed is quoted in USD, so the quote token is assumed to be a dollar
// stablecoin.
type PriceFollower struct {
	feed   PriceFeed
	venue  *paper.Venue
	token  common.Address
	coinID string
	log    logrus.FieldLogger
}

func NewPriceFollower(feed PriceFeed, venue *paper.Venue, token common.Address, coinID string, log logrus.FieldLogger) *PriceFollower {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PriceFollower{
		feed:   feed,
		venue:  venue,
		token:  token,
		coinID: coinID,
		log:    log.WithField("component", "paper-feed"),
	}
}

// Update fetches one price and applies it to the venue.
func (f *PriceFollower) Update(ctx context.Context) error {
	price, err := f.feed.GetPrice(ctx, f.coinID, "usd")
	if err != nil {
		return err
	}
	f.venue.SetPrice(f.token, price)
	f.log.WithField("price", price.String()).Debug("paper price updated")
	return nil
}

// Run updates the price every interval until ctx is done.
func (f *PriceFollower) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := f.Update(ctx); err != nil && ctx.Err() == nil {
			f.log.WithError(err).Warn("paper price update failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
