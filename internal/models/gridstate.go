package models

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// GridBotConfig is fixed once a grid has been initialized.
// Prices are quote-token units per one whole base token; TotalInvestment is
// denominated in raw quote-token units.
type GridBotConfig struct {
	BaseToken       common.Address `json:"baseToken"`
	QuoteToken      common.Address `json:"quoteToken"`
	UpperPrice      float64        `json:"upperPrice"`
	LowerPrice      float64        `json:"lowerPrice"`
	LevelCount      int            `json:"levelCount"`
	TotalInvestment *big.Int       `json:"totalInvestment"`
	SlippageBps     uint32         `json:"slippageBps"`
}

func (c GridBotConfig) Validate() error {
	if c.LevelCount < 2 {
		return fmt.Errorf("level count must be at least 2, got %d", c.LevelCount)
	}
	if c.LowerPrice <= 0 {
		return fmt.Errorf("lower price must be positive")
	}
	if c.UpperPrice <= c.LowerPrice {
		return fmt.Errorf("upper price (%.6f) must be above lower price (%.6f)", c.UpperPrice, c.LowerPrice)
	}
	if c.TotalInvestment == nil || c.TotalInvestment.Sign() <= 0 {
		return fmt.Errorf("total investment must be positive")
	}
	if c.SlippageBps > 10000 {
		return fmt.Errorf("slippage %d bps exceeds 10000", c.SlippageBps)
	}
	if c.BaseToken == (common.Address{}) || c.QuoteToken == (common.Address{}) {
		return fmt.Errorf("base and quote tokens are required")
	}
	if c.BaseToken == c.QuoteToken {
		return fmt.Errorf("base and quote tokens must differ")
	}
	return nil
}

type GridLevel struct {
	Index           int          `json:"index"`
	Price           float64      `json:"price"`
	Side            Side         `json:"side"`
	AllocatedAmount *big.Int     `json:"allocatedAmount"`
	Filled          bool         `json:"filled"`
	LastTxHash      *common.Hash `json:"lastTxHash,omitempty"`
	FilledAt        *time.Time   `json:"filledAt,omitempty"`
	// OpenBuy is set by a buy fill and cleared when a sell closes the lot:
	// a higher level matched against it, or the level's own sell.
	OpenBuy bool `json:"openBuy"`
}

type GridBotState struct {
	Running        bool          `json:"running"`
	Config         GridBotConfig `json:"config"`
	Levels         []GridLevel   `json:"levels"`
	TotalInvested  *big.Int      `json:"totalInvested"`
	TotalProfit    *big.Int      `json:"totalProfit"`
	TradesExecuted int           `json:"tradesExecuted"`
	LastCheckTime  time.Time     `json:"lastCheckTime"`
	LastPrice      float64       `json:"lastPrice"`
	Trades         []TradeRecord `json:"trades"`
}
