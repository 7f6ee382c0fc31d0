package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type TradeRecord struct {
	ID        string      `json:"id"`
	Time      time.Time   `json:"time"`
	GridLevel int         `json:"gridLevel"`
	Side      Side        `json:"side"`
	Price     float64     `json:"price"`
	AmountIn  *big.Int    `json:"amountIn"`
	AmountOut *big.Int    `json:"amountOut"` // quoted before submission, not settled
	TxHash    common.Hash `json:"txHash"`
	GasCost   *big.Int    `json:"gasCost"`
	Profit    *big.Int    `json:"profit,omitempty"`
}
