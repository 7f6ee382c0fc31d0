package repository

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/trahn-swapgrid/internal/ledger"
	"github.com/kjannette/trahn-swapgrid/internal/models"
)

// TradeRepo journals executed swaps to swap_trades. Amounts are stored as
// NUMERIC(78,0) and travel as decimal strings.
type TradeRepo struct {
	pool  *pgxpool.Pool
	paper bool
	now   func() time.Time
}

func NewTradeRepo(pool *pgxpool.Pool, paper bool) *TradeRepo {
	return &TradeRepo{pool: pool, paper: paper, now: time.Now}
}

func (r *TradeRepo) Record(ctx context.Context, t models.TradeRecord) error {
	ts := t.Time
	if ts.IsZero() {
		ts = r.now()
	}
	var profit *string
	if t.Profit != nil {
		s := t.Profit.String()
		profit = &s
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO swap_trades
		 (id, executed_at, trading_day, grid_level, side, price,
		  amount_in, amount_out, tx_hash, gas_cost, profit, is_paper)
		 VALUES ($1::uuid,$2,$3::date,$4,$5,$6,$7::numeric,$8::numeric,$9,$10::numeric,$11::numeric,$12)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, ts, ledger.TradingDay(ts), t.GridLevel, string(t.Side), t.Price,
		intString(t.AmountIn), intString(t.AmountOut), t.TxHash.Hex(), intString(t.GasCost), profit, r.paper,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

// GetRecent returns up to limit trades, newest first.
func (r *TradeRepo) GetRecent(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, executed_at, grid_level, side, price,
		        amount_in::text, amount_out::text, tx_hash, gas_cost::text, profit::text
		 FROM swap_trades
		 WHERE is_paper = $1
		 ORDER BY executed_at DESC
		 LIMIT $2`,
		r.paper, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (r *TradeRepo) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM swap_trades WHERE trading_day = $1::date AND is_paper = $2`,
		ledger.TradingDay(r.now()), r.paper,
	).Scan(&count)
	return count, err
}

// --- scan helpers ---

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad numeric %q", s)
	}
	return v, nil
}

func collectTrades(rows pgx.Rows) ([]models.TradeRecord, error) {
	var out []models.TradeRecord
	for rows.Next() {
		var (
			t                        models.TradeRecord
			side, hash               string
			amountIn, amountOut, gas string
			profit                   *string
		)
		if err := rows.Scan(
			&t.ID, &t.Time, &t.GridLevel, &side, &t.Price,
			&amountIn, &amountOut, &hash, &gas, &profit,
		); err != nil {
			return nil, err
		}
		t.Side = models.Side(side)
		t.TxHash = common.HexToHash(hash)

		var err error
		if t.AmountIn, err = parseInt(amountIn); err != nil {
			return nil, err
		}
		if t.AmountOut, err = parseInt(amountOut); err != nil {
			return nil, err
		}
		if t.GasCost, err = parseInt(gas); err != nil {
			return nil, err
		}
		if profit != nil {
			if t.Profit, err = parseInt(*profit); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
