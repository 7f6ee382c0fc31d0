package grid

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/kjannette/trahn-swapgrid/internal/models"
)

type GridStats struct {
	Levels       int     `json:"levels"`
	LowestPrice  float64 `json:"lowestPrice"`
	HighestPrice float64 `json:"highestPrice"`
	Step         float64 `json:"step"`
	PendingBuys  int     `json:"pendingBuys"`
	PendingSells int     `json:"pendingSells"`
	OpenBuys     int     `json:"openBuys"`
	FilledLevels int     `json:"filledLevels"`
}

// PriceStep is the constant distance between adjacent levels.
func PriceStep(cfg models.GridBotConfig) float64 {
	return (cfg.UpperPrice - cfg.LowerPrice) / float64(cfg.LevelCount-1)
}

// CalculateLevels lays out cfg.LevelCount levels from LowerPrice to
// UpperPrice inclusive. Each level receives TotalInvestment/LevelCount and
// the integer-division remainder goes to the last level, so allocations
// always sum to TotalInvestment. Levels below LevelCount/2 start as buys.
func CalculateLevels(cfg models.GridBotConfig) ([]models.GridLevel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.LevelCount
	step := PriceStep(cfg)
	per, rem := new(big.Int).QuoRem(cfg.TotalInvestment, big.NewInt(int64(n)), new(big.Int))
	if per.Sign() == 0 {
		return nil, fmt.Errorf("total investment %s is too small for %d levels", cfg.TotalInvestment, n)
	}

	levels := make([]models.GridLevel, n)
	for i := range levels {
		price := cfg.LowerPrice + step*float64(i)
		alloc := new(big.Int).Set(per)
		if i == n-1 {
			price = cfg.UpperPrice
			alloc.Add(alloc, rem)
		}
		side := models.SideSell
		if i < n/2 {
			side = models.SideBuy
		}
		levels[i] = models.GridLevel{
			Index:           i,
			Price:           price,
			Side:            side,
			AllocatedAmount: alloc,
		}
	}
	return levels, nil
}

// IsDue reports whether price triggers level.
func IsDue(level models.GridLevel, price float64) bool {
	if level.Filled {
		return false
	}
	switch level.Side {
	case models.SideBuy:
		return price <= level.Price
	case models.SideSell:
		return price >= level.Price
	}
	return false
}

func IsPriceOutsideGrid(price float64, levels []models.GridLevel) bool {
	if len(levels) == 0 {
		return true
	}
	return price < levels[0].Price || price > levels[len(levels)-1].Price
}

func GetGridStats(levels []models.GridLevel) GridStats {
	if len(levels) == 0 {
		return GridStats{}
	}

	s := GridStats{
		Levels:       len(levels),
		LowestPrice:  levels[0].Price,
		HighestPrice: levels[len(levels)-1].Price,
	}
	if len(levels) > 1 {
		s.Step = levels[1].Price - levels[0].Price
	}
	for _, l := range levels {
		if l.Filled {
			s.FilledLevels++
		}
		if l.OpenBuy {
			s.OpenBuys++
		}
		switch {
		case l.Side == models.SideBuy && !l.Filled:
			s.PendingBuys++
		case l.Side == models.SideSell && !l.Filled:
			s.PendingSells++
		}
	}
	return s
}

// FormatGridDisplay renders the ladder highest price first, marking the
// level nearest to lastPrice.
func FormatGridDisplay(levels []models.GridLevel, lastPrice float64) string {
	if len(levels) == 0 {
		return "No grid levels initialized."
	}

	sorted := make([]models.GridLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Price > sorted[j].Price
	})

	nearest := -1
	if lastPrice > 0 {
		best := 0.0
		for _, l := range sorted {
			d := l.Price - lastPrice
			if d < 0 {
				d = -d
			}
			if nearest < 0 || d < best {
				nearest, best = l.Index, d
			}
		}
	}

	var b strings.Builder
	b.WriteString("┌─────────────────────────────────────────────────┐\n")
	b.WriteString("│                  GRID LEVELS                    │\n")
	b.WriteString("├─────────────────────────────────────────────────┤\n")

	for _, level := range sorted {
		sideIcon := "BUY "
		if level.Side == models.SideSell {
			sideIcon = "SELL"
		}
		status := "[ ]"
		if level.OpenBuy {
			status = "[*]"
		}
		marker := "  "
		if level.Index == nearest {
			marker = "<-"
		}
		fmt.Fprintf(&b, "│ %s %s @ %12.4f │ %18s %s │\n",
			status, sideIcon, level.Price, level.AllocatedAmount.String(), marker)
	}

	b.WriteString("├─────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&b, "│  Last: %12.4f  │  %d levels                 │\n", lastPrice, len(levels))
	b.WriteString("└─────────────────────────────────────────────────┘")

	return b.String()
}
