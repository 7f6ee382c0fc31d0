package notifications

import (
	"context"
	"fmt"

	"github.com/kjannette/trahn-swapgrid/internal/grid"
	"github.com/kjannette/trahn-swapgrid/internal/models"
	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

// Pair names the grid's tokens for human-readable messages.
type Pair struct {
	BaseSymbol    string
	QuoteSymbol   string
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// FormatTrade renders a trade with amounts in whole-token units.
func (p Pair) FormatTrade(rec models.TradeRecord) string {
	inSym, outSym := p.QuoteSymbol, p.BaseSymbol
	inDec, outDec := p.QuoteDecimals, p.BaseDecimals
	if rec.Side == models.SideSell {
		inSym, outSym = outSym, inSym
		inDec, outDec = outDec, inDec
	}
	msg := fmt.Sprintf("%s level %d @ %.4f: %s %s -> ~%s %s (tx %s)",
		sideLabel(rec.Side), rec.GridLevel, rec.Price,
		swap.ToHuman(rec.AmountIn, inDec).String(), inSym,
		swap.ToHuman(rec.AmountOut, outDec).String(), outSym,
		rec.TxHash.Hex())
	if rec.Profit != nil {
		msg += fmt.Sprintf(" profit %s %s", swap.ToHuman(rec.Profit, p.QuoteDecimals).String(), p.QuoteSymbol)
	}
	return msg
}

func sideLabel(s models.Side) string {
	if s == models.SideSell {
		return "SELL"
	}
	return "BUY"
}

// Notifier forwards grid events to a Sender: every trade, plus start and
// stop transitions.
type Notifier struct {
	sender *Sender
	pair   Pair
}

func NewNotifier(sender *Sender, pair Pair) *Notifier {
	return &Notifier{sender: sender, pair: pair}
}

// Run consumes events until ctx is done or the channel closes.
func (n *Notifier) Run(ctx context.Context, events <-chan grid.Event) {
	running := false
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case grid.EventTrade:
				if ev.Trade != nil {
					n.send(ctx, ev.Kind, n.pair.FormatTrade(*ev.Trade))
				}
			case grid.EventStateChange:
				if ev.State == nil || ev.State.Running == running {
					continue
				}
				running = ev.State.Running
				if running {
					n.send(ctx, ev.Kind, fmt.Sprintf("grid started: %d levels %.4f-%.4f %s/%s",
						ev.State.Config.LevelCount, ev.State.Config.LowerPrice, ev.State.Config.UpperPrice,
						n.pair.BaseSymbol, n.pair.QuoteSymbol))
				} else {
					n.send(ctx, ev.Kind, fmt.Sprintf("grid stopped after %d trades", ev.State.TradesExecuted))
				}
			}
		}
	}
}

func (n *Notifier) send(ctx context.Context, kind grid.EventKind, msg string) {
	if err := n.sender.Send(ctx, msg); err != nil {
		n.sender.log.WithError(err).WithField("event", kind.String()).Warn("notification not delivered")
	}
}
