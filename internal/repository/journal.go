package repository

import (
	"context"
	"time"

	"github.com/kjannette/trahn-swapgrid/internal/grid"
	"github.com/sirupsen/logrus"
)

// Journal writes every trade event to the trade repo. It is an audit sink;
// nothing in the grid reads it back.
type Journal struct {
	repo *TradeRepo
	log  logrus.FieldLogger
}

func NewJournal(repo *TradeRepo, log logrus.FieldLogger) *Journal {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Journal{repo: repo, log: log.WithField("component", "journal")}
}

// Run consumes events until ctx is done or the channel closes.
func (j *Journal) Run(ctx context.Context, events <-chan grid.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != grid.EventTrade || ev.Trade == nil {
				continue
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := j.repo.Record(wctx, *ev.Trade)
			cancel()
			if err != nil {
				j.log.WithError(err).WithField("trade_id", ev.Trade.ID).Warn("journal write failed")
				continue
			}
			j.log.WithField("trade_id", ev.Trade.ID).Debug("trade journaled")
		}
	}
}
