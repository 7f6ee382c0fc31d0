package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/kjannette/trahn-swapgrid/internal/grid"
	"github.com/kjannette/trahn-swapgrid/internal/ledger"
	"github.com/kjannette/trahn-swapgrid/internal/models"
)

type fakeGrid struct {
	snap *models.GridBotState
	book *ledger.Ledger
	bus  *grid.Bus
}

func newFakeGrid() *fakeGrid {
	return &fakeGrid{book: ledger.New(), bus: grid.NewBus(nil)}
}

func (f *fakeGrid) Snapshot() *models.GridBotState { return f.snap }
func (f *fakeGrid) Ledger() *ledger.Ledger         { return f.book }
func (f *fakeGrid) Subscribe(buffer int) (<-chan grid.Event, func()) {
	return f.bus.Subscribe(buffer)
}

type fakeJournal struct {
	trades []models.TradeRecord
	err    error
}

func (f *fakeJournal) GetRecent(_ context.Context, limit int) ([]models.TradeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.trades) {
		return f.trades[:limit], nil
	}
	return f.trades, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func sampleState(running bool) *models.GridBotState {
	return &models.GridBotState{
		Running: running,
		Config: models.GridBotConfig{
			LowerPrice: 1000, UpperPrice: 2000, LevelCount: 3,
			TotalInvestment: big.NewInt(300),
		},
		Levels: []models.GridLevel{
			{Index: 0, Price: 1000, Side: models.SideBuy, AllocatedAmount: big.NewInt(100)},
			{Index: 1, Price: 1500, Side: models.SideSell, AllocatedAmount: big.NewInt(100), Filled: true, OpenBuy: true},
			{Index: 2, Price: 2000, Side: models.SideSell, AllocatedAmount: big.NewInt(100)},
		},
		LastCheckTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleTrade(level int, side models.Side) models.TradeRecord {
	return models.TradeRecord{
		ID: "t" + string(rune('0'+level)), GridLevel: level, Side: side, Price: 1500,
		AmountIn: big.NewInt(100), AmountOut: big.NewInt(66), GasCost: big.NewInt(7),
		TxHash: common.HexToHash("0x01"),
	}
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.routes("").ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	g := newFakeGrid()
	s := NewServer(ServerConfig{Grid: g})

	var resp healthResponse
	rr := serve(t, s, "/health")
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Services.Database != "disabled" || resp.Services.Grid != "uninitialized" {
		t.Fatalf("unexpected services: %+v", resp.Services)
	}

	g.snap = sampleState(true)
	s = NewServer(ServerConfig{Grid: g, Database: fakePinger{err: errors.New("down")}})
	rr = serve(t, s, "/health")
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Services.Database != "disconnected" || resp.Services.Grid != "running" {
		t.Fatalf("unexpected services: %+v", resp.Services)
	}
	t.Logf("health: %+v", resp)
}

func TestHandleGridCurrent(t *testing.T) {
	g := newFakeGrid()
	s := NewServer(ServerConfig{Grid: g})

	var resp gridCurrentResponse
	json.NewDecoder(serve(t, s, "/v1/grid/current").Body).Decode(&resp)
	if resp.Initialized || resp.State != nil {
		t.Fatalf("expected uninitialized grid, got %+v", resp)
	}

	g.snap = sampleState(false)
	rr := serve(t, s, "/v1/grid/current")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp = gridCurrentResponse{}
	json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.Initialized || resp.Stats == nil {
		t.Fatalf("expected initialized grid with stats, got %+v", resp)
	}
	if resp.Stats.Levels != 3 || resp.Stats.OpenBuys != 1 {
		t.Fatalf("unexpected stats: %+v", resp.Stats)
	}
	if resp.LastUpdate == nil || *resp.LastUpdate != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected lastUpdate: %v", resp.LastUpdate)
	}
	if len(resp.State.Levels) != 3 || resp.State.Levels[1].AllocatedAmount.Int64() != 100 {
		t.Fatalf("levels not round-tripped: %+v", resp.State.Levels)
	}
}

func TestHandleTrades_Memory(t *testing.T) {
	g := newFakeGrid()
	s := NewServer(ServerConfig{Grid: g})

	rr := serve(t, s, "/v1/trades")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}

	g.book.Record(sampleTrade(0, models.SideBuy))
	g.book.Record(sampleTrade(1, models.SideSell))

	var trades []models.TradeRecord
	json.NewDecoder(serve(t, s, "/v1/trades?limit=1").Body).Decode(&trades)
	if len(trades) != 1 || trades[0].GridLevel != 1 {
		t.Fatalf("expected newest trade only, got %+v", trades)
	}
}

func TestHandleTrades_Journal(t *testing.T) {
	g := newFakeGrid()

	rr := serve(t, NewServer(ServerConfig{Grid: g}), "/v1/trades?source=journal")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without journal, got %d", rr.Code)
	}

	j := &fakeJournal{trades: []models.TradeRecord{sampleTrade(2, models.SideSell), sampleTrade(0, models.SideBuy)}}
	s := NewServer(ServerConfig{Grid: g, Journal: j})
	var trades []models.TradeRecord
	json.NewDecoder(serve(t, s, "/v1/trades?source=journal").Body).Decode(&trades)
	if len(trades) != 2 || trades[0].GridLevel != 2 {
		t.Fatalf("unexpected journal trades: %+v", trades)
	}

	j.err = errors.New("boom")
	if rr := serve(t, s, "/v1/trades?source=journal"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if rr := serve(t, s, "/v1/trades?source=nope"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandlePnL(t *testing.T) {
	g := newFakeGrid()
	buy := sampleTrade(0, models.SideBuy)
	sell := sampleTrade(1, models.SideSell)
	sell.Profit = big.NewInt(25)
	g.book.Record(buy)
	g.book.Record(sell)

	var resp pnlResponse
	json.NewDecoder(serve(t, NewServer(ServerConfig{Grid: g}), "/v1/pnl").Body).Decode(&resp)
	if resp.Trades != 2 || resp.Profit.Int64() != 25 || resp.GasCosts.Int64() != 14 {
		t.Fatalf("unexpected pnl: %+v", resp)
	}
	if resp.NetProfit.Int64() != 11 || resp.TotalInvested.Int64() != 100 {
		t.Fatalf("unexpected net/invested: net=%s invested=%s", resp.NetProfit, resp.TotalInvested)
	}
}

func TestHandleStream(t *testing.T) {
	g := newFakeGrid()
	g.snap = sampleState(true)
	s := NewServer(ServerConfig{Grid: g})

	ts := httptest.NewServer(s.routes(""))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first streamMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "state" || first.State == nil || !first.State.Running {
		t.Fatalf("expected state snapshot first, got %+v", first)
	}

	rec := sampleTrade(1, models.SideSell)
	g.bus.Publish(grid.Event{Kind: grid.EventTrade, Trade: &rec})

	var next streamMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read trade: %v", err)
	}
	if next.Type != "trade" || next.Trade == nil || next.Trade.ID != rec.ID {
		t.Fatalf("expected trade event, got %+v", next)
	}
	t.Logf("stream delivered %s for level %d", next.Type, next.Trade.GridLevel)
}
