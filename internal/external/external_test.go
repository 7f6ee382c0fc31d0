package external_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjannette/trahn-swapgrid/internal/external"
)

func TestCoinGeckoGetPrice(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/simple/price" || r.URL.Query().Get("ids") != "ethereum" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"ethereum":{"usd":2650.42}}`))
	}))
	defer srv.Close()

	client := external.NewCoinGeckoClient(srv.URL, nil)
	price, err := client.GetPrice(context.Background(), "ethereum", "usd")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if price.String() != "2650.42" {
		t.Fatalf("expected 2650.42, got %s", price)
	}
	t.Logf("ETH price: $%s after %d call(s)", price, calls.Load())
}

func TestCoinGeckoGetPrice_MissingCoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := external.NewCoinGeckoClient(srv.URL, nil)
	if _, err := client.GetPrice(context.Background(), "ethereum", "usd"); err == nil {
		t.Fatal("expected error for missing coin")
	}
}

func TestCoinGeckoGetPrice_ClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := external.NewCoinGeckoClient(srv.URL, nil)
	if _, err := client.GetPrice(context.Background(), "ethereum", "usd"); err == nil {
		t.Fatal("expected error for 429")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx should not be retried, got %d calls", calls.Load())
	}
}

func TestCoinGeckoLive(t *testing.T) {
	if os.Getenv("COINGECKO_LIVE") == "" {
		t.Skip("COINGECKO_LIVE not set, skipping")
	}
	client := external.NewCoinGeckoClient("", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	price, err := client.GetPrice(ctx, "ethereum", "usd")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	t.Logf("ETH price: $%s", price)
}
