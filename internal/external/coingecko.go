// Package external holds clients for off-chain market data.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/trahn-swapgrid/internal/retry"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
	log        logrus.FieldLogger
}

// NewCoinGeckoClient uses DefaultCoinGeckoURL when baseURL is empty.
func NewCoinGeckoClient(baseURL string, log logrus.FieldLogger) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CoinGeckoClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		log: log.WithField("component", "coingecko"),
	}
}

// GetPrice returns the spot price of coinID (e.g. "ethereum") in vs
// (e.g. "usd").
func (c *CoinGeckoClient) GetPrice(ctx context.Context, coinID, vs string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", c.baseURL, coinID, vs)
	resp, err := retry.DoHTTP(ctx, c.httpClient, c.retry, c.log, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	var data map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return decimal.Zero, fmt.Errorf("decode: %w", err)
	}

	price, ok := data[coinID][vs]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid price for %s/%s: %s", coinID, vs, price)
	}
	return price, nil
}
