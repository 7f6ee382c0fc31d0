package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

// Config is read from (lowest to highest precedence) defaults, an optional
// YAML file, .env and the process environment. Keys are the upper-case env
// names; the same names in lower case work in the file.
type Config struct {
	// Secrets (from .env)
	PrivateKey          string `mapstructure:"private_key"`
	WalletAddress       string `mapstructure:"wallet_address"`
	EthereumAPIEndpoint string `mapstructure:"ethereum_api_endpoint"`
	WebhookURL          string `mapstructure:"webhook_url"`
	BotName             string `mapstructure:"bot_name"`
	APIKey              string `mapstructure:"api_key"`
	CORSAllowOrigin     string `mapstructure:"cors_allow_origin"`

	// Database (journal is disabled when DB_NAME is empty)
	DBHost     string `mapstructure:"db_host"`
	DBPort     int    `mapstructure:"db_port"`
	DBName     string `mapstructure:"db_name"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`

	// Cache (disabled when empty)
	RedisURL string `mapstructure:"redis_url"`

	// Blockchain
	ChainID       int64   `mapstructure:"chain_id"`
	GasLimit      uint64  `mapstructure:"gas_limit"`
	GasMultiplier float64 `mapstructure:"gas_multiplier"`
	RPCRateLimit  float64 `mapstructure:"rpc_rate_limit"`

	// Venue
	Venue           string `mapstructure:"venue"`
	RouterAddress   string `mapstructure:"router_address"`
	QuoterAddress   string `mapstructure:"quoter_address"`
	WETHAddress     string `mapstructure:"weth_address"`
	FeeTiers        string `mapstructure:"fee_tiers"`
	DeadlineMinutes int    `mapstructure:"deadline_minutes"`

	// Pair
	BaseTokenAddress  string `mapstructure:"base_token_address"`
	BaseTokenSymbol   string `mapstructure:"base_token_symbol"`
	QuoteTokenAddress string `mapstructure:"quote_token_address"`
	QuoteTokenSymbol  string `mapstructure:"quote_token_symbol"`

	// Grid Configuration. Without explicit bounds the band is the current
	// price +/- GRID_BAND_PERCENT.
	GridLowerPrice      float64 `mapstructure:"grid_lower_price"`
	GridUpperPrice      float64 `mapstructure:"grid_upper_price"`
	GridBandPercent     float64 `mapstructure:"grid_band_percent"`
	GridLevels          int     `mapstructure:"grid_levels"`
	GridTotalInvestment string  `mapstructure:"grid_total_investment"`
	SlippagePercent     float64 `mapstructure:"slippage_percent"`

	// Timing
	PriceCheckIntervalSeconds   int `mapstructure:"price_check_interval_seconds"`
	TickTimeoutSeconds          int `mapstructure:"tick_timeout_seconds"`
	StatusReportIntervalMinutes int `mapstructure:"status_report_interval_minutes"`

	// Risk Management (zero disables a check)
	MaxDailyTrades    int     `mapstructure:"max_daily_trades"`
	MaxTradeAmount    string  `mapstructure:"max_trade_amount"`
	StopLossPercent   float64 `mapstructure:"stop_loss_percent"`
	TakeProfitPercent float64 `mapstructure:"take_profit_percent"`

	// Paper Trading
	PaperTradingEnabled bool    `mapstructure:"paper_trading_enabled"`
	PaperInitialNative  string  `mapstructure:"paper_initial_native"`
	PaperInitialBase    string  `mapstructure:"paper_initial_base"`
	PaperInitialQuote   string  `mapstructure:"paper_initial_quote"`
	PaperBasePrice      string  `mapstructure:"paper_base_price"`
	PaperBaseDecimals   int     `mapstructure:"paper_base_decimals"`
	PaperQuoteDecimals  int     `mapstructure:"paper_quote_decimals"`
	PaperGasPriceGwei   float64 `mapstructure:"paper_gas_price_gwei"`

	// PaperPriceSource is "static" or "coingecko"; the latter moves the
	// simulated base price with the market.
	PaperPriceSource string `mapstructure:"paper_price_source"`
	PaperCoinGeckoID string `mapstructure:"paper_coingecko_id"`

	// Status API (disabled when API_PORT is 0)
	APIPort int `mapstructure:"api_port"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	// Secrets
	v.SetDefault("private_key", "")
	v.SetDefault("wallet_address", "")
	v.SetDefault("ethereum_api_endpoint", "")
	v.SetDefault("webhook_url", "")
	v.SetDefault("bot_name", "TrahnSwapGrid")
	v.SetDefault("api_key", "")
	v.SetDefault("cors_allow_origin", "*")

	// Database
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")

	v.SetDefault("redis_url", "")

	// Blockchain (mainnet)
	v.SetDefault("chain_id", 1)
	v.SetDefault("gas_limit", 300000)
	v.SetDefault("gas_multiplier", 1.2)
	v.SetDefault("rpc_rate_limit", 10)

	// Venue
	v.SetDefault("venue", "v3")
	v.SetDefault("router_address", "0xE592427A0AEce92De3Edee1F18E0157C05861564")
	v.SetDefault("quoter_address", "0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	v.SetDefault("weth_address", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("fee_tiers", "500,3000,10000")
	v.SetDefault("deadline_minutes", 20)

	// Pair: WETH/USDC
	v.SetDefault("base_token_address", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("base_token_symbol", "WETH")
	v.SetDefault("quote_token_address", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	v.SetDefault("quote_token_symbol", "USDC")

	// Grid
	v.SetDefault("grid_lower_price", 0)
	v.SetDefault("grid_upper_price", 0)
	v.SetDefault("grid_band_percent", 10)
	v.SetDefault("grid_levels", 10)
	v.SetDefault("grid_total_investment", "1000")
	v.SetDefault("slippage_percent", 0.5)

	// Timing
	v.SetDefault("price_check_interval_seconds", 10)
	v.SetDefault("tick_timeout_seconds", 120)
	v.SetDefault("status_report_interval_minutes", 60)

	// Risk
	v.SetDefault("max_daily_trades", 0)
	v.SetDefault("max_trade_amount", "0")
	v.SetDefault("stop_loss_percent", 0)
	v.SetDefault("take_profit_percent", 0)

	// Paper
	v.SetDefault("paper_trading_enabled", true)
	v.SetDefault("paper_initial_native", "1")
	v.SetDefault("paper_initial_base", "1")
	v.SetDefault("paper_initial_quote", "1000")
	v.SetDefault("paper_base_price", "2500")
	v.SetDefault("paper_base_decimals", 18)
	v.SetDefault("paper_quote_decimals", 6)
	v.SetDefault("paper_gas_price_gwei", 20)
	v.SetDefault("paper_price_source", "static")
	v.SetDefault("paper_coingecko_id", "ethereum")

	v.SetDefault("api_port", 3001)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads configuration. configPath may be empty.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if !c.PaperTradingEnabled {
		if c.PrivateKey == "" {
			errs = append(errs, "PRIVATE_KEY is required for live trading")
		}
		if c.EthereumAPIEndpoint == "" {
			errs = append(errs, "ETHEREUM_API_ENDPOINT is required for live trading")
		}
	}
	if c.WalletAddress != "" && !common.IsHexAddress(c.WalletAddress) {
		errs = append(errs, "WALLET_ADDRESS is not a valid address")
	}
	for name, addr := range map[string]string{
		"ROUTER_ADDRESS":      c.RouterAddress,
		"WETH_ADDRESS":        c.WETHAddress,
		"BASE_TOKEN_ADDRESS":  c.BaseTokenAddress,
		"QUOTE_TOKEN_ADDRESS": c.QuoteTokenAddress,
	} {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("%s is not a valid address", name))
		}
	}

	switch c.Venue {
	case "v2":
	case "v3":
		if !common.IsHexAddress(c.QuoterAddress) {
			errs = append(errs, "QUOTER_ADDRESS is required for the v3 venue")
		}
	default:
		errs = append(errs, fmt.Sprintf("VENUE must be v2 or v3, got %q", c.Venue))
	}
	if _, err := c.Tiers(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.GridLevels < 2 {
		errs = append(errs, "GRID_LEVELS must be at least 2")
	}
	if c.GridLowerPrice > 0 && c.GridUpperPrice <= c.GridLowerPrice {
		errs = append(errs, "GRID_UPPER_PRICE must be above GRID_LOWER_PRICE")
	}
	if c.GridLowerPrice == 0 && (c.GridBandPercent <= 0 || c.GridBandPercent >= 100) {
		errs = append(errs, "GRID_BAND_PERCENT must be between 0 and 100")
	}
	if _, err := positiveDecimal("GRID_TOTAL_INVESTMENT", c.GridTotalInvestment); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := swap.SlippageFromPercent(c.SlippagePercent); err != nil {
		errs = append(errs, fmt.Sprintf("SLIPPAGE_PERCENT: %v", err))
	}
	if c.PriceCheckIntervalSeconds <= 0 {
		errs = append(errs, "PRICE_CHECK_INTERVAL_SECONDS must be positive")
	}
	if _, err := decimal.NewFromString(c.MaxTradeAmount); err != nil {
		errs = append(errs, "MAX_TRADE_AMOUNT must be a number")
	}

	if c.PaperTradingEnabled {
		if _, err := positiveDecimal("PAPER_BASE_PRICE", c.PaperBasePrice); err != nil {
			errs = append(errs, err.Error())
		}
		if c.PaperPriceSource != "static" && c.PaperPriceSource != "coingecko" {
			errs = append(errs, "PAPER_PRICE_SOURCE must be static or coingecko")
		}
		for name, val := range map[string]string{
			"PAPER_INITIAL_NATIVE": c.PaperInitialNative,
			"PAPER_INITIAL_BASE":   c.PaperInitialBase,
			"PAPER_INITIAL_QUOTE":  c.PaperInitialQuote,
		} {
			if _, err := decimal.NewFromString(val); err != nil {
				errs = append(errs, name+" must be a number")
			}
		}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL: %v", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Warnings lists settings that are legal but probably unintended.
func (c *Config) Warnings() []string {
	var out []string
	if c.StopLossPercent == 0 && c.TakeProfitPercent == 0 {
		out = append(out, "STOP_LOSS_PERCENT and TAKE_PROFIT_PERCENT are both 0, no portfolio circuit breakers active")
	}
	if c.MaxDailyTrades == 0 && c.MaxTradeAmount == "0" {
		out = append(out, "MAX_DAILY_TRADES and MAX_TRADE_AMOUNT are both 0, no per-trade limits active")
	}
	if c.APIPort > 0 && c.APIKey == "" {
		out = append(out, "API_KEY not set, status API has no authentication")
	}
	if c.GridLowerPrice == 0 {
		out = append(out, "GRID_LOWER_PRICE not set, the band will be centered on the current price")
	}
	return out
}

func (c *Config) Print(log logrus.FieldLogger) {
	mode := "live"
	if c.PaperTradingEnabled {
		mode = "paper"
	}
	log.WithFields(logrus.Fields{
		"mode":     mode,
		"chain_id": c.ChainID,
		"venue":    c.Venue,
		"router":   truncAddr(c.RouterAddress),
		"pair":     c.BaseTokenSymbol + "/" + c.QuoteTokenSymbol,
		"wallet":   truncAddr(c.WalletAddress),
	}).Info("trading configuration")
	log.WithFields(logrus.Fields{
		"levels":     c.GridLevels,
		"lower":      c.GridLowerPrice,
		"upper":      c.GridUpperPrice,
		"investment": c.GridTotalInvestment + " " + c.QuoteTokenSymbol,
		"slippage":   fmt.Sprintf("%.2f%%", c.SlippagePercent),
		"interval":   c.PriceCheckInterval().String(),
	}).Info("grid configuration")
	log.WithFields(logrus.Fields{
		"journal":  boolLabel(c.JournalEnabled(), "postgres", "disabled"),
		"cache":    boolLabel(c.RedisURL != "", "redis", "memory"),
		"webhook":  boolLabel(c.WebhookURL != "", "configured", "disabled"),
		"api_port": c.APIPort,
	}).Info("services")
	for _, w := range c.Warnings() {
		log.Warn(w)
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) JournalEnabled() bool { return c.DBName != "" }

func (c *Config) PriceCheckInterval() time.Duration {
	return time.Duration(c.PriceCheckIntervalSeconds) * time.Second
}

func (c *Config) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutSeconds) * time.Second
}

func (c *Config) StatusReportInterval() time.Duration {
	return time.Duration(c.StatusReportIntervalMinutes) * time.Minute
}

func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineMinutes) * time.Minute
}

// Tiers parses FEE_TIERS ("500,3000,10000") in probe order.
func (c *Config) Tiers() ([]swap.FeeTier, error) {
	if strings.TrimSpace(c.FeeTiers) == "" {
		return swap.DefaultFeeTiers, nil
	}
	var out []swap.FeeTier
	for _, part := range strings.Split(c.FeeTiers, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil || n == 0 || n > 1_000_000 {
			return nil, fmt.Errorf("FEE_TIERS: invalid tier %q", part)
		}
		out = append(out, swap.FeeTier(n))
	}
	return out, nil
}

func (c *Config) Investment() decimal.Decimal {
	d, _ := decimal.NewFromString(c.GridTotalInvestment)
	return d
}

func (c *Config) TradeLimit() decimal.Decimal {
	d, _ := decimal.NewFromString(c.MaxTradeAmount)
	return d
}

// Bounds returns the configured band, or price +/- GRID_BAND_PERCENT when
// no lower bound is set.
func (c *Config) Bounds(price float64) (lower, upper float64) {
	if c.GridLowerPrice > 0 {
		return c.GridLowerPrice, c.GridUpperPrice
	}
	band := c.GridBandPercent / 100
	return price * (1 - band), price * (1 + band)
}

// --- helpers ---

var errNotPositive = errors.New("must be a positive number")

func positiveDecimal(name, val string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(val)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s %w", name, errNotPositive)
	}
	return d, nil
}

func truncAddr(addr string) string {
	if len(addr) > 10 {
		return addr[:10] + "..."
	}
	return addr
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
