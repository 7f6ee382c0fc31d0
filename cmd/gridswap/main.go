package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-swapgrid/internal/config"
)

const banner = `
╔══════════════════════════════════════╗
║       TRAHN Swap Grid v0.3           ║
║                                      ║
╚══════════════════════════════════════╝
`

var (
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gridswap",
		Short:         "AMM swap execution and grid trading",
		Long:          `Quotes and executes slippage-protected swaps on Uniswap-style routers and runs a price-band grid strategy on top of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger = config.NewLogger(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables override it")

	rootCmd.AddCommand(newRunCmd(), newQuoteCmd(), newSwapCmd(), newBalanceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
