package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-swapgrid/internal/bot"
	"github.com/kjannette/trahn-swapgrid/internal/ethereum"
	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

// resolveToken accepts a hex address or the aliases base, quote and weth.
func resolveToken(s string) (common.Address, error) {
	switch strings.ToLower(s) {
	case "base":
		return common.HexToAddress(cfg.BaseTokenAddress), nil
	case "quote":
		return common.HexToAddress(cfg.QuoteTokenAddress), nil
	case "weth":
		return common.HexToAddress(cfg.WETHAddress), nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid token %q", s)
	}
	return common.HexToAddress(s), nil
}

func withStack(fn func(ctx context.Context, stack *bot.Stack) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bot.NewStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(ctx, stack)
}

func newQuoteCmd() *cobra.Command {
	var in, out, amount string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote an exact-input swap without sending anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenIn, err := resolveToken(in)
			if err != nil {
				return err
			}
			tokenOut, err := resolveToken(out)
			if err != nil {
				return err
			}
			human, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}

			return withStack(func(ctx context.Context, stack *bot.Stack) error {
				raw, err := stack.Tokens.ToRaw(ctx, tokenIn, human)
				if err != nil {
					return err
				}
				q, err := stack.Quotes.GetQuote(ctx, tokenIn, tokenOut, raw)
				if err != nil {
					return err
				}
				outHuman, err := stack.Tokens.ToHuman(ctx, tokenOut, q.AmountOut)
				if err != nil {
					return err
				}
				bps, _ := swap.SlippageFromPercent(cfg.SlippagePercent)
				minOut, _ := stack.Tokens.ToHuman(ctx, tokenOut, swap.AmountOutMin(q.AmountOut, bps))

				route := make([]string, len(q.Route))
				for i, a := range q.Route {
					route[i] = a.Hex()
				}
				fmt.Printf("amount out:  %s\n", outHuman)
				fmt.Printf("min out:     %s (%.2f%% slippage)\n", minOut, cfg.SlippagePercent)
				fmt.Printf("fee tier:    %s (%s)\n", q.PoolFeeTier, q.PoolFeeTier.Label())
				fmt.Printf("route:       %s\n", strings.Join(route, " -> "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in, "in", "quote", "input token address or base|quote|weth")
	cmd.Flags().StringVar(&out, "out", "base", "output token address or base|quote|weth")
	cmd.Flags().StringVar(&amount, "amount", "", "input amount in whole tokens")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newSwapCmd() *cobra.Command {
	var (
		in, out, amount, recipient string
		nativeIn, nativeOut        bool
		slippage                   float64
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Execute a slippage-protected exact-input swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			if nativeIn && nativeOut {
				return fmt.Errorf("--native-in and --native-out are exclusive")
			}
			human, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			if !cmd.Flags().Changed("slippage") {
				slippage = cfg.SlippagePercent
			}
			bps, err := swap.SlippageFromPercent(slippage)
			if err != nil {
				return err
			}
			var to common.Address
			if recipient != "" {
				if !common.IsHexAddress(recipient) {
					return fmt.Errorf("invalid recipient %q", recipient)
				}
				to = common.HexToAddress(recipient)
			}

			return withStack(func(ctx context.Context, stack *bot.Stack) error {
				var res *swap.SwapResult
				switch {
				case nativeIn:
					tokenOut, err := resolveToken(out)
					if err != nil {
						return err
					}
					res, err = stack.Executor.SwapNativeForTokens(ctx, tokenOut, swap.ToRaw(human, 18), bps, to)
					if err != nil {
						return err
					}
				case nativeOut:
					tokenIn, err := resolveToken(in)
					if err != nil {
						return err
					}
					raw, err := stack.Tokens.ToRaw(ctx, tokenIn, human)
					if err != nil {
						return err
					}
					res, err = stack.Executor.SwapTokensForNative(ctx, tokenIn, raw, bps, to)
					if err != nil {
						return err
					}
				default:
					tokenIn, err := resolveToken(in)
					if err != nil {
						return err
					}
					tokenOut, err := resolveToken(out)
					if err != nil {
						return err
					}
					raw, err := stack.Tokens.ToRaw(ctx, tokenIn, human)
					if err != nil {
						return err
					}
					res, err = stack.Executor.ExecuteSwap(ctx, swap.SwapRequest{
						TokenIn:     tokenIn,
						TokenOut:    tokenOut,
						AmountIn:    raw,
						SlippageBps: bps,
						Recipient:   to,
					})
					if err != nil {
						return err
					}
				}

				fmt.Printf("tx:          %s\n", res.TxHash.Hex())
				if stack.Paper == nil {
					fmt.Printf("explorer:    %s\n", ethereum.ExplorerURL(res.TxHash))
				}
				fmt.Printf("amount in:   %s\n", res.AmountIn)
				fmt.Printf("quoted out:  %s\n", res.AmountOut)
				fmt.Printf("gas used:    %d (cost %s wei)\n", res.GasUsed, res.GasCost())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in, "in", "quote", "input token address or base|quote|weth")
	cmd.Flags().StringVar(&out, "out", "base", "output token address or base|quote|weth")
	cmd.Flags().StringVar(&amount, "amount", "", "input amount in whole tokens (native coin with --native-in)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient address (default: own wallet)")
	cmd.Flags().BoolVar(&nativeIn, "native-in", false, "pay with the native coin; --in is ignored")
	cmd.Flags().BoolVar(&nativeOut, "native-out", false, "receive the native coin; --out is ignored")
	cmd.Flags().Float64Var(&slippage, "slippage", 0, "slippage tolerance in percent (default from SLIPPAGE_PERCENT)")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show wallet balances for the configured pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, stack *bot.Stack) error {
				fmt.Printf("wallet:      %s\n", stack.Wallet.Hex())
				if native, err := stack.NativeBalance(ctx); err == nil {
					fmt.Printf("native:      %s\n", swap.ToHuman(native, 18))
				}
				for _, t := range []struct{ symbol, addr string }{
					{cfg.BaseTokenSymbol, cfg.BaseTokenAddress},
					{cfg.QuoteTokenSymbol, cfg.QuoteTokenAddress},
				} {
					bal, err := stack.Balance(ctx, common.HexToAddress(t.addr))
					if err != nil {
						return fmt.Errorf("%s balance: %w", t.symbol, err)
					}
					fmt.Printf("%-12s %s\n", t.symbol+":", bal)
				}
				return nil
			})
		},
	}
}
