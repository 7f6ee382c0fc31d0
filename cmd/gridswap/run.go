package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-swapgrid/internal/bot"
)

func newRunCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the grid strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, banner)
			cfg.Print(logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stack, err := bot.NewStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stack.Close()

			svc, err := bot.NewService(ctx, cfg, stack, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.InitializeGrid(ctx); err != nil {
				return err
			}

			if once {
				return svc.RunOnce(ctx)
			}

			err = svc.Run(ctx)
			logger.Info("shutdown complete")
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "evaluate the grid a single time and exit")
	return cmd
}
