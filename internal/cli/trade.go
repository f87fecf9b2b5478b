package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"quotex-trader/internal/client"
	"quotex-trader/internal/models"
	"quotex-trader/pkg/utils"
)

// addTradingCommands adds order placement commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newBuyCmd(app))
	rootCmd.AddCommand(newSellCmd(app))
	rootCmd.AddCommand(newPendingCmd(app))
}

func parseDirection(s string) (models.Direction, error) {
	switch strings.ToLower(s) {
	case "call", "up", "buy":
		return models.DirectionCall, nil
	case "put", "down", "sell":
		return models.DirectionPut, nil
	default:
		return "", fmt.Errorf("unknown direction %q, use call or put", s)
	}
}

func newBuyCmd(app *App) *cobra.Command {
	var (
		amount   float64
		duration int64
		timer    bool
		check    bool
	)
	cmd := &cobra.Command{
		Use:   "buy <asset> <call|put>",
		Short: "Open a binary option",
		Long: `Open a binary option on an asset.

The order expires at the next duration boundary. With --check the
command blocks until the option settles and reports the outcome.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			direction, err := parseDirection(args[1])
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			order, err := c.Buy(ctx, client.BuyRequest{
				Asset:     args[0],
				Amount:    amount,
				Direction: direction,
				Duration:  duration,
				Timer:     timer,
			})
			if err != nil {
				return err
			}

			if !check {
				if output.IsJSON() {
					return output.JSON(order)
				}
				color.Green("✓ Order accepted: %s", order.ID)
				printOrder(output, order)
				return nil
			}

			if !output.IsJSON() {
				color.Green("✓ Order accepted: %s", order.ID)
				printOrder(output, order)
				output.Dim("Waiting for settlement...")
			}
			settleCtx, settleCancel := settleContext(order)
			defer settleCancel()
			result, err := c.CheckWin(settleCtx, order)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{
					"order":  order,
					"result": result,
				})
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 1, "trade amount")
	cmd.Flags().Int64Var(&duration, "duration", 60, "option duration in seconds")
	cmd.Flags().BoolVar(&timer, "timer", false, "use the raw duration instead of the next boundary")
	cmd.Flags().BoolVar(&check, "check", false, "wait for the option to settle")
	return cmd
}

// settleContext bounds the settlement wait by the order's own expiration
// instead of the shared command budget. The extra minute leaves room for
// the grace the client applies past the strike.
func settleContext(order *models.Order) (context.Context, context.CancelFunc) {
	deadline := time.Unix(order.Expiration, 0).Add(time.Minute)
	return context.WithDeadline(context.Background(), deadline)
}

func printOrder(output *Output, order *models.Order) {
	output.Printf("  Asset:      %s\n", order.Asset)
	output.Printf("  Amount:     %s\n", utils.FormatMoney("$", order.Amount))
	output.Printf("  Direction:  %s\n", order.Direction)
	output.Printf("  Expiration: %d\n", order.Expiration)
	if order.OpenPrice > 0 {
		output.Printf("  Open price: %g\n", order.OpenPrice)
	}
}

func printResult(result models.TradeResult) {
	switch result.Outcome {
	case models.OutcomeWin:
		color.Green("WIN  %s", utils.FormatProfit("$", result.Profit))
	case models.OutcomeLoss:
		color.Red("LOSS %s", utils.FormatProfit("$", result.Profit))
	default:
		color.Yellow("DOJI %s", utils.FormatProfit("$", result.Profit))
	}
}

func newSellCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <ticket>",
		Short: "Sell an open option back before expiration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			ticket, err := c.SellOption(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"ticket": ticket})
			}
			color.Green("✓ Sold option %s", ticket)
			return nil
		},
	}
}

func newPendingCmd(app *App) *cobra.Command {
	var (
		amount   float64
		duration int64
		openTime string
	)
	cmd := &cobra.Command{
		Use:   "pending <asset> <call|put>",
		Short: "Schedule a trade for a future open time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			direction, err := parseDirection(args[1])
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			ticket, err := c.PendingCreate(ctx, client.PendingRequest{
				Asset:     args[0],
				Amount:    amount,
				Direction: direction,
				Duration:  duration,
				OpenTime:  openTime,
			})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"ticket": ticket})
			}
			color.Green("✓ Pending order %s", ticket)
			return nil
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 1, "trade amount")
	cmd.Flags().Int64Var(&duration, "duration", 60, "option duration in seconds")
	cmd.Flags().StringVar(&openTime, "open-time", "", "open time (default: next duration boundary)")
	return cmd
}
