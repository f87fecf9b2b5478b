package cli

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"quotex-trader/pkg/utils"
)

// addMarketCommands adds market data commands.
func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAssetsCmd(app))
	rootCmd.AddCommand(newPaymentsCmd(app))
	rootCmd.AddCommand(newCandlesCmd(app))
	rootCmd.AddCommand(newRealtimePriceCmd(app))
	rootCmd.AddCommand(newSentimentCmd(app))
	rootCmd.AddCommand(newSignalsCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

func newAssetsCmd(app *App) *cobra.Command {
	var openOnly bool
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List tradable assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			catalog, err := c.Instruments(ctx)
			if err != nil {
				return err
			}

			instruments := catalog.All()
			if openOnly {
				open := instruments[:0]
				for _, inst := range instruments {
					if inst.Open {
						open = append(open, inst)
					}
				}
				instruments = open
			}

			if output.IsJSON() {
				return output.JSON(instruments)
			}
			output.Bold("%-20s %-30s %-8s %s", "SYMBOL", "NAME", "PAYOUT", "STATUS")
			for _, inst := range instruments {
				status := output.Red("closed")
				if inst.Open {
					status = output.Green("open")
				}
				output.Printf("%-20s %-30s %6d%%  %s\n", inst.Symbol, inst.Name, inst.Payout, status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&openOnly, "open", false, "only show open assets")
	return cmd
}

func newPaymentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "payments",
		Short: "Show payout percentages per asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			payouts, err := c.Payments(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(payouts)
			}

			symbols := make([]string, 0, len(payouts))
			for s := range payouts {
				symbols = append(symbols, s)
			}
			sort.Strings(symbols)
			for _, s := range symbols {
				output.Printf("%-20s %3d%%\n", s, payouts[s])
			}
			return nil
		},
	}
}

func newCandlesCmd(app *App) *cobra.Command {
	var (
		period int64
		offset int64
		end    int64
	)
	cmd := &cobra.Command{
		Use:   "candles <asset>",
		Short: "Load historical candles",
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

			out, err := c.Candles(ctx, args[0], end, offset, period)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(out)
			}

			output.Bold("%-20s %10s %10s %10s %10s", "TIME", "OPEN", "HIGH", "LOW", "CLOSE")
			for _, candle := range out {
				ts := time.Unix(candle.Time, 0).UTC().Format("2006-01-02 15:04:05")
				line := output.Green
				if candle.Close < candle.Open {
					line = output.Red
				}
				closeText := strconv.FormatFloat(candle.Close, 'g', -1, 64)
				output.Printf("%-20s %10g %10g %10g %10s\n", ts, candle.Open, candle.High, candle.Low, line(closeText))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&period, "period", 60, "candle period in seconds")
	cmd.Flags().Int64Var(&offset, "offset", 3600, "seconds of history to load")
	cmd.Flags().Int64Var(&end, "end", 0, "end timestamp (default: now)")
	return cmd
}

func newRealtimePriceCmd(app *App) *cobra.Command {
	var period int64
	cmd := &cobra.Command{
		Use:   "realtime-price <asset>",
		Short: "Stream live prices until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			// Streams run until interrupted, no deadline.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			stream, err := c.StartRealtimePrice(ctx, args[0], period)
			if err != nil {
				return err
			}
			defer stream.Stop()

			color.Cyan("Streaming %s, Ctrl-C to stop", args[0])
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)

			for {
				select {
				case <-stop:
					return nil
				case tick, ok := <-stream.Ticks:
					if !ok {
						return nil
					}
					if output.IsJSON() {
						output.JSON(tick)
					} else {
						ts := time.Unix(int64(tick.Time), 0).UTC().Format("15:04:05")
						output.Printf("%s  %g\n", ts, tick.Price)
					}
				}
			}
		},
	}
	cmd.Flags().Int64Var(&period, "period", 60, "subscription period in seconds")
	return cmd
}

func newSentimentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sentiment <asset>",
		Short: "Show the trader buy/sell split for an asset",
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

			stream, err := c.StartRealtimeSentiment(ctx, args[0], 60)
			if err != nil {
				return err
			}
			defer stream.Stop()

			select {
			case s := <-stream.Sentiment:
				if output.IsJSON() {
					return output.JSON(s)
				}
				output.Bold("%s sentiment", args[0])
				output.Printf("  %s %d%%\n", output.Green("buy "), s.Buy)
				output.Printf("  %s %d%%\n", output.Red("sell"), s.Sell)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

func newSignalsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "signals",
		Short: "Stream platform trade signals until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			stream, err := c.SubscribeSignals()
			if err != nil {
				return err
			}
			defer stream.Stop()

			color.Cyan("Waiting for signals, Ctrl-C to stop")
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)

			for {
				select {
				case <-stop:
					return nil
				case sig, ok := <-stream.Signals:
					if !ok {
						return nil
					}
					if output.IsJSON() {
						output.JSON(sig)
					} else {
						output.Printf("%s  %s  %ds\n", sig.Asset, sig.Direction, sig.Duration)
					}
				}
			}
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show settled trades from the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			trades, err := c.TradeHistory(ctx, page)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}

			output.Bold("%-12s %-16s %10s %10s %s", "ID", "ASSET", "AMOUNT", "PROFIT", "DIRECTION")
			for _, trade := range trades {
				profit := output.Green(utils.FormatProfit("$", trade.ProfitAmount))
				if trade.ProfitAmount < 0 {
					profit = output.Red(utils.FormatProfit("$", trade.ProfitAmount))
				}
				output.Printf("%-12s %-16s %10s %10s %d\n",
					trade.ID, trade.Asset, utils.FormatMoney("$", trade.Amount), profit, trade.Command)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "history page")
	return cmd
}
