package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"quotex-trader/internal/models"
	"quotex-trader/internal/store"
	"quotex-trader/pkg/utils"
)

func outcomeOf(profit float64) models.TradeOutcome {
	switch {
	case profit > 0:
		return models.OutcomeWin
	case profit < 0:
		return models.OutcomeLoss
	default:
		return models.OutcomeDoji
	}
}

// addJournalCommands adds local trade journal commands. The journal
// reads the SQLite file directly, no platform connection needed.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Local trade journal",
		Long:  "Review trades recorded by this client.",
	}

	cmd.AddCommand(newJournalListCmd(app))
	cmd.AddCommand(newJournalStatsCmd(app))

	rootCmd.AddCommand(cmd)
}

func openJournal(app *App) (store.Journal, error) {
	if app.Config.Platform.JournalPath == "" {
		return nil, fmt.Errorf("journal disabled, set platform.journal_path")
	}
	return store.NewSQLiteJournal(app.Config.Platform.JournalPath)
}

func newJournalListCmd(app *App) *cobra.Command {
	var (
		asset string
		limit int
		days  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			journal, err := openJournal(app)
			if err != nil {
				return err
			}
			defer journal.Close()

			ctx, cancel := commandContext()
			defer cancel()

			filter := store.OrderFilter{Asset: asset, Limit: limit}
			if days > 0 {
				filter.StartDate = time.Now().AddDate(0, 0, -days)
			}
			orders, err := journal.ListOrders(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(orders)
			}
			if len(orders) == 0 {
				output.Dim("No trades recorded.")
				return nil
			}

			output.Bold("%-19s %-16s %-5s %10s %-8s %10s", "PLACED", "ASSET", "DIR", "AMOUNT", "OUTCOME", "PROFIT")
			for _, order := range orders {
				outcome := string(order.Status)
				profit := ""
				if order.Status == models.OrderSettled {
					outcome = string(outcomeOf(order.Profit))
					profit = utils.FormatProfit("$", order.Profit)
					if order.Profit >= 0 {
						profit = output.Green(profit)
					} else {
						profit = output.Red(profit)
					}
				}
				output.Printf("%-19s %-16s %-5s %10s %-8s %10s\n",
					order.PlacedAt.Format("2006-01-02 15:04:05"),
					order.Asset, order.Direction,
					utils.FormatMoney("$", order.Amount), outcome, profit)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&asset, "asset", "", "filter by asset")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&days, "days", 0, "only trades from the last N days")
	return cmd
}

func newJournalStatsCmd(app *App) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show win/loss statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			journal, err := openJournal(app)
			if err != nil {
				return err
			}
			defer journal.Close()

			ctx, cancel := commandContext()
			defer cancel()

			filter := store.OrderFilter{}
			if days > 0 {
				filter.StartDate = time.Now().AddDate(0, 0, -days)
			}
			stats, err := journal.GetStats(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(stats)
			}

			color.Cyan("Trade Statistics")
			output.Printf("  Settled:  %d\n", stats.Total)
			output.Printf("  Wins:     %s\n", output.Green(fmt.Sprintf("%d", stats.Wins)))
			output.Printf("  Losses:   %s\n", output.Red(fmt.Sprintf("%d", stats.Losses)))
			output.Printf("  Dojis:    %d\n", stats.Dojis)
			output.Printf("  Win rate: %.1f%%\n", stats.WinRate)
			output.Printf("  Profit:   %s\n", utils.FormatProfit("$", stats.Profit))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "only trades from the last N days")
	return cmd
}
