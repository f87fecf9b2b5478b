package cli

import (
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	apperrors "quotex-trader/internal/errors"
	"quotex-trader/internal/session"
	"quotex-trader/pkg/utils"
)

// addAccountCommands adds session and account commands.
func addAccountCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTestConnectionCmd(app))
	rootCmd.AddCommand(newBalanceCmd(app))
	rootCmd.AddCommand(newProfileCmd(app))
	rootCmd.AddCommand(newRefillCmd(app))
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newLogoutCmd(app))
}

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in with a fresh session",
		Long:  "Discard any persisted session and log in over HTTP again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			sessions := session.NewStore(app.Config.Platform.SessionPath)
			if err := sessions.Clear(); err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			bal, err := c.Balance(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{"logged_in": true, "balance": bal})
			}
			color.Green("✓ Logged in as %s", app.Config.Credentials.Email)
			output.Printf("  %s balance: %s\n", app.mode(), utils.FormatMoney("$", bal))
			return nil
		},
	}
}

func newTestConnectionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Verify login and websocket connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			start := time.Now()
			c, err := app.connect(ctx)
			if err != nil {
				if errors.Is(err, apperrors.ErrSessionRejected) {
					output.Error("Session rejected: check your credentials")
				}
				return err
			}
			defer app.shutdown()

			bal, err := c.Balance(ctx)
			if err != nil {
				return err
			}
			elapsed := time.Since(start).Round(time.Millisecond)

			if output.IsJSON() {
				return output.JSON(map[string]any{
					"connected":  true,
					"account":    app.mode().String(),
					"balance":    bal,
					"elapsed_ms": elapsed.Milliseconds(),
				})
			}
			color.Green("✓ Connected to %s (%s)", app.Config.Platform.Host, elapsed)
			output.Printf("  Account: %s\n", app.mode())
			output.Printf("  Balance: %s\n", utils.FormatMoney("$", bal))
			return nil
		},
	}
}

func newBalanceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the active account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			bal, err := c.Balance(ctx)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]any{
					"account": app.mode().String(),
					"balance": bal,
				})
			}
			output.Bold("%s balance: %s", app.mode(), utils.FormatMoney("$", bal))
			return nil
		},
	}
}

func newProfileCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the account profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			profile, err := c.Profile(ctx)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(profile)
			}
			output.Bold("Profile")
			output.Printf("  ID:           %d\n", profile.ID)
			output.Printf("  Nickname:     %s\n", profile.Nickname)
			output.Printf("  Country:      %s\n", profile.CountryName)
			output.Printf("  Currency:     %s\n", profile.CurrencyCode)
			output.Printf("  Time offset:  %d\n", profile.TimeOffset)
			output.Printf("  Live balance: %s\n", utils.FormatMoney(profile.CurrencySymbol, profile.LiveBalance))
			output.Printf("  Demo balance: %s\n", utils.FormatMoney(profile.CurrencySymbol, profile.DemoBalance))
			return nil
		},
	}
}

func newRefillCmd(app *App) *cobra.Command {
	var amount float64
	cmd := &cobra.Command{
		Use:   "refill",
		Short: "Reset the practice balance",
		Long:  "Reset the demo account balance to the given amount.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			defer app.shutdown()

			bal, err := c.EditPracticeBalance(ctx, amount)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]float64{"balance": bal})
			}
			color.Green("✓ Practice balance set to %s", utils.FormatMoney("$", bal))
			return nil
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 10000, "new practice balance")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext()
			defer cancel()

			c, err := app.connect(ctx)
			if err != nil {
				return err
			}
			if err := c.Logout(ctx); err != nil {
				return err
			}
			app.client = nil

			if output.IsJSON() {
				return output.JSON(map[string]bool{"logged_out": true})
			}
			color.Green("✓ Logged out")
			return nil
		},
	}
}
