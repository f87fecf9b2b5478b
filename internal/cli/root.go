// Package cli provides the command-line interface for the trading client.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quotex-trader/internal/client"
	"quotex-trader/internal/config"
	"quotex-trader/internal/logging"
	"quotex-trader/internal/models"
	"quotex-trader/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies. The trading client is built
// lazily so commands that never touch the platform stay offline.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	client *client.Client
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "quotex",
		Short: "Quotex Trader - binary options trading CLI",
		Long: `Quotex Trader is an unofficial command-line client for the Quotex
binary options platform.

It logs in over HTTP, keeps the session on disk, and trades over the
platform's websocket protocol. Realtime prices, sentiment, signals and
a local trade journal are included.

Use 'quotex help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if demo, _ := cmd.Flags().GetBool("demo"); demo {
				app.Config.Platform.Demo = true
			}
			if real, _ := cmd.Flags().GetBool("real"); real {
				app.Config.Platform.Demo = false
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/quotex-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("demo", false, "trade on the practice balance")
	rootCmd.PersistentFlags().Bool("real", false, "trade on the live balance")

	addCoreCommands(rootCmd, app)
	addAccountCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)
	addMarketCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)

	return rootCmd
}

// connect builds the trading client and establishes the websocket
// session, logging in over HTTP when no valid session is persisted.
func (app *App) connect(ctx context.Context) (*client.Client, error) {
	if app.client != nil {
		return app.client, nil
	}
	c, err := client.Build(app.Config, app.Logger)
	if err != nil {
		return nil, err
	}

	// Transient dial failures are retried; auth rejection is not.
	err = utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		return c.Connect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to platform: %w", err)
	}
	app.client = c
	return c, nil
}

// shutdown closes the lazily built client, if any.
func (app *App) shutdown() {
	if app.client != nil {
		if err := app.client.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("close failed")
		}
		app.client = nil
	}
}

func (app *App) mode() models.AccountMode {
	if app.Config.Platform.Demo {
		return models.ModeDemo
	}
	return models.ModeLive
}

// commandContext returns a bounded context for one CLI invocation.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Quotex Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Platform")
	output.Printf("  Host:            %s\n", cfg.Platform.Host)
	output.Printf("  Account:         %s\n", accountLabel(cfg.Platform.Demo))
	output.Printf("  Session file:    %s\n", cfg.Platform.SessionPath)
	output.Printf("  Journal:         %s\n", cfg.Platform.JournalPath)
	output.Println()

	output.Bold("Account")
	output.Printf("  Email:           %s\n", cfg.Credentials.Email)
	output.Printf("  Language:        %s\n", cfg.Credentials.Lang)
	output.Printf("  PIN mailbox:     %s\n", pinLabel(cfg.Credentials.EmailPass))
	output.Println()

	output.Bold("Connection")
	output.Printf("  Reconnects:      %d\n", cfg.Connection.MaxReconnectAttempts)
	output.Printf("  Reconnect delay: %s\n", cfg.Connection.ReconnectDelay)
	output.Printf("  Ping interval:   %s\n", cfg.Connection.PingInterval)
	output.Printf("  Auth timeout:    %s\n", cfg.Connection.AuthTimeout)

	return nil
}

func accountLabel(demo bool) string {
	if demo {
		return "demo (practice funds)"
	}
	return "live (real funds)"
}

func pinLabel(emailPass string) string {
	if emailPass == "" {
		return "disabled (interactive prompt)"
	}
	return "enabled (IMAP)"
}
