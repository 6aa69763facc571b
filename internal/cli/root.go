package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"futures-blotter/internal/blotter"
	"futures-blotter/internal/config"
	"futures-blotter/internal/logging"
	"futures-blotter/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   store.TradeStore
	Service *blotter.Service
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dbPath := filepath.Join(config.DefaultConfigDir(), "blotter.db")
	tradeStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open trade database")
	} else {
		app.Store = tradeStore
		app.Service = blotter.NewService(cfg, tradeStore, logger)
	}

	rootCmd := &cobra.Command{
		Use:   "blotter",
		Short: "Trade blotter - personal futures and options journal",
		Long: `Blotter is a personal trade journal for futures and option positions.

It records single-leg trades and multi-leg spreads, applies the broker's
commission and fee schedule, and keeps realized P&L in line with the
monthly statement.

Use 'blotter help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/blotter)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)
	addManageCommands(rootCmd, app)

	return rootCmd
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
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("blotter v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the blotter configuration.",
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
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Fee Schedule (per contract)")
	for typ, rates := range cfg.Costs {
		output.Printf("  %-8s commission=%s exchange=%s regulatory=%s\n",
			typ, rates.CommissionPerContract, rates.ExchangeFeesPerContract,
			rates.RegulatoryFeesPerContract)
	}
	output.Println()

	output.Bold("Strategies")
	for name, s := range cfg.Strategies {
		output.Printf("  %-12s %s (%s %s)\n", name, s.SpreadKind, s.DefaultSide, s.DefaultType)
	}
	output.Println()

	output.Bold("Option Blocks")
	for _, b := range cfg.OptionBlocks {
		output.Printf("  %s-%s  %s\n", b.Start, b.End, b.Name)
	}
	if len(cfg.Exemptions) > 0 {
		output.Printf("  exempt: %v\n", cfg.Exemptions)
	}

	return nil
}
