package cli

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"futures-blotter/internal/blotter"
	"futures-blotter/internal/errors"
)

// addManageCommands adds the bookkeeping commands.
func addManageCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newFixCmd(app))
	rootCmd.AddCommand(newRecalcCmd(app))
	rootCmd.AddCommand(newBackfillCmd(app))
	rootCmd.AddCommand(newAuditCmd(app))
	rootCmd.AddCommand(newBlocksCmd(app))
}

func newFixCmd(app *App) *cobra.Command {
	var (
		strategy string
		at       string
		feeLeg   int
		symbol   string
		entry    string
		exit     string
		qty      int
	)

	cmd := &cobra.Command{
		Use:   "fix <trade-id>",
		Short: "Correct a recorded trade",
		Long: `Correct fields of a recorded trade.

Leg corrections (--entry, --exit, --qty) apply to the leg named by
--symbol. Quantity changes recompute the fee records; every fix
refreshes the cached P&L.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			fix := blotter.FixRequest{}
			if cmd.Flags().Changed("strategy") {
				s := strings.ToUpper(strategy)
				fix.Strategy = &s
			}
			if cmd.Flags().Changed("at") {
				ts, err := time.ParseInLocation("2006-01-02 15:04", at, time.Local)
				if err != nil {
					return errors.NewValidationError("at", at, "want YYYY-MM-DD HH:MM")
				}
				fix.Timestamp = &ts
			}
			if cmd.Flags().Changed("fee-leg") {
				fix.FeeLeg = &feeLeg
			}

			legFix := blotter.LegFix{}
			legChanged := false
			if cmd.Flags().Changed("entry") {
				price, err := decimal.NewFromString(entry)
				if err != nil {
					return errors.NewValidationError("entry", entry, "not a decimal amount")
				}
				legFix.EntryPrice = &price
				legChanged = true
			}
			if cmd.Flags().Changed("exit") {
				price, err := decimal.NewFromString(exit)
				if err != nil {
					return errors.NewValidationError("exit", exit, "not a decimal amount")
				}
				legFix.ExitPrice = &price
				legChanged = true
			}
			if cmd.Flags().Changed("qty") {
				legFix.Quantity = &qty
				legChanged = true
			}
			if legChanged {
				if symbol == "" {
					return errors.NewValidationError("symbol", "", "leg corrections need --symbol")
				}
				fix.Legs = map[string]blotter.LegFix{strings.ToUpper(symbol): legFix}
			}

			trade, err := app.Service.FixTrade(cmd.Context(), args[0], fix)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Fixed trade %s", trade.ID)
			printTradeDetail(output, trade)
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "new strategy")
	cmd.Flags().StringVar(&at, "at", "", "new fill time (YYYY-MM-DD HH:MM)")
	cmd.Flags().IntVar(&feeLeg, "fee-leg", 0, "new fee-bearing leg index")
	cmd.Flags().StringVar(&symbol, "symbol", "", "leg to correct")
	cmd.Flags().StringVar(&entry, "entry", "", "new entry price")
	cmd.Flags().StringVar(&exit, "exit", "", "new exit price")
	cmd.Flags().IntVarP(&qty, "qty", "q", 0, "new quantity")
	return cmd
}

func newRecalcCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "recalc [trade-id]",
		Short: "Recompute cached P&L from recorded prices and costs",
		Long: `Recompute the cached P&L of closed trades from their recorded
prices and cost records. Cost records are never rewritten; use fix or
backfill to change them. Running it twice changes nothing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			if all || len(args) == 0 {
				changed, err := app.Service.RecalcAll(cmd.Context())
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(map[string]int{"changed": changed})
				}
				output.Success("✓ Recalculated all trades, %d changed", changed)
				return nil
			}

			trade, changed, err := app.Service.RecalcTrade(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trade)
			}
			if changed {
				output.Success("✓ Recalculated trade %s", trade.ID)
			} else {
				output.Dim("Trade %s already consistent", trade.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "recalculate every trade")
	return cmd
}

func newBackfillCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "backfill [trade-id]",
		Short: "Fill in missing cost records",
		Long: `Fill in cost records on trades recorded before fee tracking.
Existing non-zero records are left untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			if all || len(args) == 0 {
				changed, err := app.Service.BackfillAll(cmd.Context())
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(map[string]int{"changed": changed})
				}
				output.Success("✓ Backfilled %d trades", changed)
				return nil
			}

			trade, changed, err := app.Service.BackfillTrade(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trade)
			}
			if changed {
				output.Success("✓ Backfilled trade %s", trade.ID)
			} else {
				output.Dim("Trade %s already has cost records", trade.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "backfill every trade")
	return cmd
}

func newAuditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "audit [trade-id]",
		Short: "Check recorded costs and P&L against the fee schedule",
		Long: `Compare recorded costs and cached P&L against what the fee
schedule and P&L engine produce today. Drift above a cent is flagged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			var reports []*blotter.AuditReport
			dirty := 0

			if len(args) == 1 {
				report, err := app.Service.AuditTrade(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				reports = append(reports, report)
				if !report.Clean {
					dirty = 1
				}
			} else {
				var err error
				reports, dirty, err = app.Service.AuditAll(cmd.Context())
				if err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"reports": reports,
					"dirty":   dirty,
				})
			}

			table := NewTable(output, "ID", "STRATEGY", "STATUS", "EXPECTED", "RECORDED", "DRIFT", "")
			for _, r := range reports {
				flag := output.Green("ok")
				if !r.Clean {
					flag = output.Red("DRIFT")
				}
				table.AddRow(
					r.TradeID,
					r.Strategy,
					string(r.Status),
					FormatUSD(r.ExpectedCosts),
					FormatUSD(r.RecordedCosts),
					FormatUSD(r.CostDrift),
					flag,
				)
			}
			table.Render()

			if dirty > 0 {
				output.Warning("%d trade(s) drifted; 'blotter recalc' repairs cached P&L, 'blotter fix' corrects cost records", dirty)
			} else {
				output.Success("✓ All trades consistent")
			}
			return nil
		},
	}
}

func newBlocksCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "Show option trading blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			blocked, name := app.Config.BlockedForOptions(time.Now())

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"blocks":     app.Config.OptionBlocks,
					"exemptions": app.Config.Exemptions,
					"blocked":    blocked,
					"window":     name,
				})
			}

			if len(app.Config.OptionBlocks) == 0 {
				output.Dim("No option blocks configured")
				return nil
			}

			table := NewTable(output, "START", "END", "NAME")
			for _, b := range app.Config.OptionBlocks {
				table.AddRow(b.Start, b.End, b.Name)
			}
			table.Render()

			if len(app.Config.Exemptions) > 0 {
				output.Dim("Exempt strategies: %s", strings.Join(app.Config.Exemptions, ", "))
			}
			if blocked {
				output.Warning("Option trading currently blocked: %s", name)
			} else {
				output.Success("✓ Option trading currently allowed")
			}
			return nil
		},
	}
}
