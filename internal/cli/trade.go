package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"futures-blotter/internal/blotter"
	"futures-blotter/internal/errors"
	"futures-blotter/internal/models"
	"futures-blotter/internal/pnl"
	"futures-blotter/internal/store"
)

// addTradeCommands adds the trade lifecycle commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newOpenCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
	rootCmd.AddCommand(newCloseLegCmd(app))
	rootCmd.AddCommand(newExpireLegCmd(app))
	rootCmd.AddCommand(newExpireSpreadCmd(app))
	rootCmd.AddCommand(newPartialCmd(app))
	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newShowCmd(app))
	rootCmd.AddCommand(newDeleteCmd(app))
}

// parseLegSpec parses a SIDE:SYMBOL[:PRICE] leg argument.
func parseLegSpec(raw string, requirePrice bool) (blotter.LegSpec, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return blotter.LegSpec{}, errors.NewValidationError("leg", raw, "want SIDE:SYMBOL[:PRICE]")
	}

	spec := blotter.LegSpec{
		Side:   models.Side(strings.ToUpper(parts[0])),
		Symbol: strings.ToUpper(parts[1]),
	}
	if !spec.Side.Valid() {
		return blotter.LegSpec{}, errors.NewValidationError("side", parts[0], "must be BUY or SELL")
	}

	if len(parts) == 3 {
		price, err := decimal.NewFromString(parts[2])
		if err != nil {
			return blotter.LegSpec{}, errors.NewValidationError("price", parts[2], "not a decimal amount")
		}
		spec.Price = price
	} else if requirePrice {
		return blotter.LegSpec{}, errors.NewValidationError("leg", raw, "price required without --net")
	}
	return spec, nil
}

func newOpenCmd(app *App) *cobra.Command {
	var (
		strategy  string
		tradeType string
		quantity  int
		feeLeg    int
		netPrice  string
		at        string
		legs      []string
		riskEcon  bool
		riskEarn  bool
		riskBond  bool
		riskNote  string
	)

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a new trade",
		Long: `Open a new single-leg trade or multi-leg spread.

Legs are given as SIDE:SYMBOL:PRICE, or SIDE:SYMBOL with --net to enter
a single net value that is split across the legs. The --fee-leg index
names the leg that carries the spread's one commission charge.`,
		Example: `  blotter open --strategy SCALP --qty 2 --leg BUY:MES_DEC25:5842.25
  blotter open --strategy BULL-PUT --qty 80 --net 1.40 \
      --leg SELL:MES_5600P:0 --leg BUY:MES_5550P:0 --fee-leg 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			strat, err := app.Config.Strategy(strategy)
			if err != nil {
				return err
			}

			req := blotter.OpenRequest{
				Strategy: strings.ToUpper(strategy),
				Quantity: quantity,
				FeeLeg:   feeLeg,
			}

			if tradeType == "" {
				tradeType = strat.DefaultType
			}
			req.Type = models.TradeType(strings.ToUpper(tradeType))

			if netPrice != "" {
				net, err := decimal.NewFromString(netPrice)
				if err != nil {
					return errors.NewValidationError("net", netPrice, "not a decimal amount")
				}
				req.NetPrice = &net
			}

			for _, raw := range legs {
				spec, err := parseLegSpec(raw, req.NetPrice == nil)
				if err != nil {
					return err
				}
				req.Legs = append(req.Legs, spec)
			}

			if at != "" {
				ts, err := time.ParseInLocation("2006-01-02 15:04", at, time.Local)
				if err != nil {
					return errors.NewValidationError("at", at, "want YYYY-MM-DD HH:MM")
				}
				req.Timestamp = ts
			}

			if riskEcon || riskEarn || riskBond || riskNote != "" {
				req.Risk = &models.Risk{
					EconEvent:   riskEcon,
					Earnings:    riskEarn,
					BondAuction: riskBond,
					Note:        riskNote,
				}
			}

			trade, err := app.Service.OpenTrade(cmd.Context(), req)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Opened trade %s (%s, %d)", trade.ID, trade.Strategy, trade.DisplayQuantity())
			output.Dim("Entry costs: %s", FormatUSD(trade.TotalCosts()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "strategy name (required)")
	cmd.Flags().StringVarP(&tradeType, "type", "t", "", "trade type: FUTURE, OPTION, OPTION_SPREAD")
	cmd.Flags().IntVarP(&quantity, "qty", "q", 0, "contracts per leg (required)")
	cmd.Flags().IntVar(&feeLeg, "fee-leg", 0, "index of the fee-bearing leg")
	cmd.Flags().StringVarP(&netPrice, "net", "n", "", "net price; positive for a credit, negative for a debit")
	cmd.Flags().StringVar(&at, "at", "", "fill time (YYYY-MM-DD HH:MM, default now)")
	cmd.Flags().StringArrayVarP(&legs, "leg", "l", nil, "leg as SIDE:SYMBOL[:PRICE] (repeatable)")
	cmd.Flags().BoolVar(&riskEcon, "econ", false, "economic event on the calendar")
	cmd.Flags().BoolVar(&riskEarn, "earnings", false, "earnings on the calendar")
	cmd.Flags().BoolVar(&riskBond, "bond", false, "bond auction on the calendar")
	cmd.Flags().StringVar(&riskNote, "note", "", "risk note")
	cmd.MarkFlagRequired("strategy")
	cmd.MarkFlagRequired("qty")
	cmd.MarkFlagRequired("leg")

	return cmd
}

func newCloseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close <trade-id> <price>",
		Short: "Close a trade",
		Long: `Close every open leg of a trade.

For a single-leg trade the price is the exit fill. For a spread it is
the net exit value, split across the open legs.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return errors.NewValidationError("price", args[1], "not a decimal amount")
			}

			trade, err := app.Service.CloseTrade(cmd.Context(), args[0], price)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			printCloseResult(output, trade)
			return nil
		},
	}
}

func newCloseLegCmd(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "close-leg <trade-id> <symbol> <price>",
		Short: "Close one leg of a trade",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			price, err := decimal.NewFromString(args[2])
			if err != nil {
				return errors.NewValidationError("price", args[2], "not a decimal amount")
			}

			trade, err := app.Service.CloseLeg(cmd.Context(), args[0], strings.ToUpper(args[1]), price, reason)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			printCloseResult(output, trade)
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why the leg was closed")
	return cmd
}

func newExpireLegCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-leg <trade-id> <symbol>",
		Short: "Record a leg expiring worthless",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			trade, err := app.Service.ExpireLeg(cmd.Context(), args[0], strings.ToUpper(args[1]))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			printCloseResult(output, trade)
			return nil
		},
	}
}

func newExpireSpreadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-spread <trade-id>",
		Short: "Record every open leg of a spread expiring worthless",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			trade, err := app.Service.ExpireSpread(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			printCloseResult(output, trade)
			return nil
		},
	}
}

func newPartialCmd(app *App) *cobra.Command {
	var qty int

	cmd := &cobra.Command{
		Use:   "partial <trade-id> <price>",
		Short: "Close part of a single-leg position",
		Long: `Close part of a single-leg position at the given price.

The closed portion becomes a child trade (<id>-P1, <id>-P2, ...) with
its share of the entry costs plus the exit charge; the parent keeps the
remainder open.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return errors.NewValidationError("price", args[1], "not a decimal amount")
			}

			child, err := app.Service.ClosePartial(cmd.Context(), args[0], qty, price)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(child)
			}
			printCloseResult(output, child)
			return nil
		},
	}

	cmd.Flags().IntVarP(&qty, "qty", "q", 0, "contracts to close (required)")
	cmd.MarkFlagRequired("qty")
	return cmd
}

func newListCmd(app *App) *cobra.Command {
	var (
		openOnly   bool
		closedOnly bool
		strategy   string
	)

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			filter := store.Filter{Strategy: strings.ToUpper(strategy)}
			if openOnly {
				filter.Status = models.StatusOpen
			}
			if closedOnly {
				filter.Status = models.StatusClosed
			}

			trades, err := app.Service.ListTrades(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No trades")
				return nil
			}

			table := NewTable(output, "ID", "DATE", "STRATEGY", "TYPE", "QTY", "STATUS", "COSTS", "NET P&L")
			for _, trade := range trades {
				netPnL := output.DimText("-")
				if trade.NetPnL != nil {
					netPnL = output.FormatPnL(*trade.NetPnL)
				}
				table.AddRow(
					trade.ID,
					FormatTime(trade.Timestamp),
					trade.Strategy,
					string(trade.Type),
					FormatQuantity(trade.DisplayQuantity(), trade.OriginalQty),
					output.StatusTag(string(trade.Status)),
					FormatUSD(trade.TotalCosts()),
					netPnL,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&openOnly, "open", false, "only open trades")
	cmd.Flags().BoolVar(&closedOnly, "closed", false, "only closed trades")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "filter by strategy")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <trade-id>",
		Short: "Show a trade in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			trade, err := app.Service.GetTrade(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			printTradeDetail(output, trade)
			return nil
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trade-id>",
		Short: "Delete a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Service == nil {
				return errors.ErrDatabaseError
			}

			if err := app.Service.DeleteTrade(cmd.Context(), args[0]); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Deleted trade %s", args[0])
			return nil
		},
	}
}

func printCloseResult(output *Output, trade *models.Trade) {
	if trade.Status == models.StatusClosed && trade.NetPnL != nil {
		res, err := pnl.TradePnL(trade)
		if err == nil {
			output.Success("✓ Closed trade %s", trade.ID)
			output.Printf("  Gross: %s  Costs: %s  Net: %s\n",
				output.FormatPnL(res.Gross), FormatUSD(res.TotalCosts),
				output.FormatPnL(res.Net))
			return
		}
	}
	output.Success("✓ Updated trade %s (%s)", trade.ID, trade.Status)
}

func printTradeDetail(output *Output, trade *models.Trade) {
	output.Bold("Trade %s", trade.ID)
	output.Printf("  Date:     %s\n", FormatTime(trade.Timestamp))
	output.Printf("  Strategy: %s\n", trade.Strategy)
	output.Printf("  Type:     %s\n", trade.Type)
	output.Printf("  Status:   %s\n", output.StatusTag(string(trade.Status)))
	if trade.NetPnL != nil {
		output.Printf("  Net P&L:  %s\n", output.FormatPnL(*trade.NetPnL))
	}
	if trade.Risk != nil && !trade.Risk.Empty() {
		output.Printf("  Risk:     econ=%v earnings=%v bond=%v %s\n",
			trade.Risk.EconEvent, trade.Risk.Earnings, trade.Risk.BondAuction,
			trade.Risk.Note)
	}
	output.Println()

	table := NewTable(output, "SYMBOL", "SIDE", "QTY", "ENTRY", "EXIT", "MULT", "COSTS")
	for i, leg := range trade.Legs {
		symbol := leg.Symbol
		if i == trade.FeeLeg && trade.IsSpread() {
			symbol += " *"
		}
		exit := output.DimText("open")
		if leg.ExitPrice != nil {
			exit = FormatPrice(*leg.ExitPrice)
		}
		table.AddRow(
			symbol,
			string(leg.Side),
			strconv.Itoa(leg.Quantity),
			FormatPrice(leg.EntryPrice),
			exit,
			strconv.Itoa(leg.Multiplier),
			FormatUSD(leg.TotalCosts()),
		)
	}
	table.Render()
	if trade.IsSpread() {
		output.Dim("* fee-bearing leg")
	}
	for _, leg := range trade.Legs {
		if leg.CloseReason != "" {
			output.Dim("%s closed: %s", leg.Symbol, leg.CloseReason)
		}
	}
}
