package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"futures-blotter/internal/errors"
	"futures-blotter/internal/models"
)

// SQLiteStore implements TradeStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed trade store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id            TEXT PRIMARY KEY,
		ts            DATETIME NOT NULL,
		type          TEXT NOT NULL,
		strategy      TEXT NOT NULL,
		fee_leg       INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL,
		net_pnl       TEXT,
		risk_present  INTEGER NOT NULL DEFAULT 0,
		risk_econ     INTEGER NOT NULL DEFAULT 0,
		risk_earnings INTEGER NOT NULL DEFAULT 0,
		risk_bond     INTEGER NOT NULL DEFAULT 0,
		risk_note     TEXT NOT NULL DEFAULT '',
		original_qty  INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS trade_legs (
		trade_id         TEXT NOT NULL REFERENCES trades(id) ON DELETE CASCADE,
		leg_index        INTEGER NOT NULL,
		symbol           TEXT NOT NULL,
		side             TEXT NOT NULL,
		quantity         INTEGER NOT NULL,
		entry_price      TEXT NOT NULL,
		exit_price       TEXT,
		multiplier       INTEGER NOT NULL DEFAULT 1,
		entry_commission TEXT NOT NULL,
		entry_exchange   TEXT NOT NULL,
		entry_regulatory TEXT NOT NULL,
		exit_commission  TEXT,
		exit_exchange    TEXT,
		exit_regulatory  TEXT,
		close_reason     TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (trade_id, leg_index)
	);

	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);
	CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTrade inserts or replaces a trade and all its legs in one
// transaction. Legs are rewritten wholesale so leg indexes stay dense.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	defer tx.Rollback()

	var netPnL sql.NullString
	if trade.NetPnL != nil {
		netPnL = sql.NullString{String: trade.NetPnL.String(), Valid: true}
	}

	var riskPresent, riskEcon, riskEarnings, riskBond bool
	var riskNote string
	if trade.Risk != nil {
		riskPresent = true
		riskEcon = trade.Risk.EconEvent
		riskEarnings = trade.Risk.Earnings
		riskBond = trade.Risk.BondAuction
		riskNote = trade.Risk.Note
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO trades
			(id, ts, type, strategy, fee_leg, status, net_pnl,
			 risk_present, risk_econ, risk_earnings, risk_bond, risk_note,
			 original_qty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Timestamp.UTC(), string(trade.Type), trade.Strategy,
		trade.FeeLeg, string(trade.Status), netPnL,
		riskPresent, riskEcon, riskEarnings, riskBond, riskNote,
		trade.OriginalQty,
	)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trade_legs WHERE trade_id = ?`, trade.ID); err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}

	for i, leg := range trade.Legs {
		var exitPrice, exitComm, exitExch, exitReg sql.NullString
		if leg.ExitPrice != nil {
			exitPrice = sql.NullString{String: leg.ExitPrice.String(), Valid: true}
		}
		if leg.ExitCosts != nil {
			exitComm = sql.NullString{String: leg.ExitCosts.Commission.String(), Valid: true}
			exitExch = sql.NullString{String: leg.ExitCosts.ExchangeFees.String(), Valid: true}
			exitReg = sql.NullString{String: leg.ExitCosts.RegulatoryFees.String(), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO trade_legs
				(trade_id, leg_index, symbol, side, quantity,
				 entry_price, exit_price, multiplier,
				 entry_commission, entry_exchange, entry_regulatory,
				 exit_commission, exit_exchange, exit_regulatory,
				 close_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			trade.ID, i, leg.Symbol, string(leg.Side), leg.Quantity,
			leg.EntryPrice.String(), exitPrice, leg.Multiplier,
			leg.EntryCosts.Commission.String(),
			leg.EntryCosts.ExchangeFees.String(),
			leg.EntryCosts.RegulatoryFees.String(),
			exitComm, exitExch, exitReg,
			leg.CloseReason,
		)
		if err != nil {
			return errors.Wrap(errors.ErrDatabaseError, err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	return nil
}

// GetTrade retrieves a trade by ID.
func (s *SQLiteStore) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ts, type, strategy, fee_leg, status, net_pnl,
		       risk_present, risk_econ, risk_earnings, risk_bond, risk_note,
		       original_qty
		FROM trades WHERE id = ?`, id)

	trade, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("trade", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}

	if err := s.loadLegs(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ListTrades retrieves trades matching the filter, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, filter Filter) ([]*models.Trade, error) {
	query := `
		SELECT id, ts, type, strategy, fee_leg, status, net_pnl,
		       risk_present, risk_econ, risk_earnings, risk_bond, risk_note,
		       original_qty
		FROM trades WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Strategy != "" {
		query += " AND strategy = ?"
		args = append(args, filter.Strategy)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	query += " ORDER BY ts DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}

	for _, trade := range trades {
		if err := s.loadLegs(ctx, trade); err != nil {
			return nil, err
		}
	}
	return trades, nil
}

// LoadAllTrades retrieves every trade, newest first.
func (s *SQLiteStore) LoadAllTrades(ctx context.Context) ([]*models.Trade, error) {
	return s.ListTrades(ctx, Filter{})
}

// DeleteTrade removes a trade and its legs.
func (s *SQLiteStore) DeleteTrade(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	if n == 0 {
		return errors.NewNotFoundError("trade", id)
	}
	// Legs cascade, but run the delete explicitly in case foreign keys
	// were disabled on an older database file.
	_, err = s.db.ExecContext(ctx, `DELETE FROM trade_legs WHERE trade_id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var (
		trade        models.Trade
		ts           time.Time
		typ, status  string
		netPnL       sql.NullString
		riskPresent  bool
		riskEcon     bool
		riskEarnings bool
		riskBond     bool
		riskNote     string
	)

	err := row.Scan(&trade.ID, &ts, &typ, &trade.Strategy, &trade.FeeLeg,
		&status, &netPnL,
		&riskPresent, &riskEcon, &riskEarnings, &riskBond, &riskNote,
		&trade.OriginalQty)
	if err != nil {
		return nil, err
	}

	trade.Timestamp = ts
	trade.Type = models.TradeType(typ)
	trade.Status = models.TradeStatus(status)

	if netPnL.Valid {
		v, err := decimal.NewFromString(netPnL.String)
		if err != nil {
			return nil, fmt.Errorf("trade %s: bad net_pnl %q: %w", trade.ID, netPnL.String, err)
		}
		trade.NetPnL = &v
	}

	if riskPresent {
		trade.Risk = &models.Risk{
			EconEvent:   riskEcon,
			Earnings:    riskEarnings,
			BondAuction: riskBond,
			Note:        riskNote,
		}
	}

	return &trade, nil
}

func (s *SQLiteStore) loadLegs(ctx context.Context, trade *models.Trade) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, side, quantity, entry_price, exit_price, multiplier,
		       entry_commission, entry_exchange, entry_regulatory,
		       exit_commission, exit_exchange, exit_regulatory,
		       close_reason
		FROM trade_legs WHERE trade_id = ? ORDER BY leg_index`, trade.ID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	defer rows.Close()

	trade.Legs = nil
	for rows.Next() {
		var (
			leg                            models.Leg
			side, entryPrice               string
			exitPrice                      sql.NullString
			entryComm, entryExch, entryReg string
			exitComm, exitExch, exitReg    sql.NullString
		)

		err := rows.Scan(&leg.Symbol, &side, &leg.Quantity, &entryPrice,
			&exitPrice, &leg.Multiplier,
			&entryComm, &entryExch, &entryReg,
			&exitComm, &exitExch, &exitReg,
			&leg.CloseReason)
		if err != nil {
			return errors.Wrap(errors.ErrDatabaseError, err.Error())
		}

		leg.Side = models.Side(side)
		if leg.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
			return fmt.Errorf("trade %s leg %s: bad entry price: %w", trade.ID, leg.Symbol, err)
		}
		if exitPrice.Valid {
			v, err := decimal.NewFromString(exitPrice.String)
			if err != nil {
				return fmt.Errorf("trade %s leg %s: bad exit price: %w", trade.ID, leg.Symbol, err)
			}
			leg.ExitPrice = &v
		}

		if leg.EntryCosts, err = scanFees(entryComm, entryExch, entryReg); err != nil {
			return fmt.Errorf("trade %s leg %s: bad entry costs: %w", trade.ID, leg.Symbol, err)
		}
		if exitComm.Valid {
			fees, err := scanFees(exitComm.String, exitExch.String, exitReg.String)
			if err != nil {
				return fmt.Errorf("trade %s leg %s: bad exit costs: %w", trade.ID, leg.Symbol, err)
			}
			leg.ExitCosts = &fees
		}

		trade.Legs = append(trade.Legs, &leg)
	}
	return rows.Err()
}

func scanFees(comm, exch, reg string) (models.CommissionFees, error) {
	var fees models.CommissionFees
	var err error
	if fees.Commission, err = decimal.NewFromString(comm); err != nil {
		return fees, err
	}
	if fees.ExchangeFees, err = decimal.NewFromString(exch); err != nil {
		return fees, err
	}
	if fees.RegulatoryFees, err = decimal.NewFromString(reg); err != nil {
		return fees, err
	}
	return fees, nil
}
