package blotter

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-blotter/internal/config"
	"futures-blotter/internal/errors"
	"futures-blotter/internal/models"
	"futures-blotter/internal/store"
)

// memStore is an in-memory TradeStore for tests.
type memStore struct {
	trades map[string]*models.Trade
}

func newMemStore() *memStore {
	return &memStore{trades: make(map[string]*models.Trade)}
}

func (m *memStore) SaveTrade(_ context.Context, trade *models.Trade) error {
	m.trades[trade.ID] = trade.Clone()
	return nil
}

func (m *memStore) GetTrade(_ context.Context, id string) (*models.Trade, error) {
	trade, ok := m.trades[id]
	if !ok {
		return nil, errors.NewNotFoundError("trade", id)
	}
	return trade.Clone(), nil
}

func (m *memStore) ListTrades(_ context.Context, filter store.Filter) ([]*models.Trade, error) {
	var out []*models.Trade
	for _, trade := range m.trades {
		if filter.Status != "" && trade.Status != filter.Status {
			continue
		}
		if filter.Strategy != "" && trade.Strategy != filter.Strategy {
			continue
		}
		if filter.Type != "" && trade.Type != filter.Type {
			continue
		}
		out = append(out, trade.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *memStore) LoadAllTrades(ctx context.Context) ([]*models.Trade, error) {
	return m.ListTrades(ctx, store.Filter{})
}

func (m *memStore) DeleteTrade(_ context.Context, id string) error {
	if _, ok := m.trades[id]; !ok {
		return errors.NewNotFoundError("trade", id)
	}
	delete(m.trades, id)
	return nil
}

func (m *memStore) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Costs: map[string]config.CostRates{
			"FUTURE": {
				CommissionPerContract:   "1.10",
				ExchangeFeesPerContract: "0.37",
			},
			"OPTION": {
				CommissionPerContract:   "2.20",
				ExchangeFeesPerContract: "0.44",
			},
		},
		Strategies: map[string]config.Strategy{
			"SCALP":    {SpreadKind: "single_leg", DefaultType: "FUTURE", DefaultSide: "BUY"},
			"BULL-PUT": {SpreadKind: "bull_put_spread", DefaultType: "OPTION_SPREAD", DefaultSide: "SELL"},
			"5AM":      {SpreadKind: "single_leg", DefaultType: "OPTION", DefaultSide: "BUY"},
		},
		Multipliers: map[string]int{"MES": 5, "ES": 50},
		OptionBlocks: []config.OptionBlock{
			{Start: "09:30", End: "09:45", Name: "Market open"},
		},
		Exemptions: []string{"5AM"},
		Spread:     config.SpreadConfig{NetPriceWeight: "0.80"},
	}
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	st := newMemStore()
	return NewService(testConfig(), st, zerolog.Nop()), st
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func openBullPut(t *testing.T, svc *Service) *models.Trade {
	t.Helper()
	trade, err := svc.OpenTrade(context.Background(), OpenRequest{
		Strategy: "BULL-PUT",
		Type:     models.TypeOptionSpread,
		Quantity: 80,
		FeeLeg:   0,
		Legs: []LegSpec{
			{Symbol: "MES_5600P", Side: models.SideSell, Price: dec("4.10")},
			{Symbol: "MES_5550P", Side: models.SideBuy, Price: dec("0.10")},
		},
		Timestamp: time.Date(2026, 3, 2, 11, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)
	return trade
}

// countCostBearers returns how many legs carry non-zero entry and exit
// cost records. On a spread each must be at most one.
func countCostBearers(trade *models.Trade) (entry, exit int) {
	for _, leg := range trade.Legs {
		if !leg.EntryCosts.IsZero() {
			entry++
		}
		if leg.ExitCosts != nil && !leg.ExitCosts.IsZero() {
			exit++
		}
	}
	return entry, exit
}

func TestOpenSingleLegFuture(t *testing.T) {
	svc, _ := newTestService(t)

	trade, err := svc.OpenTrade(context.Background(), OpenRequest{
		Strategy: "SCALP",
		Type:     models.TypeFuture,
		Quantity: 2,
		Legs:     []LegSpec{{Symbol: "MES_DEC25", Side: models.SideBuy, Price: dec("5842.25")}},
	})
	require.NoError(t, err)

	require.Len(t, trade.Legs, 1)
	assert.Equal(t, models.StatusOpen, trade.Status)
	assert.Equal(t, 5, trade.Legs[0].Multiplier)
	assert.Equal(t, "2.94", trade.TotalCosts().StringFixed(2))
	assert.Len(t, trade.ID, 8)
}

func TestOpenSpreadFeeAllocation(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)

	entry, exit := countCostBearers(trade)
	assert.Equal(t, 1, entry)
	assert.Equal(t, 0, exit)
	assert.Equal(t, "211.20", trade.FeeBearer().EntryCosts.Total().StringFixed(2))
	assert.True(t, trade.Legs[1].EntryCosts.IsZero())
	assert.Equal(t, 80, trade.DisplayQuantity())
}

func TestOpenSpreadNetCredit(t *testing.T) {
	svc, _ := newTestService(t)

	net := dec("4.00")
	trade, err := svc.OpenTrade(context.Background(), OpenRequest{
		Strategy: "BULL-PUT",
		Type:     models.TypeOptionSpread,
		Quantity: 80,
		FeeLeg:   0,
		NetPrice: &net,
		Legs: []LegSpec{
			{Symbol: "MES_5600P", Side: models.SideSell},
			{Symbol: "MES_5550P", Side: models.SideBuy},
		},
	})
	require.NoError(t, err)

	// The signed sum of derived leg prices equals the entered net exactly.
	assert.True(t, trade.EntryNet().Equal(net), "entry net %s", trade.EntryNet())
	assert.Equal(t, "0.80", trade.Legs[1].EntryPrice.StringFixed(2))
	assert.Equal(t, "4.80", trade.Legs[0].EntryPrice.StringFixed(2))

	// Credit received net of the entry charge.
	credit := net.Mul(dec("400")).Sub(trade.TotalCosts())
	assert.Equal(t, "1388.80", credit.StringFixed(2))
}

func TestOpenSpreadNetTooSmallForFeeLeg(t *testing.T) {
	svc, _ := newTestService(t)

	// A negative net on a credit-shaped spread would force a negative
	// price on the short fee leg.
	net := dec("-5.00")
	_, err := svc.OpenTrade(context.Background(), OpenRequest{
		Strategy: "BULL-PUT",
		Type:     models.TypeOptionSpread,
		Quantity: 10,
		FeeLeg:   0,
		NetPrice: &net,
		Legs: []LegSpec{
			{Symbol: "MES_5600P", Side: models.SideSell},
			{Symbol: "MES_5550P", Side: models.SideBuy},
		},
	})
	var vErr *errors.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestOpenValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  OpenRequest
	}{
		{"unknown strategy", OpenRequest{Strategy: "NOPE", Type: models.TypeFuture, Quantity: 1,
			Legs: []LegSpec{{Symbol: "MES", Side: models.SideBuy, Price: dec("1")}}}},
		{"zero quantity", OpenRequest{Strategy: "SCALP", Type: models.TypeFuture, Quantity: 0,
			Legs: []LegSpec{{Symbol: "MES", Side: models.SideBuy, Price: dec("1")}}}},
		{"no legs", OpenRequest{Strategy: "SCALP", Type: models.TypeFuture, Quantity: 1}},
		{"spread with one leg", OpenRequest{Strategy: "BULL-PUT", Type: models.TypeOptionSpread, Quantity: 1,
			Legs: []LegSpec{{Symbol: "MES_5600P", Side: models.SideSell, Price: dec("1")}}}},
		{"duplicate symbols", OpenRequest{Strategy: "BULL-PUT", Type: models.TypeOptionSpread, Quantity: 1,
			Legs: []LegSpec{
				{Symbol: "MES_5600P", Side: models.SideSell, Price: dec("1")},
				{Symbol: "MES_5600P", Side: models.SideBuy, Price: dec("1")},
			}}},
		{"fee leg out of range", OpenRequest{Strategy: "BULL-PUT", Type: models.TypeOptionSpread, Quantity: 1, FeeLeg: 5,
			Legs: []LegSpec{
				{Symbol: "MES_5600P", Side: models.SideSell, Price: dec("1")},
				{Symbol: "MES_5550P", Side: models.SideBuy, Price: dec("1")},
			}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.OpenTrade(ctx, tc.req)
			assert.Error(t, err)
		})
	}
}

func TestOptionBlockRefusesOpen(t *testing.T) {
	svc, _ := newTestService(t)

	inWindow := time.Date(2026, 3, 2, 9, 35, 0, 0, time.Local)
	_, err := svc.OpenTrade(context.Background(), OpenRequest{
		Strategy: "BULL-PUT",
		Type:     models.TypeOptionSpread,
		Quantity: 10,
		Legs: []LegSpec{
			{Symbol: "MES_5600P", Side: models.SideSell, Price: dec("4.10")},
			{Symbol: "MES_5550P", Side: models.SideBuy, Price: dec("0.10")},
		},
		Timestamp: inWindow,
	})
	require.ErrorIs(t, err, errors.ErrOptionsBlocked)

	// Futures trade at the same time is fine.
	_, err = svc.OpenTrade(context.Background(), OpenRequest{
		Strategy:  "SCALP",
		Type:      models.TypeFuture,
		Quantity:  1,
		Legs:      []LegSpec{{Symbol: "MES_DEC25", Side: models.SideBuy, Price: dec("5842.25")}},
		Timestamp: inWindow,
	})
	require.NoError(t, err)

	// Exempt strategy trades options through the window.
	_, err = svc.OpenTrade(context.Background(), OpenRequest{
		Strategy:  "5AM",
		Type:      models.TypeOption,
		Quantity:  1,
		Legs:      []LegSpec{{Symbol: "MES_5800C", Side: models.SideBuy, Price: dec("12.50")}},
		Timestamp: inWindow,
	})
	require.NoError(t, err)
}

func TestCloseSpreadNetDebit(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)

	closed, err := svc.CloseTrade(context.Background(), trade.ID, dec("1.05"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusClosed, closed.Status)
	entry, exit := countCostBearers(closed)
	assert.Equal(t, 1, entry)
	assert.Equal(t, 1, exit)

	// Exit net equals the entered value exactly.
	exitNet := decimal.Zero
	for _, leg := range closed.Legs {
		exitNet = exitNet.Add(leg.SignedExit())
	}
	assert.Equal(t, "1.05", exitNet.StringFixed(2))

	// (4.00 - 1.05) * 80 * 5 - 422.40
	require.NotNil(t, closed.NetPnL)
	assert.Equal(t, "757.60", closed.NetPnL.StringFixed(2))
}

func TestCloseAlreadyClosed(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)

	_, err := svc.CloseTrade(context.Background(), trade.ID, dec("1.05"))
	require.NoError(t, err)

	_, err = svc.CloseTrade(context.Background(), trade.ID, dec("1.05"))
	require.ErrorIs(t, err, errors.ErrTradeClosed)
}

func TestCloseLegByLeg(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	after, err := svc.CloseLeg(ctx, trade.ID, "MES_5600P", dec("1.40"), "took profit at support")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, after.Status)
	assert.Nil(t, after.NetPnL)
	assert.Equal(t, "took profit at support", after.FindLeg("MES_5600P").CloseReason)

	// First real close carries the one exit charge.
	_, exit := countCostBearers(after)
	assert.Equal(t, 1, exit)
	assert.Equal(t, "211.20", after.FindLeg("MES_5600P").ExitCosts.Total().StringFixed(2))

	after, err = svc.CloseLeg(ctx, trade.ID, "MES_5550P", dec("0.35"), "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, after.Status)

	// Second close gets a zero record; still exactly one bearer.
	_, exit = countCostBearers(after)
	assert.Equal(t, 1, exit)
	assert.True(t, after.FindLeg("MES_5550P").ExitCosts.IsZero())

	require.NotNil(t, after.NetPnL)
	assert.Equal(t, "757.60", after.NetPnL.StringFixed(2))

	_, err = svc.CloseLeg(ctx, trade.ID, "MES_5550P", dec("0.35"), "")
	require.ErrorIs(t, err, errors.ErrLegClosed)
}

func TestExpireLegThenCloseOther(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	after, err := svc.ExpireLeg(ctx, trade.ID, "MES_5550P")
	require.NoError(t, err)
	long := after.FindLeg("MES_5550P")
	assert.True(t, long.IsExpired())
	assert.True(t, long.ExitCosts.IsZero())

	// The later real close still pays the exit charge.
	after, err = svc.CloseLeg(ctx, trade.ID, "MES_5600P", dec("0.50"), "assignment risk")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, after.Status)
	assert.Equal(t, "211.20", after.FindLeg("MES_5600P").ExitCosts.Total().StringFixed(2))
}

func TestCloseSpreadWithSingleOpenLeg(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	_, err := svc.ExpireLeg(ctx, trade.ID, "MES_5550P")
	require.NoError(t, err)

	// With one leg left, the net close lands entirely on it.
	closed, err := svc.CloseTrade(ctx, trade.ID, dec("1.40"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)

	short := closed.FindLeg("MES_5600P")
	require.NotNil(t, short.ExitPrice)
	assert.Equal(t, "1.40", short.ExitPrice.StringFixed(2))
	assert.Equal(t, "211.20", short.ExitCosts.Total().StringFixed(2))

	// (4.10-1.40)*400 - 0.10*400 - 422.40
	require.NotNil(t, closed.NetPnL)
	assert.Equal(t, "617.60", closed.NetPnL.StringFixed(2))
}

func TestExpireSpread(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)

	expired, err := svc.ExpireSpread(context.Background(), trade.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusClosed, expired.Status)
	for _, leg := range expired.Legs {
		require.True(t, leg.IsExpired())
		require.True(t, leg.ExitCosts.IsZero())
	}

	// Only the entry charge applies: 4.00 * 400 - 211.20.
	assert.Equal(t, "211.20", expired.TotalCosts().StringFixed(2))
	require.NotNil(t, expired.NetPnL)
	assert.Equal(t, "1388.80", expired.NetPnL.StringFixed(2))
}

func TestExpireSpreadOnSingleLeg(t *testing.T) {
	svc, _ := newTestService(t)

	trade, err := svc.OpenTrade(context.Background(), OpenRequest{
		Strategy: "SCALP",
		Type:     models.TypeFuture,
		Quantity: 1,
		Legs:     []LegSpec{{Symbol: "MES_DEC25", Side: models.SideBuy, Price: dec("5842.25")}},
	})
	require.NoError(t, err)

	_, err = svc.ExpireSpread(context.Background(), trade.ID)
	require.ErrorIs(t, err, errors.ErrNotASpread)
}

func TestClosePartial(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	trade, err := svc.OpenTrade(ctx, OpenRequest{
		Strategy: "SCALP",
		Type:     models.TypeFuture,
		Quantity: 10,
		Legs:     []LegSpec{{Symbol: "MES_DEC25", Side: models.SideBuy, Price: dec("5800.00")}},
	})
	require.NoError(t, err)
	entryCosts := trade.Legs[0].EntryCosts

	child, err := svc.ClosePartial(ctx, trade.ID, 4, dec("5810.00"))
	require.NoError(t, err)

	assert.Equal(t, trade.ID+"-P1", child.ID)
	assert.Equal(t, models.StatusClosed, child.Status)
	assert.Equal(t, 4, child.Legs[0].Quantity)
	require.NotNil(t, child.NetPnL)

	parent, err := st.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, parent.Status)
	assert.Equal(t, 6, parent.Legs[0].Quantity)
	assert.Equal(t, 10, parent.OriginalQty)

	// The two entry records still sum to the original charge.
	sum := parent.Legs[0].EntryCosts.Total().Add(child.Legs[0].EntryCosts.Total())
	assert.True(t, sum.Equal(entryCosts.Total()), "split %s vs %s", sum, entryCosts.Total())

	// Second partial gets the next child ID.
	child2, err := svc.ClosePartial(ctx, trade.ID, 2, dec("5815.00"))
	require.NoError(t, err)
	assert.Equal(t, trade.ID+"-P2", child2.ID)
}

func TestClosePartialRejectsFullQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	trade, err := svc.OpenTrade(ctx, OpenRequest{
		Strategy: "SCALP",
		Type:     models.TypeFuture,
		Quantity: 3,
		Legs:     []LegSpec{{Symbol: "MES_DEC25", Side: models.SideBuy, Price: dec("5800.00")}},
	})
	require.NoError(t, err)

	for _, qty := range []int{0, 3, 7} {
		_, err := svc.ClosePartial(ctx, trade.ID, qty, dec("5810.00"))
		var vErr *errors.ValidationError
		require.ErrorAs(t, err, &vErr, "qty %d", qty)
	}
}

// faultyGetStore fails reads of child trade IDs to simulate a flaky
// database during the free-ID scan.
type faultyGetStore struct {
	*memStore
}

func (f *faultyGetStore) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	if strings.Contains(id, "-P") {
		return nil, errors.Wrap(errors.ErrDatabaseError, "read trade")
	}
	return f.memStore.GetTrade(ctx, id)
}

func TestClosePartialSurfacesStoreErrors(t *testing.T) {
	st := newMemStore()
	svc := NewService(testConfig(), &faultyGetStore{memStore: st}, zerolog.Nop())
	ctx := context.Background()

	trade, err := svc.OpenTrade(ctx, OpenRequest{
		Strategy: "SCALP",
		Type:     models.TypeFuture,
		Quantity: 10,
		Legs:     []LegSpec{{Symbol: "MES_DEC25", Side: models.SideBuy, Price: dec("5800.00")}},
	})
	require.NoError(t, err)

	// A store failure must not be mistaken for a free child ID.
	_, err = svc.ClosePartial(ctx, trade.ID, 4, dec("5810.00"))
	require.ErrorIs(t, err, errors.ErrDatabaseError)
	_, ok := st.trades[trade.ID+"-P1"]
	assert.False(t, ok)
}

func TestFixQuantityRecomputesCosts(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	qty := 40
	fixed, err := svc.FixTrade(ctx, trade.ID, FixRequest{
		Legs: map[string]LegFix{
			"MES_5600P": {Quantity: &qty},
			"MES_5550P": {Quantity: &qty},
		},
	})
	require.NoError(t, err)

	// 40 * 2.64
	assert.Equal(t, "105.60", fixed.TotalCosts().StringFixed(2))
}

func TestFixExitPriceRefreshesPnL(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	_, err := svc.CloseTrade(ctx, trade.ID, dec("1.05"))
	require.NoError(t, err)

	fixed, err := svc.FixTrade(ctx, trade.ID, FixRequest{
		Legs: map[string]LegFix{
			"MES_5600P": {ExitPrice: decPtr("1.40")},
			"MES_5550P": {ExitPrice: decPtr("0.35")},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, fixed.NetPnL)
	assert.Equal(t, "757.60", fixed.NetPnL.StringFixed(2))
}

func TestRecalcRepairsCachedPnL(t *testing.T) {
	svc, st := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	_, err := svc.CloseTrade(ctx, trade.ID, dec("1.05"))
	require.NoError(t, err)

	// Corrupt the cached figure.
	bogus := dec("0.01")
	st.trades[trade.ID].NetPnL = &bogus

	repaired, changed, err := svc.RecalcTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "757.60", repaired.NetPnL.StringFixed(2))

	// A second run is a no-op.
	_, changed, err = svc.RecalcTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRecalcPreservesRecordedCosts(t *testing.T) {
	svc, st := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	_, err := svc.CloseTrade(ctx, trade.ID, dec("1.05"))
	require.NoError(t, err)

	// A later rate hike must not rewrite costs recorded at fill time.
	raised := testConfig()
	raised.Costs["OPTION"] = config.CostRates{
		CommissionPerContract:   "3.00",
		ExchangeFeesPerContract: "0.44",
	}
	later := NewService(raised, st, zerolog.Nop())

	repaired, changed, err := later.RecalcTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "422.40", repaired.TotalCosts().StringFixed(2))
	require.NotNil(t, repaired.NetPnL)
	assert.Equal(t, "757.60", repaired.NetPnL.StringFixed(2))
}

func TestFixExitOnOpenLegRecordsCosts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	trade, err := svc.OpenTrade(ctx, OpenRequest{
		Strategy: "SCALP",
		Type:     models.TypeFuture,
		Quantity: 2,
		Legs:     []LegSpec{{Symbol: "MES_DEC25", Side: models.SideBuy, Price: dec("5800.00")}},
	})
	require.NoError(t, err)

	// Closing through fix still records the exit charge.
	fixed, err := svc.FixTrade(ctx, trade.ID, FixRequest{
		Legs: map[string]LegFix{"MES_DEC25": {ExitPrice: decPtr("5810.00")}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusClosed, fixed.Status)
	require.NotNil(t, fixed.Legs[0].ExitCosts)
	assert.Equal(t, "2.94", fixed.Legs[0].ExitCosts.Total().StringFixed(2))
	require.NotNil(t, fixed.NetPnL)
	// 10.00 * 2 * 5 - 5.88
	assert.Equal(t, "94.12", fixed.NetPnL.StringFixed(2))
}

func TestFixExitOnOpenSpreadKeepsOneExitBearer(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	fixed, err := svc.FixTrade(ctx, trade.ID, FixRequest{
		Legs: map[string]LegFix{
			"MES_5600P": {ExitPrice: decPtr("1.40")},
			"MES_5550P": {ExitPrice: decPtr("0.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusClosed, fixed.Status)
	_, exit := countCostBearers(fixed)
	assert.Equal(t, 1, exit)
	// The expired long carries an explicit zero; the short pays the charge.
	assert.True(t, fixed.FindLeg("MES_5550P").ExitCosts.IsZero())
	assert.Equal(t, "211.20", fixed.FindLeg("MES_5600P").ExitCosts.Total().StringFixed(2))
	require.NotNil(t, fixed.NetPnL)
	assert.Equal(t, "617.60", fixed.NetPnL.StringFixed(2))
}

func TestRecalcLeavesExpirationFree(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	_, err := svc.ExpireSpread(ctx, trade.ID)
	require.NoError(t, err)

	repaired, _, err := svc.RecalcTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, "211.20", repaired.TotalCosts().StringFixed(2))
}

func TestBackfillMissingCosts(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	// A closed trade recorded with no cost records at all.
	zero := models.ZeroFees()
	st.trades["deadbeef"] = &models.Trade{
		ID:        "deadbeef",
		Timestamp: time.Now(),
		Type:      models.TypeFuture,
		Strategy:  "SCALP",
		Status:    models.StatusClosed,
		Legs: []*models.Leg{{
			Symbol: "MES_DEC25", Side: models.SideBuy, Quantity: 2,
			EntryPrice: dec("5800.00"), ExitPrice: decPtr("5810.00"), Multiplier: 5,
			EntryCosts: zero, ExitCosts: &zero,
		}},
	}

	filled, changed, err := svc.BackfillTrade(ctx, "deadbeef")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "5.88", filled.TotalCosts().StringFixed(2))
	require.NotNil(t, filled.NetPnL)
	assert.Equal(t, "94.12", filled.NetPnL.StringFixed(2))

	// Backfill leaves trades with recorded costs alone.
	_, changed, err = svc.BackfillTrade(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestAuditFlagsDrift(t *testing.T) {
	svc, st := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	_, err := svc.CloseTrade(ctx, trade.ID, dec("1.05"))
	require.NoError(t, err)

	report, err := svc.AuditTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.True(t, report.Clean)
	assert.Equal(t, "422.40", report.ExpectedCosts.StringFixed(2))

	// Drift the cached P&L past the tolerance.
	bogus := dec("999.00")
	st.trades[trade.ID].NetPnL = &bogus

	report, err = svc.AuditTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.False(t, report.Clean)

	reports, dirty, err := svc.AuditAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dirty)
	assert.Len(t, reports, 1)
}

func TestDeleteTrade(t *testing.T) {
	svc, _ := newTestService(t)
	trade := openBullPut(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.DeleteTrade(ctx, trade.ID))

	_, err := svc.GetTrade(ctx, trade.ID)
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)

	err = svc.DeleteTrade(ctx, trade.ID)
	require.ErrorAs(t, err, &nf)
}
