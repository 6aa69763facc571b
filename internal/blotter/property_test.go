package blotter

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"futures-blotter/internal/models"
)

// Property: recalculating a trade is idempotent. After one recalc, a
// second recalc never reports a change, for any quantity and any pair of
// entry/exit nets.
func TestProperty_RecalcIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	qtyGen := gen.IntRange(1, 500)
	entryCentsGen := gen.IntRange(50, 2000)  // 0.50 .. 20.00 credit
	exitCentsGen := gen.IntRange(0, 1000)    // 0.00 .. 10.00 debit

	properties.Property("second recalc is a no-op", prop.ForAll(
		func(qty, entryCents, exitCents int) bool {
			svc := NewService(testConfig(), newMemStore(), zerolog.Nop())
			ctx := context.Background()

			entryNet := decimal.New(int64(entryCents), -2)
			exitNet := decimal.New(int64(exitCents), -2)

			trade, err := svc.OpenTrade(ctx, OpenRequest{
				Strategy: "BULL-PUT",
				Type:     models.TypeOptionSpread,
				Quantity: qty,
				FeeLeg:   0,
				NetPrice: &entryNet,
				Legs: []LegSpec{
					{Symbol: "MES_5600P", Side: models.SideSell},
					{Symbol: "MES_5550P", Side: models.SideBuy},
				},
			})
			if err != nil {
				return false
			}
			if _, err := svc.CloseTrade(ctx, trade.ID, exitNet); err != nil {
				return false
			}

			if _, _, err := svc.RecalcTrade(ctx, trade.ID); err != nil {
				return false
			}
			_, changed, err := svc.RecalcTrade(ctx, trade.ID)
			if err != nil {
				return false
			}
			if changed {
				t.Logf("FAILED: qty=%d entry=%s exit=%s: second recalc changed the trade",
					qty, entryNet, exitNet)
				return false
			}
			return true
		},
		qtyGen,
		entryCentsGen,
		exitCentsGen,
	))

	properties.TestingRun(t)
}

// Property: on any spread lifecycle, exactly one leg carries non-zero
// entry costs and at most one leg carries non-zero exit costs, and the
// signed sums of derived prices equal the entered nets exactly.
func TestProperty_SpreadFeeAllocationInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	qtyGen := gen.IntRange(1, 300)
	entryCentsGen := gen.IntRange(100, 1500)
	exitCentsGen := gen.IntRange(0, 90)
	expireGen := gen.Bool()

	properties.Property("one entry bearer, at most one exit bearer", prop.ForAll(
		func(qty, entryCents, exitCents int, expire bool) bool {
			svc := NewService(testConfig(), newMemStore(), zerolog.Nop())
			ctx := context.Background()

			entryNet := decimal.New(int64(entryCents), -2)
			exitNet := decimal.New(int64(exitCents), -2)

			trade, err := svc.OpenTrade(ctx, OpenRequest{
				Strategy: "BULL-PUT",
				Type:     models.TypeOptionSpread,
				Quantity: qty,
				FeeLeg:   0,
				NetPrice: &entryNet,
				Legs: []LegSpec{
					{Symbol: "MES_5600P", Side: models.SideSell},
					{Symbol: "MES_5550P", Side: models.SideBuy},
				},
			})
			if err != nil {
				return false
			}
			if !trade.EntryNet().Equal(entryNet) {
				t.Logf("FAILED: entry net %s != %s", trade.EntryNet(), entryNet)
				return false
			}

			var closed *models.Trade
			if expire {
				closed, err = svc.ExpireSpread(ctx, trade.ID)
			} else {
				closed, err = svc.CloseTrade(ctx, trade.ID, exitNet)
			}
			if err != nil {
				return false
			}

			entryBearers, exitBearers := countCostBearers(closed)
			if entryBearers != 1 {
				t.Logf("FAILED: %d entry cost bearers", entryBearers)
				return false
			}
			wantExit := 1
			if expire {
				wantExit = 0
			}
			if exitBearers != wantExit {
				t.Logf("FAILED: %d exit cost bearers, want %d (expire=%v)",
					exitBearers, wantExit, expire)
				return false
			}

			if !expire {
				sum := decimal.Zero
				for _, leg := range closed.Legs {
					sum = sum.Add(leg.SignedExit())
				}
				if !sum.Equal(exitNet) {
					t.Logf("FAILED: exit net %s != %s", sum, exitNet)
					return false
				}
			}
			return true
		},
		qtyGen,
		entryCentsGen,
		exitCentsGen,
		expireGen,
	))

	properties.TestingRun(t)
}
