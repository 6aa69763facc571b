package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FormatUSD formats an amount as US dollars.
func FormatUSD(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return fmt.Sprintf("-$%s", amount.Abs().StringFixed(2))
	}
	return fmt.Sprintf("$%s", amount.StringFixed(2))
}

// FormatPrice formats a price with two decimal places and no currency
// symbol, the way fills are quoted.
func FormatPrice(price decimal.Decimal) string {
	return price.StringFixed(2)
}

// FormatTime formats a trade timestamp for listings.
func FormatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// FormatQuantity shows remaining/original after a partial close.
func FormatQuantity(qty, originalQty int) string {
	if originalQty > 0 && originalQty != qty {
		return fmt.Sprintf("%d/%d", qty, originalQty)
	}
	return fmt.Sprintf("%d", qty)
}
