package portfolio

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders d as a dollar amount rounded to cents, e.g. "$1,234.56".
func FormatUSD(d decimal.Decimal) string {
	cents := d.Round(2).Shift(2).IntPart()
	if cents < 0 {
		return "-" + money.New(-cents, money.USD).Display()
	}
	return money.New(cents, money.USD).Display()
}

// FormatPercent renders p with one decimal place, e.g. "62.5%".
func FormatPercent(p decimal.Decimal) string {
	return p.StringFixed(1) + "%"
}
