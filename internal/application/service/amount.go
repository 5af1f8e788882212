package service

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var jaPrinter = message.NewPrinter(language.Japanese)

// maxAmountFractionDigits matches the ja-JP locale default
const maxAmountFractionDigits = 3

// FormatAmount renders an amount with ja-JP digit grouping, e.g. 3500 -> "3,500"
// and 1234.5678 -> "1,234.568"
func FormatAmount(amount decimal.Decimal) string {
	f, _ := amount.Round(maxAmountFractionDigits).Float64()
	return jaPrinter.Sprint(number.Decimal(f, number.MaxFractionDigits(maxAmountFractionDigits)))
}
