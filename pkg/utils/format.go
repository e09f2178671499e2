// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// brl returns the BRL currency definition.
func brl() *money.Currency {
	return money.New(0, money.BRL).Currency()
}

// FormatBRL formats an amount in reais ("R$1.234,56").
func FormatBRL(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "-"
	}
	cur := brl()
	cents := decimal.NewFromFloat(amount).Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(cents.IntPart())
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatRatio formats a fraction (0.3) as a signed percentage (+30.00%).
func FormatRatio(ratio float64) string {
	return FormatPercent(ratio * 100)
}

// FormatPnL formats P&L with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := FormatBRL(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatQuantity formats a quantity with dot thousands separators. Whole
// quantities have no decimals; fractional ones keep up to four.
func FormatQuantity(qty float64) string {
	negative := qty < 0
	if negative {
		qty = -qty
	}

	d := decimal.NewFromFloat(qty).Round(4)
	intPart := d.Truncate(0).String()
	frac := strings.TrimPrefix(d.Sub(d.Truncate(0)).String(), "0.")
	if frac == "0" {
		frac = ""
	}

	out := groupThousands(intPart)
	if frac != "" {
		out += "," + frac
	}
	if negative {
		out = "-" + out
	}
	return out
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatCompact formats a large amount in millions or billions.
func FormatCompact(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("R$ %.2f bi", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("R$ %.2f mi", amount/1e6)
	}
	return FormatBRL(amount)
}
