package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"b3-tracker/pkg/utils"
)

// FormatPrice formats a unit price in reais; a missing price renders as "-".
func FormatPrice(price float64, missing bool) string {
	if missing {
		return "-"
	}
	return utils.FormatBRL(price)
}

// FormatValue formats an indicator value with two decimals. NaN (warm-up
// bars) renders as "-".
func FormatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatDate formats a date the way the broker export writes it.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}

// FormatDateTime formats a timestamp in São Paulo time.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(utils.SaoPauloLocation).Format("02/01/2006 15:04")
}

// FormatVolume formats traded volume compactly.
func FormatVolume(volume int64) string {
	switch {
	case volume >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(volume)/1e9)
	case volume >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(volume)/1e6)
	case volume >= 1_000:
		return fmt.Sprintf("%.2fK", float64(volume)/1e3)
	}
	return fmt.Sprintf("%d", volume)
}

// TruncateString truncates a string to maxLen runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// PadRight pads a string to the right.
func PadRight(s string, length int) string {
	if n := displayWidth(s); n < length {
		return s + strings.Repeat(" ", length-n)
	}
	return s
}
