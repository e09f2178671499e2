// Package b3 parses and classifies B3 brokerage movement exports.
package b3

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	exportDateLayout = "02/01/2006"
	isoDateLayout    = "2006-01-02"
)

var numericStripper = strings.NewReplacer(
	"R$", "",
	"%", "",
	"\u00a0", "",
	" ", "",
)

// ParseNumeric parses a Brazilian-locale number ("1.234,56"). A string with a
// comma is decimal formatted: dots are thousands separators. Without a comma
// a single dot is a decimal point and repeated dots are thousands separators.
// Unparseable input yields 0 and ok=false.
func ParseNumeric(s string) (float64, bool) {
	v := numericStripper.Replace(strings.TrimSpace(s))
	if v == "" {
		return 0, false
	}

	if strings.Contains(v, ",") {
		v = strings.ReplaceAll(v, ".", "")
		v = strings.Replace(v, ",", ".", 1)
	} else if strings.Count(v, ".") > 1 {
		v = strings.ReplaceAll(v, ".", "")
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseCount parses an integer count written with thousands separators
// ("12.345" is 12345).
func ParseCount(s string) (float64, bool) {
	v := numericStripper.Replace(strings.TrimSpace(s))
	v = strings.NewReplacer(".", "", ",", "").Replace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

// ParseNumericOrZero is ParseNumeric without the ok flag.
func ParseNumericOrZero(s string) float64 {
	f, _ := ParseNumeric(s)
	return f
}

// isBlank reports values the export uses for "not applicable".
func isBlank(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "-", "--":
		return true
	}
	return false
}

// ParseDate parses a dd/mm/yyyy export date. Invalid input yields the zero
// time and ok=false.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(exportDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseISODate parses a yyyy-mm-dd date.
func ParseISODate(s string) (time.Time, bool) {
	t, err := time.Parse(isoDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// fold upper-cases s and strips diacritics so "Crédito" matches "CREDITO".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

// capitalize trims s and upper-cases its first letter, lower-casing the rest.
func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
