package normalize

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NegativeParen marks formats that wrap negative numerals in parentheses,
// e.g. "(1,234.50)". Anything else is treated as a leading minus sign.
const (
	NegativeParen = "paren"
	NegativeMinus = "minus"
)

// ParseAmount coerces a broker-formatted numeric string into a float,
// honoring the profile's negative-number convention and stripping "," as
// the thousands separator. Returns nil (not an error) for empty or
// unparseable input; coercion failures are soft and only surface later if
// the field turns out to be required.
func ParseAmount(raw, negativeFormat string) *float64 {
	return ParseAmountSep(raw, negativeFormat, ",", ".")
}

// ParseAmountSep is ParseAmount with explicit thousands and decimal
// separators for locales that swap them.
func ParseAmountSep(raw, negativeFormat, thousands, decimalSep string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if negativeFormat == NegativeParen && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	if thousands != "" {
		s = strings.ReplaceAll(s, thousands, "")
	}
	if decimalSep != "" && decimalSep != "." {
		s = strings.ReplaceAll(s, decimalSep, ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// dateLayouts are tried in order. Broker exports mix ISO dates, US slash
// dates, and occasional timestamp forms; any time-of-day part is discarded.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"20060102",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate coerces a date string to day precision. Returns nil on failure;
// the caller decides whether a missing date is fatal for the row.
func ParseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}
