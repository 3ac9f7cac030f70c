package normalize

import (
	"testing"
	"time"

	"github.com/username/divledger/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func TestParseAmountParenNegative(t *testing.T) {
	got := ParseAmount("(1,234.50)", NegativeParen)
	if got == nil {
		t.Fatalf("want -1234.50, got nil")
	}
	if *got != -1234.50 {
		t.Fatalf("want -1234.50, got %v", *got)
	}
}

func TestParseAmountMinusFormatIgnoresParens(t *testing.T) {
	// Under the minus convention a parenthesized value is not a numeral.
	if got := ParseAmount("(1,234.50)", NegativeMinus); got != nil {
		t.Fatalf("want nil for paren input under minus format, got %v", *got)
	}
	got := ParseAmount("1234.50", NegativeMinus)
	if got == nil || *got != 1234.50 {
		t.Fatalf("want 1234.50, got %v", got)
	}
	got = ParseAmount("-12.75", NegativeMinus)
	if got == nil || *got != -12.75 {
		t.Fatalf("want -12.75, got %v", got)
	}
}

func TestParseAmountSoftFailures(t *testing.T) {
	cases := []string{"", "   ", "abc", "12.3.4", "--5"}
	for _, raw := range cases {
		if got := ParseAmount(raw, NegativeMinus); got != nil {
			t.Fatalf("ParseAmount(%q) = %v, want nil", raw, *got)
		}
	}
}

func TestParseAmountThousandsAndLocale(t *testing.T) {
	got := ParseAmount("12,345,678.90", NegativeMinus)
	if got == nil || *got != 12345678.90 {
		t.Fatalf("want 12345678.90, got %v", got)
	}
	got = ParseAmountSep("1.234,56", NegativeMinus, ".", ",")
	if got == nil || *got != 1234.56 {
		t.Fatalf("want 1234.56 from European format, got %v", got)
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)
	cases := []string{"2024-07-03", "07/03/2024", "7/3/2024", "2024/07/03", "20240703", "Jul 3, 2024", "2024-07-03 14:22:09"}
	for _, raw := range cases {
		got := ParseDate(raw)
		if got == nil {
			t.Fatalf("ParseDate(%q) = nil, want %v", raw, want)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v (time-of-day must be discarded)", raw, *got, want)
		}
	}
}

func TestParseDateSoftFailure(t *testing.T) {
	for _, raw := range []string{"", "not a date", "13/45/2024"} {
		if got := ParseDate(raw); got != nil {
			t.Fatalf("ParseDate(%q) = %v, want nil", raw, *got)
		}
	}
}
