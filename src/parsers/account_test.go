package parsers

import (
	"strings"
	"testing"
)

func TestExtractAccountNumber(t *testing.T) {
	data := []byte("E*TRADE Securities\n\nFor Account: #####9153\n\nDate,Description,Amount\n")
	if got := ExtractAccountNumber(data); got != "9153" {
		t.Fatalf("want 9153, got %q", got)
	}
}

func TestExtractAccountNumberPunctuationVariants(t *testing.T) {
	cases := map[string]string{
		"For Account, 1234\n":        "1234",
		"for account 55AB7\n":        "55AB7",
		"FOR ACCOUNT:#9001\n":        "9001",
		"Statement For Account 77\n": "77",
	}
	for line, want := range cases {
		if got := ExtractAccountNumber([]byte(line)); got != want {
			t.Fatalf("ExtractAccountNumber(%q) = %q, want %q", line, got, want)
		}
	}
}

func TestExtractAccountNumberAbsent(t *testing.T) {
	data := []byte("Date,Description,Amount\n2024-07-03,Dividend,1.00\n")
	if got := ExtractAccountNumber(data); got != "" {
		t.Fatalf("want empty string when no marker line exists, got %q", got)
	}
}

func TestExtractAccountNumberOutsideWindow(t *testing.T) {
	// The marker on line 12 is beyond the scanned preamble.
	data := []byte(strings.Repeat("filler line\n", 11) + "For Account: 9153\n")
	if got := ExtractAccountNumber(data); got != "" {
		t.Fatalf("marker beyond the scan window must be ignored, got %q", got)
	}
}
