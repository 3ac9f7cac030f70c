package parsers

import (
	"testing"

	"github.com/username/divledger/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func TestDetectEncodingUTF8(t *testing.T) {
	if got := DetectEncoding([]byte("Symbol,Amount\nMSFT,12.00\n")); got != "utf-8" {
		t.Fatalf("want utf-8 for plain ASCII, got %q", got)
	}
	if got := DetectEncoding([]byte("Sécurité,Montant\n")); got != "utf-8" {
		t.Fatalf("want utf-8 for valid UTF-8 text, got %q", got)
	}
}

func TestDetectEncodingBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Symbol,Amount\n")...)
	if got := DetectEncoding(data); got != "utf-8" {
		t.Fatalf("want utf-8 for BOM-prefixed file, got %q", got)
	}
}

func TestDetectEncodingNonUTF8FallsBack(t *testing.T) {
	// "Café" in Latin-1: 0xE9 is not valid UTF-8.
	data := []byte{'C', 'a', 'f', 0xE9, ',', 'X', '\n'}
	if got := DetectEncoding(data); got != "windows-1252" {
		t.Fatalf("want windows-1252 for Latin-1 bytes, got %q", got)
	}
}

func TestReadCSVBasic(t *testing.T) {
	data := []byte("Symbol,Amount,Description\nMSFT,12.00,Dividend\nAAPL,3.40,Dividend\n")
	file, err := ReadCSV(data, "auto")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(file.Header) != 3 || file.Header[0] != "Symbol" {
		t.Fatalf("unexpected header: %v", file.Header)
	}
	if len(file.Rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(file.Rows))
	}
	if file.Rows[0]["Symbol"] != "MSFT" || file.Rows[1]["Amount"] != "3.40" {
		t.Fatalf("unexpected row content: %v", file.Rows)
	}
	if file.Lines[0] != 2 || file.Lines[1] != 3 {
		t.Fatalf("want data line numbers 2 and 3, got %v", file.Lines)
	}
}

func TestReadCSVRaggedRows(t *testing.T) {
	// One row too long (skipped), one too short (padded with "").
	data := []byte("A,B,C\n1,2,3,4\nx,y\n")
	file, err := ReadCSV(data, "auto")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(file.Rows) != 1 {
		t.Fatalf("want 1 surviving row, got %d", len(file.Rows))
	}
	if file.Rows[0]["A"] != "x" || file.Rows[0]["C"] != "" {
		t.Fatalf("short row must be padded: %v", file.Rows[0])
	}
	if file.Lines[0] != 3 {
		t.Fatalf("line number must track the source line, got %d", file.Lines[0])
	}
}

func TestReadCSVStripsBOMFromHeader(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Symbol,Amount\nMSFT,1\n")...)
	file, err := ReadCSV(data, "auto")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if file.Header[0] != "Symbol" {
		t.Fatalf("BOM must not leak into the first header column: %q", file.Header[0])
	}
}

func TestReadCSVDecodesDeclaredEncoding(t *testing.T) {
	data := []byte{'N', 'a', 'm', 'e', '\n', 'C', 'a', 'f', 0xE9, '\n'}
	file, err := ReadCSV(data, "windows-1252")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if file.Rows[0]["Name"] != "Café" {
		t.Fatalf("want decoded Café, got %q", file.Rows[0]["Name"])
	}
}

func TestReadCSVEmptyFile(t *testing.T) {
	file, err := ReadCSV(nil, "auto")
	if err != nil {
		t.Fatalf("empty input must not error: %v", err)
	}
	if !file.Empty() {
		t.Fatalf("want empty file")
	}

	headerOnly, err := ReadCSV([]byte("Symbol,Amount\n"), "auto")
	if err != nil {
		t.Fatalf("header-only input must not error: %v", err)
	}
	if !headerOnly.Empty() {
		t.Fatalf("header-only file has no data rows")
	}
}

func TestReadCSVUnknownEncodingLabelDegrades(t *testing.T) {
	file, err := ReadCSV([]byte("A,B\n1,2\n"), "klingon-8")
	if err != nil {
		t.Fatalf("unknown label must degrade, not fail: %v", err)
	}
	if len(file.Rows) != 1 || file.Rows[0]["A"] != "1" {
		t.Fatalf("unexpected rows: %v", file.Rows)
	}
}
