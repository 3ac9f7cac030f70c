package parsers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/username/divledger/src/logger"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

const sniffLen = 4096

// RawFile is one delimited source file read into memory: header columns,
// data rows keyed by column name, and the 1-based source line number of
// each row (the header is line 1).
type RawFile struct {
	Header   []string
	Rows     []map[string]string
	Lines    []int
	Encoding string
}

// DetectEncoding inspects a bounded prefix of the file and returns a
// best-guess charset label. Inconclusive detection falls back to UTF-8;
// detection never fails hard.
func DetectEncoding(data []byte) string {
	prefix := data
	if len(prefix) > sniffLen {
		prefix = prefix[:sniffLen]
	}
	_, name, certain := charset.DetermineEncoding(prefix, "text/plain")
	if certain && name != "" {
		return name
	}
	// The sniffer defaults to windows-1252 when nothing is conclusive;
	// prefer UTF-8 whenever the prefix actually decodes as UTF-8.
	if utf8.Valid(prefix) {
		return "utf-8"
	}
	if name == "" {
		return "utf-8"
	}
	return name
}

// decodeReader wraps the raw bytes in a decoder for the requested charset
// label, or the detected one when the label is "auto" or empty. An unknown
// label degrades to reading the bytes as-is; a broken encoding may corrupt
// non-critical text fields but never aborts ingestion.
func decodeReader(data []byte, encodingLabel string) (io.Reader, string) {
	label := strings.TrimSpace(strings.ToLower(encodingLabel))
	if label == "" || label == "auto" {
		label = DetectEncoding(data)
	}
	if enc, _ := charset.Lookup(label); enc != nil {
		return transform.NewReader(bytes.NewReader(data), enc.NewDecoder()), label
	}
	logger.L.Warn("Unknown charset label, reading bytes as-is", "label", label)
	return bytes.NewReader(data), label
}

// ReadCSV parses one CSV file with a header row. Ragged rows longer than
// the header are skipped; shorter rows are padded with empty strings.
// Row line numbers assume one source line per record, header on line 1.
func ReadCSV(data []byte, encodingLabel string) (*RawFile, error) {
	r, label := decodeReader(data, encodingLabel)
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &RawFile{Encoding: label}, nil
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	file := &RawFile{Header: header, Encoding: label}
	lineNo := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNo++
		if err != nil {
			// Structurally broken line; skip it the way the reader
			// tolerates ragged input elsewhere.
			logger.L.Debug("Skipping unparseable CSV line", "line", lineNo, "error", err)
			continue
		}
		if len(record) > len(header) {
			logger.L.Debug("Skipping ragged CSV line", "line", lineNo, "fields", len(record), "headerFields", len(header))
			continue
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		file.Rows = append(file.Rows, row)
		file.Lines = append(file.Lines, lineNo)
	}
	return file, nil
}

// Empty reports whether the file has no data rows after parsing.
func (f *RawFile) Empty() bool {
	return len(f.Rows) == 0
}
