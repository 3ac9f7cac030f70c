package normalize

import (
	"strings"
	"time"

	"github.com/username/divledger/src/models"
	"github.com/username/divledger/src/parsers"
	"github.com/username/divledger/src/profiles"
)

// MappedRow pairs a canonical row under construction with the source row
// it came from. The source fields feed derived-field evaluation, split-rule
// description matching, and the dead-letter stream.
type MappedRow struct {
	Row         *models.CanonicalRow
	Source      map[string]string
	NetExplicit bool
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindDate
	kindAmount
	kindBool
)

var fieldKinds = map[string]fieldKind{
	"account_id":      kindText,
	"broker":          kindText,
	"broker_account":  kindText,
	"symbol":          kindText,
	"cusip":           kindText,
	"isin":            kindText,
	"security_name":   kindText,
	"event_type":      kindText,
	"currency":        kindText,
	"ex_date":         kindDate,
	"record_date":     kindDate,
	"pay_date":        kindDate,
	"quantity":        kindAmount,
	"gross_amount":    kindAmount,
	"withholding_tax": kindAmount,
	"fees":            kindAmount,
	"net_amount":      kindAmount,
	"drip_price":      kindAmount,
	"reinvested":      kindBool,
}

// Mapper applies one profile's column renames, constants, and derived
// fields, coercing values into the canonical row shape as it goes.
type Mapper struct {
	profile *profiles.Profile
}

func NewMapper(p *profiles.Profile) *Mapper {
	return &Mapper{profile: p}
}

// MapFile builds one canonical row per source row. created_ts is assigned
// here, once, and never mutated afterwards.
func (m *Mapper) MapFile(file *parsers.RawFile, sourceFile string) []*MappedRow {
	createdTS := time.Now().UTC()
	mapping := m.profile.Mapping
	out := make([]*MappedRow, 0, len(file.Rows))

	for i, source := range file.Rows {
		row := &models.CanonicalRow{
			SourceFile: sourceFile,
			LineNo:     file.Lines[i],
			CreatedTS:  createdTS,
		}
		mr := &MappedRow{Row: row, Source: source}

		// Column renames. A mapped-but-missing source column yields an
		// empty string, not a null.
		for srcCol, canonCol := range mapping.Columns {
			m.setField(mr, canonCol, strings.TrimSpace(source[srcCol]))
			if canonCol == "net_amount" {
				mr.NetExplicit = true
			}
		}

		// Constants are injected verbatim into every row.
		for canonCol, literal := range mapping.Constants {
			m.setField(mr, canonCol, literal)
			if canonCol == "net_amount" {
				mr.NetExplicit = true
			}
		}

		// Derived fields, parsed and validated at profile load.
		for canonCol, expr := range mapping.Exprs() {
			m.setBool(mr, canonCol, expr.Eval(source))
		}

		out = append(out, mr)
	}
	return out
}

// setField routes a raw string into the right canonical slot, coercing
// dates and amounts with the profile's reader settings. Canonical names
// outside the fixed schema land in the notes bag.
func (m *Mapper) setField(mr *MappedRow, name, raw string) {
	row := mr.Row
	kind, known := fieldKinds[name]
	if !known {
		if row.Notes == nil {
			row.Notes = make(map[string]string)
		}
		row.Notes[name] = raw
		return
	}
	switch kind {
	case kindDate:
		setDate(row, name, ParseDate(raw))
	case kindAmount:
		reader := m.profile.Reader
		thousands := reader.Thousands
		if thousands == "" {
			thousands = ","
		}
		decimalSep := reader.Decimal
		if decimalSep == "" {
			decimalSep = "."
		}
		setAmount(row, name, ParseAmountSep(raw, reader.NegativeFormat(), thousands, decimalSep))
	case kindBool:
		if raw != "" {
			v := isTruthy(raw)
			row.Reinvested = &v
		}
	default:
		setText(row, name, raw)
	}
}

func (m *Mapper) setBool(mr *MappedRow, name string, v bool) {
	if name == "reinvested" {
		mr.Row.Reinvested = &v
		return
	}
	if mr.Row.Notes == nil {
		mr.Row.Notes = make(map[string]string)
	}
	if v {
		mr.Row.Notes[name] = "true"
	} else {
		mr.Row.Notes[name] = "false"
	}
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1", "t":
		return true
	}
	return false
}

func setText(row *models.CanonicalRow, name, v string) {
	switch name {
	case "account_id":
		row.AccountID = v
	case "broker":
		row.Broker = v
	case "broker_account":
		row.BrokerAccount = v
	case "symbol":
		row.Symbol = v
	case "cusip":
		row.Cusip = v
	case "isin":
		row.Isin = v
	case "security_name":
		row.SecurityName = v
	case "event_type":
		row.EventType = v
	case "currency":
		row.Currency = v
	}
}

func setDate(row *models.CanonicalRow, name string, v *time.Time) {
	switch name {
	case "ex_date":
		row.ExDate = v
	case "record_date":
		row.RecordDate = v
	case "pay_date":
		row.PayDate = v
	}
}

func setAmount(row *models.CanonicalRow, name string, v *float64) {
	switch name {
	case "quantity":
		row.Quantity = v
	case "gross_amount":
		row.GrossAmount = v
	case "withholding_tax":
		row.WithholdingTax = v
	case "fees":
		row.Fees = v
	case "net_amount":
		row.NetAmount = v
	case "drip_price":
		row.DripPrice = v
	}
}
