package models

import (
	"strconv"
	"time"
)

// Rejection reason codes emitted by the normalization core.
const (
	ReasonBadPayDate       = "bad_pay_date"
	ReasonNoProfileMatched = "no_profile_matched"
)

// CanonicalColumns is the fixed column order of the accepted stream.
// Downstream loaders rely on this order staying stable across profile
// generations; append-only.
var CanonicalColumns = []string{
	"row_hash", "account_id", "broker", "broker_account", "symbol", "cusip",
	"isin", "security_name", "event_type", "ex_date", "record_date",
	"pay_date", "quantity", "gross_amount", "withholding_tax", "fees",
	"net_amount", "currency", "reinvested", "drip_price", "created_ts",
	"source_file", "line_no", "notes",
}

// CanonicalRow is one normalized dividend/distribution record. String
// identity fields use "" for mapped-but-missing values; numeric and date
// fields are nil when the source value was absent or unparseable.
type CanonicalRow struct {
	RowHash        string            `json:"row_hash"`
	AccountID      string            `json:"account_id"`
	Broker         string            `json:"broker"`
	BrokerAccount  string            `json:"broker_account"`
	Symbol         string            `json:"symbol"`
	Cusip          string            `json:"cusip"`
	Isin           string            `json:"isin"`
	SecurityName   string            `json:"security_name"`
	EventType      string            `json:"event_type"`
	ExDate         *time.Time        `json:"ex_date"`
	RecordDate     *time.Time        `json:"record_date"`
	PayDate        *time.Time        `json:"pay_date"`
	Quantity       *float64          `json:"quantity"`
	GrossAmount    *float64          `json:"gross_amount"`
	WithholdingTax *float64          `json:"withholding_tax"`
	Fees           *float64          `json:"fees"`
	NetAmount      *float64          `json:"net_amount"`
	Currency       string            `json:"currency"`
	Reinvested     *bool             `json:"reinvested"`
	DripPrice      *float64          `json:"drip_price"`
	CreatedTS      time.Time         `json:"created_ts"`
	SourceFile     string            `json:"source_file"`
	LineNo         int               `json:"line_no"`
	Notes          map[string]string `json:"notes,omitempty"`
}

const dateLayout = "2006-01-02"

// FieldString renders a canonical field as the stable text form used for
// row hashing. Nil dates and amounts render as "".
func (r *CanonicalRow) FieldString(name string) string {
	switch name {
	case "row_hash":
		return r.RowHash
	case "account_id":
		return r.AccountID
	case "broker":
		return r.Broker
	case "broker_account":
		return r.BrokerAccount
	case "symbol":
		return r.Symbol
	case "cusip":
		return r.Cusip
	case "isin":
		return r.Isin
	case "security_name":
		return r.SecurityName
	case "event_type":
		return r.EventType
	case "ex_date":
		return dateString(r.ExDate)
	case "record_date":
		return dateString(r.RecordDate)
	case "pay_date":
		return dateString(r.PayDate)
	case "quantity":
		return floatString(r.Quantity)
	case "gross_amount":
		return floatString(r.GrossAmount)
	case "withholding_tax":
		return floatString(r.WithholdingTax)
	case "fees":
		return floatString(r.Fees)
	case "net_amount":
		return floatString(r.NetAmount)
	case "currency":
		return r.Currency
	case "reinvested":
		if r.Reinvested == nil {
			return ""
		}
		return strconv.FormatBool(*r.Reinvested)
	case "drip_price":
		return floatString(r.DripPrice)
	case "source_file":
		return r.SourceFile
	case "line_no":
		return strconv.Itoa(r.LineNo)
	default:
		return ""
	}
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func floatString(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

// RejectedRow is one source row routed to the dead-letter stream.
type RejectedRow struct {
	SourceFile string            `json:"source_file"`
	LineNo     int               `json:"line_no"`
	Row        map[string]string `json:"row"`
	Reason     string            `json:"reason"`
}

// FileRejection marks a whole file that could not be normalized (no
// profile matched). No per-row rejections exist in that case because no
// mapping could be determined.
type FileRejection struct {
	SourceFile string `json:"source_file"`
	Reason     string `json:"reason"`
}

// BatchSummary reports the outcome of one ingest run.
type BatchSummary struct {
	BatchID        string    `json:"batch_id"`
	SourceFile     string    `json:"source_file"`
	Profile        string    `json:"profile"`
	Encoding       string    `json:"encoding"`
	BrokerAccount  string    `json:"broker_account"`
	RowsIn         int       `json:"rows_in"`
	Accepted       int       `json:"accepted"`
	Rejected       int       `json:"rejected"`
	LoadedRows     int       `json:"loaded_rows"`
	DuplicateRows  int       `json:"duplicate_rows"`
	ParquetPath    string    `json:"parquet_path,omitempty"`
	DeadLetterPath string    `json:"dead_letter_path,omitempty"`
	FileReason     string    `json:"file_reason,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
